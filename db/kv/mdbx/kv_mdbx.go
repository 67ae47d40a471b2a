// Copyright 2021 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package mdbx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/c2h5oh/datasize"
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/metrics"
)

const pageSize = 4 * datasize.KB

type TableCfgFunc func(defaultBuckets kv.TableCfg) kv.TableCfg

func WithChaindataTables(defaultBuckets kv.TableCfg) kv.TableCfg {
	return defaultBuckets
}

type MdbxOpts struct {
	log        log.Logger
	bucketsCfg TableCfgFunc
	path       string
	label      kv.Label // marker to distinct db instances - one process may open many databases. for example to collect metrics of only 1 database
	mapSize    datasize.ByteSize
	growthStep datasize.ByteSize
	flags      uint
	inMem      bool
}

func NewMDBX(log log.Logger) MdbxOpts {
	return MdbxOpts{
		bucketsCfg: WithChaindataTables,
		flags:      mdbx.NoReadahead | mdbx.Durable,
		log:        log,
		label:      kv.ZeroTraceDB,
		mapSize:    2 * datasize.TB,
		growthStep: 2 * datasize.GB,
	}
}

func (opts MdbxOpts) Label(label kv.Label) MdbxOpts {
	opts.label = label
	return opts
}

func (opts MdbxOpts) Path(path string) MdbxOpts {
	opts.path = path
	return opts
}

// InMem opens a throw-away database under tmpDir, removed on Close.
func (opts MdbxOpts) InMem(tmpDir string) MdbxOpts {
	opts.inMem = true
	opts.path = tmpDir
	opts.mapSize = 512 * datasize.MB
	opts.growthStep = 2 * datasize.MB
	opts.flags = mdbx.UtterlyNoSync | mdbx.NoMetaSync | mdbx.NoMemInit
	return opts
}

func (opts MdbxOpts) Exclusive() MdbxOpts {
	opts.flags = opts.flags | mdbx.Exclusive
	return opts
}

func (opts MdbxOpts) Readonly() MdbxOpts {
	opts.flags = opts.flags | mdbx.Readonly
	return opts
}

func (opts MdbxOpts) MapSize(sz datasize.ByteSize) MdbxOpts {
	opts.mapSize = sz
	return opts
}

func (opts MdbxOpts) GrowthStep(sz datasize.ByteSize) MdbxOpts {
	opts.growthStep = sz
	return opts
}

func (opts MdbxOpts) WithTableCfg(f TableCfgFunc) MdbxOpts {
	opts.bucketsCfg = f
	return opts
}

func (opts MdbxOpts) Open(ctx context.Context) (kv.RwDB, error) {
	if opts.path == "" {
		return nil, errors.New("mdbx: empty path")
	}
	if opts.log == nil {
		opts.log = log.Root()
	}
	logger := opts.log.New("db", opts.label, "path", filepath.Base(opts.path))

	env, err := mdbx.NewEnv(mdbx.Label(opts.label))
	if err != nil {
		return nil, err
	}
	if err = env.SetOption(mdbx.OptMaxDB, 100); err != nil {
		return nil, err
	}
	if err = env.SetOption(mdbx.OptMaxReaders, kv.ReadersLimit); err != nil {
		return nil, err
	}

	readOnly := opts.flags&mdbx.Readonly != 0
	if !readOnly {
		if err = env.SetGeometry(-1, -1, int(opts.mapSize), int(opts.growthStep), -1, int(pageSize)); err != nil {
			return nil, err
		}
		if err = os.MkdirAll(opts.path, 0744); err != nil {
			return nil, fmt.Errorf("could not create dir: %s, %w", opts.path, err)
		}
	}

	if err = env.Open(opts.path, opts.flags, 0664); err != nil {
		env.Close()
		return nil, fmt.Errorf("%w, label: %s, path: %s", err, opts.label, opts.path)
	}

	db := &MdbxKV{
		opts:    opts,
		env:     env,
		log:     logger,
		buckets: kv.TableCfg{},
		dbis:    map[string]mdbx.DBI{},
		wg:      &sync.WaitGroup{},
	}
	customBuckets := opts.bucketsCfg(kv.TablesCfgByLabel(opts.label))
	for name, cfg := range customBuckets { // copy map to avoid changing global variable
		db.buckets[name] = cfg
	}

	if err := db.openDBIs(ctx, readOnly); err != nil {
		env.Close()
		return nil, err
	}

	if !opts.inMem {
		if staleReaders, err := db.env.ReaderCheck(); err != nil {
			db.log.Error("failed ReaderCheck", "err", err)
		} else if staleReaders > 0 {
			db.log.Info("cleared reader slots from dead processes", "amount", staleReaders)
		}
	}
	db.log.Debug("database opened (MDBX)", "tables", len(db.dbis), "readonly", readOnly)
	return db, nil
}

func (opts MdbxOpts) MustOpen() kv.RwDB {
	db, err := opts.Open(context.Background())
	if err != nil {
		panic(fmt.Errorf("fail to open mdbx: %w", err))
	}
	return db
}

// openDBIs creates missing tables (write mode) or opens existing ones (read-only mode).
// Tables missing in a read-only database stay unopened and read as empty.
func (db *MdbxKV) openDBIs(ctx context.Context, readOnly bool) error {
	names := make([]string, 0, len(db.buckets))
	for name, cfg := range db.buckets {
		if cfg.IsDeprecated {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var flags uint
	if readOnly {
		flags = mdbx.Readonly
	} else {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	tx, err := db.env.BeginTxn(nil, flags)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			tx.Abort()
			return err
		}
		var dbiFlags uint = mdbx.Create
		if readOnly {
			dbiFlags = mdbx.DBAccede
		}
		dbi, err := tx.OpenDBI(name, dbiFlags, nil, nil)
		if err != nil {
			if readOnly && mdbx.IsNotFound(err) {
				continue
			}
			tx.Abort()
			return fmt.Errorf("table: %s, %w", name, err)
		}
		db.dbis[name] = dbi
	}
	if _, err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

type MdbxKV struct {
	env     *mdbx.Env
	log     log.Logger
	wg      *sync.WaitGroup
	buckets kv.TableCfg
	dbis    map[string]mdbx.DBI
	opts    MdbxOpts

	closeOnce sync.Once
}

func (db *MdbxKV) ReadOnly() bool              { return db.opts.flags&mdbx.Readonly != 0 }
func (db *MdbxKV) AllTables() kv.TableCfg      { return db.buckets }
func (db *MdbxKV) PageSize() datasize.ByteSize { return pageSize }
func (db *MdbxKV) Env() *mdbx.Env              { return db.env }

// Close closes db
// All transactions must be closed before closing the database.
func (db *MdbxKV) Close() {
	db.closeOnce.Do(func() {
		db.wg.Wait()
		db.env.Close()

		if db.opts.inMem {
			if err := os.RemoveAll(db.opts.path); err != nil {
				db.log.Warn("failed to remove in-mem db file", "err", err)
			}
		} else {
			db.log.Info("database closed (MDBX)")
		}
	})
}

func (db *MdbxKV) BeginRo(ctx context.Context) (txn kv.Tx, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := db.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, fmt.Errorf("%w, label: %s", err, db.opts.label)
	}
	db.wg.Add(1)
	return &MdbxTx{db: db, tx: tx, readOnly: true}, nil
}

func (db *MdbxKV) BeginRw(ctx context.Context) (txn kv.RwTx, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if db.ReadOnly() {
		return nil, kv.ErrDBReadOnly
	}
	runtime.LockOSThread()
	tx, err := db.env.BeginTxn(nil, 0)
	if err != nil {
		runtime.UnlockOSThread() // unlock only in case of error. normal flow is "defer .Rollback()"
		return nil, fmt.Errorf("%w, label: %s", err, db.opts.label)
	}
	db.wg.Add(1)
	return &MdbxTx{db: db, tx: tx}, nil
}

func (db *MdbxKV) View(ctx context.Context, f func(tx kv.Tx) error) (err error) {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *MdbxKV) Update(ctx context.Context, f func(tx kv.RwTx) error) (err error) {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err = f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type MdbxTx struct {
	tx       *mdbx.Txn
	db       *MdbxKV
	cursors  []*MdbxCursor
	readOnly bool
	done     bool
}

func (tx *MdbxTx) dbi(table string) (mdbx.DBI, bool, error) {
	if _, ok := tx.db.buckets[table]; !ok {
		return 0, false, fmt.Errorf("%w: %s", kv.ErrUnknownTable, table)
	}
	dbi, ok := tx.db.dbis[table]
	return dbi, ok, nil
}

func (tx *MdbxTx) finish() {
	for _, c := range tx.cursors {
		c.Close()
	}
	tx.cursors = nil
	tx.done = true
	tx.db.wg.Done()
	if !tx.readOnly {
		runtime.UnlockOSThread()
	}
}

func (tx *MdbxTx) Commit() error {
	if tx.done {
		return kv.ErrTxDone
	}
	defer tx.finish()
	latency, err := tx.tx.Commit()
	if err != nil {
		return err
	}
	if !tx.readOnly {
		commitTimer.Observe(latency.Whole.Seconds())
	}
	return nil
}

func (tx *MdbxTx) Rollback() {
	if tx.done {
		return
	}
	defer tx.finish()
	tx.tx.Abort()
}

func (tx *MdbxTx) GetOne(table string, key []byte) ([]byte, error) {
	dbi, ok, err := tx.dbi(table)
	if err != nil || !ok {
		return nil, err
	}
	v, err := tx.tx.Get(dbi, key)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	return v, err
}

func (tx *MdbxTx) Has(table string, key []byte) (bool, error) {
	dbi, ok, err := tx.dbi(table)
	if err != nil || !ok {
		return false, err
	}
	_, err = tx.tx.Get(dbi, key)
	if err == nil {
		return true, nil
	}
	if mdbx.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (tx *MdbxTx) Put(table string, k, v []byte) error {
	dbi, ok, err := tx.dbi(table)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s not opened", kv.ErrUnknownTable, table)
	}
	return tx.tx.Put(dbi, k, v, 0)
}

func (tx *MdbxTx) Delete(table string, k []byte) error {
	dbi, ok, err := tx.dbi(table)
	if err != nil || !ok {
		return err
	}
	err = tx.tx.Del(dbi, k, nil)
	if mdbx.IsNotFound(err) {
		return nil
	}
	return err
}

func (tx *MdbxTx) Count(table string) (uint64, error) {
	dbi, ok, err := tx.dbi(table)
	if err != nil || !ok {
		return 0, err
	}
	st, err := tx.tx.StatDBI(dbi)
	if err != nil {
		return 0, err
	}
	return st.Entries, nil
}

func (tx *MdbxTx) ListTables() ([]string, error) {
	res := make([]string, 0, len(tx.db.dbis))
	for name := range tx.db.dbis {
		res = append(res, name)
	}
	sort.Strings(res)
	return res, nil
}

func (tx *MdbxTx) ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error {
	c, err := tx.Cursor(table)
	if err != nil {
		return err
	}
	defer c.Close()

	for k, v, err := c.Seek(fromPrefix); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		if err := walker(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (tx *MdbxTx) ForPrefix(table string, prefix []byte, walker func(k, v []byte) error) error {
	c, err := tx.Cursor(table)
	if err != nil {
		return err
	}
	defer c.Close()

	for k, v, err := c.Seek(prefix); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		if err := walker(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (tx *MdbxTx) Cursor(table string) (kv.Cursor, error) {
	dbi, ok, err := tx.dbi(table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptyCursor{}, nil
	}
	c, err := tx.tx.OpenCursor(dbi)
	if err != nil {
		return nil, fmt.Errorf("table: %s, %w", table, err)
	}
	cur := &MdbxCursor{c: c, table: table}
	tx.cursors = append(tx.cursors, cur)
	return cur, nil
}

type MdbxCursor struct {
	c     *mdbx.Cursor
	table string
}

func (c *MdbxCursor) get(k []byte, op uint) ([]byte, []byte, error) {
	k, v, err := c.c.Get(k, nil, op)
	if err != nil {
		if mdbx.IsNotFound(err) {
			return nil, nil, nil
		}
		return []byte{}, nil, fmt.Errorf("table: %s, %w", c.table, err)
	}
	return k, v, nil
}

func (c *MdbxCursor) First() ([]byte, []byte, error) { return c.get(nil, mdbx.First) }
func (c *MdbxCursor) Last() ([]byte, []byte, error)  { return c.get(nil, mdbx.Last) }
func (c *MdbxCursor) Next() ([]byte, []byte, error)  { return c.get(nil, mdbx.Next) }

func (c *MdbxCursor) Seek(seek []byte) ([]byte, []byte, error) {
	if len(seek) == 0 {
		return c.First()
	}
	return c.get(seek, mdbx.SetRange)
}

func (c *MdbxCursor) SeekExact(key []byte) ([]byte, []byte, error) {
	return c.get(key, mdbx.SetKey)
}

func (c *MdbxCursor) Close() {
	if c.c != nil {
		c.c.Close()
		c.c = nil
	}
}

// emptyCursor serves tables that are absent from a read-only database.
type emptyCursor struct{}

func (emptyCursor) First() ([]byte, []byte, error)           { return nil, nil, nil }
func (emptyCursor) Seek([]byte) ([]byte, []byte, error)      { return nil, nil, nil }
func (emptyCursor) SeekExact([]byte) ([]byte, []byte, error) { return nil, nil, nil }
func (emptyCursor) Next() ([]byte, []byte, error)            { return nil, nil, nil }
func (emptyCursor) Last() ([]byte, []byte, error)            { return nil, nil, nil }
func (emptyCursor) Close()                                   {}

var commitTimer = metrics.GetOrCreateSummary(`db_commit_seconds{phase="total"}`)
