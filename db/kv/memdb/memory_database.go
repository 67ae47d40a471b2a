// Copyright 2024 The Erigon Authors
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
package memdb

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"
	"github.com/tidwall/btree"

	"github.com/erigontech/zerotracer/db/kv"
)

type item struct {
	k, v []byte
}

func less(a, b item) bool { return bytes.Compare(a.k, b.k) < 0 }

type table = btree.BTreeG[item]

func newTable() *table {
	return btree.NewBTreeGOptions[item](less, btree.Options{NoLocks: true})
}

// MemoryDB is a kv.RwDB kept in copy-on-write b-trees. Every transaction works
// on its own copy of the committed trees, so readers never observe a writer's
// uncommitted data and a commit swaps the writer's trees in atomically.
type MemoryDB struct {
	log    log.Logger
	label  kv.Label
	cfg    kv.TableCfg
	writer sync.Mutex // held for the lifetime of a RwTx

	mu     sync.Mutex
	tables map[string]*table
	wg     sync.WaitGroup
	closed bool
}

func New(logger log.Logger, label kv.Label) *MemoryDB {
	db := &MemoryDB{
		log:    logger.New("db", label, "engine", "memdb"),
		label:  label,
		cfg:    kv.TableCfg{},
		tables: map[string]*table{},
	}
	for name, cfg := range kv.TablesCfgByLabel(label) {
		db.cfg[name] = cfg
		if !cfg.IsDeprecated {
			db.tables[name] = newTable()
		}
	}
	return db
}

func NewTestDB(tb testing.TB, label kv.Label) kv.RwDB {
	tb.Helper()
	db := New(log.New(), label)
	tb.Cleanup(db.Close)
	return db
}

func (db *MemoryDB) ReadOnly() bool              { return false }
func (db *MemoryDB) AllTables() kv.TableCfg      { return db.cfg }
func (db *MemoryDB) PageSize() datasize.ByteSize { return 4 * datasize.KB }

func (db *MemoryDB) Close() {
	db.wg.Wait()
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return
	}
	db.closed = true
	db.tables = nil
	db.log.Debug("database closed (memdb)")
}

func (db *MemoryDB) snapshot() (map[string]*table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, fmt.Errorf("db closed, label: %s", db.label)
	}
	res := make(map[string]*table, len(db.tables))
	for name, t := range db.tables {
		res[name] = t.Copy()
	}
	db.wg.Add(1)
	return res, nil
}

func (db *MemoryDB) BeginRo(ctx context.Context) (kv.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tables, err := db.snapshot()
	if err != nil {
		return nil, err
	}
	return &memTx{db: db, tables: tables, readOnly: true}, nil
}

func (db *MemoryDB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.writer.Lock()
	tables, err := db.snapshot()
	if err != nil {
		db.writer.Unlock()
		return nil, err
	}
	return &memTx{db: db, tables: tables}, nil
}

func (db *MemoryDB) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *MemoryDB) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type memTx struct {
	db       *MemoryDB
	tables   map[string]*table
	readOnly bool
	done     bool
}

func (tx *memTx) table(name string) (*table, error) {
	if tx.done {
		return nil, kv.ErrTxDone
	}
	t, ok := tx.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", kv.ErrUnknownTable, name)
	}
	return t, nil
}

func (tx *memTx) finish() {
	tx.done = true
	tx.tables = nil
	tx.db.wg.Done()
	if !tx.readOnly {
		tx.db.writer.Unlock()
	}
}

func (tx *memTx) Commit() error {
	if tx.done {
		return kv.ErrTxDone
	}
	if !tx.readOnly {
		tx.db.mu.Lock()
		tx.db.tables = tx.tables
		tx.db.mu.Unlock()
	}
	tx.finish()
	return nil
}

func (tx *memTx) Rollback() {
	if tx.done {
		return
	}
	tx.finish()
}

func (tx *memTx) GetOne(name string, key []byte) ([]byte, error) {
	t, err := tx.table(name)
	if err != nil {
		return nil, err
	}
	it, ok := t.Get(item{k: key})
	if !ok {
		return nil, nil
	}
	return it.v, nil
}

func (tx *memTx) Has(name string, key []byte) (bool, error) {
	t, err := tx.table(name)
	if err != nil {
		return false, err
	}
	_, ok := t.Get(item{k: key})
	return ok, nil
}

func (tx *memTx) Put(name string, k, v []byte) error {
	if tx.readOnly {
		return kv.ErrDBReadOnly
	}
	t, err := tx.table(name)
	if err != nil {
		return err
	}
	t.Set(item{k: bytes.Clone(k), v: append([]byte{}, v...)})
	return nil
}

func (tx *memTx) Delete(name string, k []byte) error {
	if tx.readOnly {
		return kv.ErrDBReadOnly
	}
	t, err := tx.table(name)
	if err != nil {
		return err
	}
	t.Delete(item{k: k})
	return nil
}

func (tx *memTx) Count(name string) (uint64, error) {
	t, err := tx.table(name)
	if err != nil {
		return 0, err
	}
	return uint64(t.Len()), nil
}

func (tx *memTx) ListTables() ([]string, error) {
	res := make([]string, 0, len(tx.tables))
	for name := range tx.tables {
		res = append(res, name)
	}
	sort.Strings(res)
	return res, nil
}

func (tx *memTx) ForEach(name string, fromPrefix []byte, walker func(k, v []byte) error) error {
	t, err := tx.table(name)
	if err != nil {
		return err
	}
	var walkErr error
	t.Ascend(item{k: fromPrefix}, func(it item) bool {
		walkErr = walker(it.k, it.v)
		return walkErr == nil
	})
	return walkErr
}

func (tx *memTx) ForPrefix(name string, prefix []byte, walker func(k, v []byte) error) error {
	t, err := tx.table(name)
	if err != nil {
		return err
	}
	var walkErr error
	t.Ascend(item{k: prefix}, func(it item) bool {
		if !bytes.HasPrefix(it.k, prefix) {
			return false
		}
		walkErr = walker(it.k, it.v)
		return walkErr == nil
	})
	return walkErr
}

// Cursor must not be used after the tx mutates the same table.
func (tx *memTx) Cursor(name string) (kv.Cursor, error) {
	t, err := tx.table(name)
	if err != nil {
		return nil, err
	}
	return &memCursor{iter: t.Iter()}, nil
}

type memCursor struct {
	iter   btree.IterG[item]
	closed bool
}

func (c *memCursor) current(ok bool) ([]byte, []byte, error) {
	if !ok {
		return nil, nil, nil
	}
	it := c.iter.Item()
	return it.k, it.v, nil
}

func (c *memCursor) First() ([]byte, []byte, error) { return c.current(c.iter.First()) }
func (c *memCursor) Last() ([]byte, []byte, error)  { return c.current(c.iter.Last()) }
func (c *memCursor) Next() ([]byte, []byte, error)  { return c.current(c.iter.Next()) }

func (c *memCursor) Seek(seek []byte) ([]byte, []byte, error) {
	return c.current(c.iter.Seek(item{k: seek}))
}

func (c *memCursor) SeekExact(key []byte) ([]byte, []byte, error) {
	k, v, err := c.Seek(key)
	if err != nil || k == nil || !bytes.Equal(k, key) {
		return nil, nil, err
	}
	return k, v, nil
}

func (c *memCursor) Close() {
	if !c.closed {
		c.iter.Release()
		c.closed = true
	}
}
