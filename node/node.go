// Copyright 2025 The Erigon Authors
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


// Package node wires the trace store, the tracing extension and the zero RPC
// namespace together for embedding into an execution client.
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gofrs/flock"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/db/kv/mdbx"
	"github.com/erigontech/zerotracer/db/kv/memdb"
	"github.com/erigontech/zerotracer/db/migrations"
	"github.com/erigontech/zerotracer/db/tracestore"
	"github.com/erigontech/zerotracer/eth/exex"
	"github.com/erigontech/zerotracer/eth/tracers/zero"
	"github.com/erigontech/zerotracer/node/nodecfg"
	"github.com/erigontech/zerotracer/turbo/jsonrpc"
)

var (
	ErrNodeReadOnly = errors.New("node is opened in read-only mode")
	ErrNoDataDir    = errors.New("datadir is not set")
)

// Node owns the trace database of one datadir.
type Node struct {
	config  nodecfg.Config
	logger  log.Logger
	dirLock *flock.Flock

	db     kv.RwDB
	store  *tracestore.KvStore
	traces tracestore.Store

	closeOnce sync.Once
}

// New opens the trace database described by config. Unless the node is
// read-only or in-memory, it holds the datadir lock until Close.
func New(ctx context.Context, config nodecfg.Config, logger log.Logger) (*Node, error) {
	n := &Node{config: config, logger: logger}

	if config.InMem && config.ReadOnly {
		return nil, errors.New("in-memory database can not be opened read-only")
	}
	if !config.InMem {
		if config.Dirs.DataDir == "" {
			return nil, ErrNoDataDir
		}
		if !config.ReadOnly {
			if err := config.Dirs.MkdirAll(); err != nil {
				return nil, err
			}
			_, l, err := config.Dirs.MustFlock()
			if err != nil {
				return nil, err
			}
			n.dirLock = l
		}
	}

	db, err := n.openDatabase(ctx)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.db = db

	if !config.ReadOnly {
		if err := migrations.NewMigrator(kv.ZeroTraceDB).Apply(ctx, db, logger); err != nil {
			n.Close()
			return nil, err
		}
	}

	store, err := tracestore.New(ctx, db, tracestore.NewCodec(config.Compression), logger)
	if err != nil {
		n.Close()
		return nil, err
	}
	n.store = store
	n.traces = store
	if config.TraceCacheSize > 0 {
		cached, err := tracestore.NewCachedStore(store, config.TraceCacheSize)
		if err != nil {
			n.Close()
			return nil, err
		}
		n.traces = cached
	}

	logger.Info("[zero] Trace store opened", "path", config.Dirs.TraceData, "inmem", config.InMem,
		"readonly", config.ReadOnly, "compression", config.Compression, "cache", config.TraceCacheSize)
	return n, nil
}

func (n *Node) openDatabase(ctx context.Context) (kv.RwDB, error) {
	if n.config.InMem {
		return memdb.New(n.logger, kv.ZeroTraceDB), nil
	}
	opts := mdbx.NewMDBX(n.logger).Label(kv.ZeroTraceDB).Path(n.config.Dirs.TraceData)
	if n.config.DBSizeLimit > 0 {
		opts = opts.MapSize(n.config.DBSizeLimit)
	}
	if n.config.ReadOnly {
		opts = opts.Readonly()
	}
	db, err := opts.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}
	return db, nil
}

func (n *Node) Config() nodecfg.Config { return n.config }

// Store is the store served to readers and writers, cached when configured.
func (n *Node) Store() tracestore.Store { return n.traces }

// KvStore is the uncached store, for maintenance such as walking all traces.
func (n *Node) KvStore() *tracestore.KvStore { return n.store }

// APIs returns the zero RPC namespace over the node's store.
func (n *Node) APIs() []rpc.API {
	return jsonrpc.APIList(n.traces, n.logger)
}

// InstallExEx builds the tracing extension fed by notifications. The caller
// runs it with Run and drains events.
func (n *Node) InstallExEx(host zero.Host, notifications <-chan exex.Notification, events chan<- exex.Event) (*exex.ZeroTracer, error) {
	if n.config.ReadOnly {
		return nil, ErrNodeReadOnly
	}
	tracer := zero.NewBlockTracer(host, n.logger)
	return exex.NewZeroTracer(tracer, n.traces, notifications, events, n.logger), nil
}

// Close releases the database and the datadir lock. It is safe to call more than once.
func (n *Node) Close() {
	n.closeOnce.Do(func() {
		if n.db != nil {
			n.db.Close()
		}
		if n.dirLock != nil {
			if err := n.dirLock.Unlock(); err != nil {
				n.logger.Warn("[zero] Failed to release datadir lock", "err", err)
			}
		}
	})
}
