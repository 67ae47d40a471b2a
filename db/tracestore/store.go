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


package tracestore

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/zerotracer/core/types"
	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/db/kv/dbutils"
	"github.com/erigontech/zerotracer/metrics"
)

//go:generate mockgen -destination=./store_mock.go -package=tracestore . Store

var (
	ErrCreateTables        = errors.New("failed to create trace tables")
	ErrInsertTrace         = errors.New("failed to insert block trace")
	ErrDeleteTrace         = errors.New("failed to delete block trace")
	ErrGetTrace            = errors.New("failed to get block trace")
	ErrIncompatibleVersion = errors.New("incompatible trace database version")
)

var traceBytes = metrics.GetOrCreateSummary("zero_trace_bytes")

// Reader is the query side of the store.
type Reader interface {
	// GetByHash returns nil, nil when no trace is stored for hash.
	GetByHash(ctx context.Context, hash common.Hash) (*types.BlockTrace, error)
	// GetByNumber returns the trace of the smallest hash stored at number, or nil, nil.
	GetByNumber(ctx context.Context, number uint64) (*types.BlockTrace, error)
}

type Store interface {
	Reader
	// Put stores trace under hash, replacing an earlier trace of the same hash.
	Put(ctx context.Context, hash common.Hash, number uint64, trace *types.BlockTrace) error
	// DeleteByHash removes the trace of hash. Deleting an absent trace is not an error.
	DeleteByHash(ctx context.Context, hash common.Hash) error
	// FinishedHeight returns the last height acknowledged by the trace extension.
	FinishedHeight(ctx context.Context) (uint64, bool, error)
	SetFinishedHeight(ctx context.Context, number uint64) error
}

// KvStore keeps traces in two tables of a kv.RwDB: BlockTrace (hash -> number +
// blob) and BlockTraceNumber (number + hash). A trace is written to both
// tables in one transaction.
type KvStore struct {
	db     kv.RwDB
	codec  Codec
	logger log.Logger
}

// New prepares db for trace storage and returns the store. On a writable db
// the schema version is written on first use and checked afterwards.
func New(ctx context.Context, db kv.RwDB, codec Codec, logger log.Logger) (*KvStore, error) {
	s := &KvStore{db: db, codec: codec, logger: logger}
	if err := s.createTables(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateTables, err)
	}
	return s, nil
}

func (s *KvStore) createTables(ctx context.Context) error {
	var (
		major, minor uint32
		ok           bool
	)
	if err := s.db.View(ctx, func(tx kv.Tx) (err error) {
		major, minor, ok, err = ReadSchemaVersion(tx)
		return err
	}); err != nil {
		return err
	}
	if ok {
		if major != kv.DBSchemaVersion.Major || minor > kv.DBSchemaVersion.Minor {
			return fmt.Errorf("%w: database %d.%d, binary %d.%d", ErrIncompatibleVersion, major, minor, kv.DBSchemaVersion.Major, kv.DBSchemaVersion.Minor)
		}
		if minor < kv.DBSchemaVersion.Minor {
			return fmt.Errorf("%w: database %d.%d needs migrations, open it writable once", ErrIncompatibleVersion, major, minor)
		}
		return nil
	}
	if s.db.ReadOnly() {
		return nil
	}
	s.logger.Info("[zero] Initialising trace database", "version", fmt.Sprintf("%d.%d", kv.DBSchemaVersion.Major, kv.DBSchemaVersion.Minor))
	return s.db.Update(ctx, func(tx kv.RwTx) error {
		return WriteSchemaVersion(tx, kv.DBSchemaVersion.Major, kv.DBSchemaVersion.Minor)
	})
}

func (s *KvStore) DB() kv.RwDB { return s.db }

func (s *KvStore) Put(ctx context.Context, hash common.Hash, number uint64, trace *types.BlockTrace) error {
	blob, err := s.codec.Encode(trace)
	if err != nil {
		return fmt.Errorf("%w: block %d (%x): %w", ErrInsertTrace, number, hash, err)
	}
	if err := s.db.Update(ctx, func(tx kv.RwTx) error {
		return WriteBlockTraceBlob(tx, hash, number, blob)
	}); err != nil {
		return fmt.Errorf("%w: block %d (%x): %w", ErrInsertTrace, number, hash, err)
	}
	traceBytes.Observe(float64(len(blob)))
	return nil
}

func (s *KvStore) GetByHash(ctx context.Context, hash common.Hash) (*types.BlockTrace, error) {
	var blob []byte
	if err := s.db.View(ctx, func(tx kv.Tx) (err error) {
		_, blob, err = ReadBlockTraceBlob(tx, hash)
		return err
	}); err != nil {
		if errors.Is(err, ErrDecodeTrace) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: hash %x: %w", ErrGetTrace, hash, err)
	}
	if blob == nil {
		return nil, nil
	}
	return s.codec.Decode(blob)
}

func (s *KvStore) GetByNumber(ctx context.Context, number uint64) (*types.BlockTrace, error) {
	var blob []byte
	if err := s.db.View(ctx, func(tx kv.Tx) error {
		hash, err := ReadBlockTraceHash(tx, number)
		if err != nil || hash == (common.Hash{}) {
			return err
		}
		_, blob, err = ReadBlockTraceBlob(tx, hash)
		return err
	}); err != nil {
		if errors.Is(err, ErrDecodeTrace) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: number %d: %w", ErrGetTrace, number, err)
	}
	if blob == nil {
		return nil, nil
	}
	return s.codec.Decode(blob)
}

func (s *KvStore) DeleteByHash(ctx context.Context, hash common.Hash) error {
	var deleted bool
	if err := s.db.Update(ctx, func(tx kv.RwTx) (err error) {
		deleted, err = DeleteBlockTrace(tx, hash)
		return err
	}); err != nil {
		return fmt.Errorf("%w: hash %x: %w", ErrDeleteTrace, hash, err)
	}
	if !deleted {
		s.logger.Debug("[zero] No trace to delete", "hash", hash)
	}
	return nil
}

func (s *KvStore) FinishedHeight(ctx context.Context) (number uint64, ok bool, err error) {
	err = s.db.View(ctx, func(tx kv.Tx) error {
		number, ok, err = ReadFinishedHeight(tx)
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("%w: finished height: %w", ErrGetTrace, err)
	}
	return number, ok, nil
}

func (s *KvStore) SetFinishedHeight(ctx context.Context, number uint64) error {
	if err := s.db.Update(ctx, func(tx kv.RwTx) error {
		return WriteFinishedHeight(tx, number)
	}); err != nil {
		return fmt.Errorf("%w: finished height %d: %w", ErrInsertTrace, number, err)
	}
	return nil
}

// Count returns the number of stored traces.
func (s *KvStore) Count(ctx context.Context) (n uint64, err error) {
	err = s.db.View(ctx, func(tx kv.Tx) error {
		n, err = tx.Count(kv.BlockTrace)
		return err
	})
	return n, err
}

// Walk calls f for every stored trace index entry in ascending block number order.
func (s *KvStore) Walk(ctx context.Context, from uint64, f func(number uint64, hash common.Hash) error) error {
	return s.db.View(ctx, func(tx kv.Tx) error {
		return tx.ForEach(kv.BlockTraceNumber, dbutils.EncodeBlockNumber(from), func(k, _ []byte) error {
			number, hash, err := dbutils.DecodeBlockTraceNumberKey(k)
			if err != nil {
				return err
			}
			return f(number, hash)
		})
	})
}
