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
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/zerotracer/core/types"
	"github.com/erigontech/zerotracer/metrics"
)

var (
	cacheHits   = metrics.GetOrCreateCounter(`zero_trace_cache{result="hit"}`)
	cacheMisses = metrics.GetOrCreateCounter(`zero_trace_cache{result="miss"}`)
)

// CachedStore keeps recently read traces by hash in front of another Store.
// Lookups by number always go to the underlying store since the hash at a
// number changes on reorgs. Cached traces are shared and must not be modified.
//
// Every write bumps gen before and after touching the underlying store. A
// read only fills the cache when no write overlapped it, so a trace that was
// deleted or overwritten is never put back.
type CachedStore struct {
	Store
	byHash *lru.Cache[common.Hash, *types.BlockTrace]

	mu  sync.Mutex
	gen uint64
}

func NewCachedStore(store Store, size int) (*CachedStore, error) {
	c, err := lru.New[common.Hash, *types.BlockTrace](size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: store, byHash: c}, nil
}

func (s *CachedStore) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *CachedStore) invalidate(hash common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.byHash.Remove(hash)
}

func (s *CachedStore) GetByHash(ctx context.Context, hash common.Hash) (*types.BlockTrace, error) {
	if trace, ok := s.byHash.Get(hash); ok {
		cacheHits.Inc()
		return trace, nil
	}
	cacheMisses.Inc()
	gen := s.generation()
	trace, err := s.Store.GetByHash(ctx, hash)
	if err != nil || trace == nil {
		return trace, err
	}
	s.mu.Lock()
	if s.gen == gen {
		s.byHash.Add(hash, trace)
	}
	s.mu.Unlock()
	return trace, nil
}

func (s *CachedStore) Put(ctx context.Context, hash common.Hash, number uint64, trace *types.BlockTrace) error {
	s.invalidate(hash)
	err := s.Store.Put(ctx, hash, number, trace)
	s.invalidate(hash)
	return err
}

func (s *CachedStore) DeleteByHash(ctx context.Context, hash common.Hash) error {
	s.invalidate(hash)
	err := s.Store.DeleteByHash(ctx, hash)
	s.invalidate(hash)
	return err
}

func (s *CachedStore) Len() int { return s.byHash.Len() }
