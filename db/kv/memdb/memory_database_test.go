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
	"context"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/db/kv/kvtest"
)

func TestMemoryDB(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.RwDB { return NewTestDB(t, kv.ZeroTraceDB) })
}

func TestReadOnlyTxRejectsWrites(t *testing.T) {
	db := NewTestDB(t, kv.ZeroTraceDB)
	tx, err := db.BeginRo(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	rw, ok := tx.(kv.RwTx)
	require.True(t, ok)
	require.ErrorIs(t, rw.Put(kv.BlockTrace, []byte("a"), nil), kv.ErrDBReadOnly)
}

func TestClosedDB(t *testing.T) {
	db := New(log.New(), kv.ZeroTraceDB)
	db.Close()
	_, err := db.BeginRo(context.Background())
	require.Error(t, err)
}
