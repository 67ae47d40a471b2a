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
// Package kvtest holds behaviour checks shared by every kv.RwDB engine.
package kvtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/zerotracer/db/kv"
)

// Run executes the shared engine checks against databases produced by newDB.
// Every database must be opened with the kv.ZeroTraceDB table config.
func Run(t *testing.T, newDB func(t *testing.T) kv.RwDB) {
	t.Run("PutGetDelete", func(t *testing.T) { testPutGetDelete(t, newDB(t)) })
	t.Run("RollbackDiscards", func(t *testing.T) { testRollbackDiscards(t, newDB(t)) })
	t.Run("CursorOrder", func(t *testing.T) { testCursorOrder(t, newDB(t)) })
	t.Run("ReaderSnapshot", func(t *testing.T) { testReaderSnapshot(t, newDB(t)) })
	t.Run("SingleWriter", func(t *testing.T) { testSingleWriter(t, newDB(t)) })
	t.Run("UnknownTable", func(t *testing.T) { testUnknownTable(t, newDB(t)) })
}

func testPutGetDelete(t *testing.T, db kv.RwDB) {
	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		if err := tx.Put(kv.BlockTrace, []byte("a"), []byte("1")); err != nil {
			return err
		}
		return tx.Put(kv.BlockTrace, []byte("b"), []byte("2"))
	}))

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		v, err := tx.GetOne(kv.BlockTrace, []byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("1"), v)

		v, err = tx.GetOne(kv.BlockTrace, []byte("c"))
		require.NoError(t, err)
		require.Nil(t, v)

		has, err := tx.Has(kv.BlockTrace, []byte("b"))
		require.NoError(t, err)
		require.True(t, has)

		n, err := tx.Count(kv.BlockTrace)
		require.NoError(t, err)
		require.Equal(t, uint64(2), n)
		return nil
	}))

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		if err := tx.Delete(kv.BlockTrace, []byte("a")); err != nil {
			return err
		}
		// absent keys are not an error
		return tx.Delete(kv.BlockTrace, []byte("zz"))
	}))

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		has, err := tx.Has(kv.BlockTrace, []byte("a"))
		require.NoError(t, err)
		require.False(t, has)
		v, err := tx.GetOne(kv.BlockTrace, []byte("b"))
		require.NoError(t, err)
		require.Equal(t, []byte("2"), v)
		return nil
	}))
}

func testRollbackDiscards(t *testing.T, db kv.RwDB) {
	ctx := context.Background()
	errBoom := errors.New("boom")
	err := db.Update(ctx, func(tx kv.RwTx) error {
		if err := tx.Put(kv.BlockTrace, []byte("a"), []byte("1")); err != nil {
			return err
		}
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		n, err := tx.Count(kv.BlockTrace)
		require.NoError(t, err)
		require.Zero(t, n)
		return nil
	}))

	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.BlockTrace, []byte("a"), []byte("1")))
	tx.Rollback()
	tx.Rollback() // safe to call twice
	require.ErrorIs(t, tx.Commit(), kv.ErrTxDone)
}

func testCursorOrder(t *testing.T, db kv.RwDB) {
	ctx := context.Background()
	keys := [][]byte{{0, 2}, {0, 1}, {1, 0}, {0, 1, 5}}
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		for _, k := range keys {
			if err := tx.Put(kv.BlockTraceNumber, k, nil); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		c, err := tx.Cursor(kv.BlockTraceNumber)
		require.NoError(t, err)
		defer c.Close()

		var got [][]byte
		for k, _, err := c.First(); k != nil; k, _, err = c.Next() {
			require.NoError(t, err)
			got = append(got, append([]byte{}, k...))
		}
		require.Equal(t, [][]byte{{0, 1}, {0, 1, 5}, {0, 2}, {1, 0}}, got)

		k, _, err := c.Seek([]byte{0, 1, 6})
		require.NoError(t, err)
		require.Equal(t, []byte{0, 2}, k)

		k, _, err = c.SeekExact([]byte{0, 3})
		require.NoError(t, err)
		require.Nil(t, k)

		k, _, err = c.Last()
		require.NoError(t, err)
		require.Equal(t, []byte{1, 0}, k)

		k, _, err = c.Seek([]byte{2})
		require.NoError(t, err)
		require.Nil(t, k)

		var prefixed int
		require.NoError(t, tx.ForPrefix(kv.BlockTraceNumber, []byte{0, 1}, func(k, v []byte) error {
			prefixed++
			return nil
		}))
		require.Equal(t, 2, prefixed)

		var from int
		require.NoError(t, tx.ForEach(kv.BlockTraceNumber, []byte{0, 2}, func(k, v []byte) error {
			from++
			return nil
		}))
		require.Equal(t, 2, from)
		return nil
	}))
}

func testReaderSnapshot(t *testing.T, db kv.RwDB) {
	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		return tx.Put(kv.BlockTrace, []byte("a"), []byte("old"))
	}))

	ro, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer ro.Rollback()

	done := make(chan error)
	go func() {
		done <- db.Update(ctx, func(tx kv.RwTx) error {
			return tx.Put(kv.BlockTrace, []byte("a"), []byte("new"))
		})
	}()
	require.NoError(t, <-done)

	v, err := ro.GetOne(kv.BlockTrace, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("old"), v)
	ro.Rollback()

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		v, err := tx.GetOne(kv.BlockTrace, []byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("new"), v)
		return nil
	}))
}

func testSingleWriter(t *testing.T, db kv.RwDB) {
	ctx := context.Background()
	const writers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	errs := make(chan error, writers)
	active, maxActive := 0, 0
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- db.Update(ctx, func(tx kv.RwTx) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				time.Sleep(2 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return tx.Put(kv.BlockTrace, []byte{byte(i)}, []byte{byte(i)})
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, maxActive)

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		n, err := tx.Count(kv.BlockTrace)
		require.NoError(t, err)
		require.Equal(t, uint64(writers), n)
		return nil
	}))
}

func testUnknownTable(t *testing.T, db kv.RwDB) {
	err := db.View(context.Background(), func(tx kv.Tx) error {
		_, err := tx.GetOne("NoSuchTable", []byte("a"))
		return err
	})
	require.ErrorIs(t, err, kv.ErrUnknownTable)
}
