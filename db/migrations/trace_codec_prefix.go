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


package migrations

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/db/tracestore"
)

var codecPrefixBatchSize = 1_000

var errBatchFull = errors.New("batch full")

// traceCodecPrefix moves schema 1.0 traces, stored as bare JSON, to the
// versioned blob layout of 1.1.
var traceCodecPrefix = Migration{
	Name: "trace_codec_prefix",
	Up: func(ctx context.Context, db kv.RwDB, progress []byte, BeforeCommit Callback, logger log.Logger) error {
		var upgradedTotal int
		for {
			var done bool
			if err := db.Update(ctx, func(tx kv.RwTx) error {
				type update struct{ k, v []byte }
				var (
					batch []update
					last  []byte
				)
				err := tx.ForEach(kv.BlockTrace, progress, func(k, v []byte) error {
					if progress != nil && bytes.Equal(k, progress) {
						return nil
					}
					if len(batch) >= codecPrefixBatchSize {
						return errBatchFull
					}
					last = bytes.Clone(k)
					if len(v) < 8 {
						return fmt.Errorf("block trace %x: value of %d bytes", k, len(v))
					}
					blob, upgraded := tracestore.UpgradeLegacyBlob(v[8:])
					if !upgraded {
						return nil
					}
					batch = append(batch, update{k: bytes.Clone(k), v: append(bytes.Clone(v[:8]), blob...)})
					return nil
				})
				if err != nil && !errors.Is(err, errBatchFull) {
					return err
				}
				for _, u := range batch {
					if err := tx.Put(kv.BlockTrace, u.k, u.v); err != nil {
						return err
					}
				}
				upgradedTotal += len(batch)

				if errors.Is(err, errBatchFull) {
					progress = last
					return BeforeCommit(tx, last, false)
				}
				done = true
				return BeforeCommit(tx, nil, true)
			}); err != nil {
				return err
			}
			if done {
				break
			}
			logger.Info("[migration] Upgrading trace blobs", "upgraded", upgradedTotal, "at", fmt.Sprintf("%x", progress))
		}
		logger.Info("[migration] Trace blobs upgraded", "upgraded", upgradedTotal)
		return nil
	},
}
