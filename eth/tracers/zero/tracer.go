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
package zero

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/zerotracer/core/types"
	"github.com/erigontech/zerotracer/metrics"
)

var (
	blocksTraced   = metrics.GetOrCreateCounter("zero_blocks_traced")
	txsTraced      = metrics.GetOrCreateCounter("zero_txs_traced")
	blockTraceTime = metrics.GetOrCreateSummary("zero_block_trace_seconds")
	witnessNodes   = metrics.GetOrCreateGauge("zero_witness_nodes")
)

// BlockTracer produces the BlockTrace of a block: it replays the block on top
// of its parent state, records per-transaction effects and finally assembles
// one witness for everything the block accessed.
type BlockTracer struct {
	host     Host
	replayer *Replayer
	logger   log.Logger
}

func NewBlockTracer(host Host, logger log.Logger) *BlockTracer {
	return &BlockTracer{
		host:     host,
		replayer: NewReplayer(host, logger),
		logger:   logger,
	}
}

// TraceBlock traces block given the senders and receipts of its transactions
// (both aligned with block.Transactions()). On error no partial trace is returned.
func (t *BlockTracer) TraceBlock(ctx context.Context, block *ethtypes.Block, senders []common.Address, receipts ethtypes.Receipts) (*types.BlockTrace, error) {
	start := time.Now()
	bctx := NewBlockContext(block)

	access := NewAccessSet()
	access.Seed(bctx.Beneficiary)
	for _, addr := range bctx.Withdrawals {
		access.Seed(addr)
	}

	preState, err := t.host.StateByBlockHash(ctx, bctx.ParentHash)
	if err != nil {
		return nil, fmt.Errorf("%w: parent %x of block %d: %w", ErrStateUnavailable, bctx.ParentHash, bctx.Env.Number, err)
	}
	ws, err := t.host.NewWorkingState(preState)
	if err != nil {
		return nil, fmt.Errorf("%w: working state for block %d: %w", ErrStateUnavailable, bctx.Env.Number, err)
	}

	txs := block.Transactions()
	recorder := newEffectRecorder(access)
	txnInfo := make([]types.TxnInfo, 0, len(txs))
	commits, err := t.replayer.Replay(ctx, ws, bctx, txs, senders, receipts,
		func(i int, txn *ethtypes.Transaction, receipt *ethtypes.Receipt, diff StateDiff) error {
			info, err := recorder.record(txn, receipt, diff)
			if err != nil {
				return err
			}
			txnInfo = append(txnInfo, info)
			return nil
		})
	if err != nil {
		return nil, err
	}

	// the witness proves the pre-block state, ws is not used anymore
	preImages, err := AssembleWitness(ctx, preState, access)
	if err != nil {
		return nil, fmt.Errorf("block %d: %w", bctx.Env.Number, err)
	}

	trace := &types.BlockTrace{
		TriePreImages: preImages,
		CodeDb:        recorder.codeDb,
		TxnInfo:       txnInfo,
	}

	nodes := WitnessNodes(&preImages)
	stats := access.Stats()
	blocksTraced.Inc()
	txsTraced.AddInt(len(txs))
	blockTraceTime.ObserveDuration(start)
	witnessNodes.SetInt(nodes)
	t.logger.Debug("[zero] Traced block", "number", bctx.Env.Number, "hash", bctx.Hash,
		"txs", len(txs), "commits", commits, "gas", recorder.cumGas, "accounts", stats.Addresses,
		"slots", stats.Slots, "witnessNodes", nodes, "code", len(recorder.codeDb), "took", time.Since(start))
	return trace, nil
}
