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


package exex

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/zerotracer/core/types"
	"github.com/erigontech/zerotracer/db/tracestore"
	"github.com/erigontech/zerotracer/metrics"
)

var (
	tracesReverted = metrics.GetOrCreateCounter("zero_traces_reverted")
	finishedHeight = metrics.GetOrCreateGauge("zero_finished_height")
)

// ExecutedBlock is a block as committed by the node, with the sender and the
// receipt of every transaction in block order.
type ExecutedBlock struct {
	Block    *ethtypes.Block
	Senders  []common.Address
	Receipts ethtypes.Receipts
}

func (b *ExecutedBlock) Hash() common.Hash { return b.Block.Hash() }
func (b *ExecutedBlock) Number() uint64    { return b.Block.NumberU64() }

// Chain is a contiguous segment of blocks in ascending order.
type Chain struct {
	Blocks []*ExecutedBlock
}

func (c *Chain) Tip() *ExecutedBlock {
	if c == nil || len(c.Blocks) == 0 {
		return nil
	}
	return c.Blocks[len(c.Blocks)-1]
}

// Notification reports a chain change: Reverted blocks left the canonical
// chain, Committed blocks joined it. Either may be nil. A reorg carries both.
type Notification struct {
	Reverted  *Chain
	Committed *Chain
}

// Event is sent back to the node once a committed chain has been processed.
type Event struct {
	FinishedHeight uint64
}

type Tracer interface {
	TraceBlock(ctx context.Context, block *ethtypes.Block, senders []common.Address, receipts ethtypes.Receipts) (*types.BlockTrace, error)
}

// ZeroTracer keeps the trace store in line with the canonical chain: it traces
// every committed block and deletes the traces of reverted ones.
type ZeroTracer struct {
	tracer        Tracer
	store         tracestore.Store
	notifications <-chan Notification
	events        chan<- Event
	logger        log.Logger
}

func NewZeroTracer(tracer Tracer, store tracestore.Store, notifications <-chan Notification, events chan<- Event, logger log.Logger) *ZeroTracer {
	return &ZeroTracer{
		tracer:        tracer,
		store:         store,
		notifications: notifications,
		events:        events,
		logger:        logger,
	}
}

// Run processes notifications in order until the channel is closed, ctx is
// cancelled or a notification fails. Any failure stops the extension.
func (e *ZeroTracer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-e.notifications:
			if !ok {
				return nil
			}
			if err := e.HandleNotification(ctx, n); err != nil {
				return err
			}
		}
	}
}

// HandleNotification reverts the whole reverted chain first and then traces
// the committed chain, acknowledging its tip.
func (e *ZeroTracer) HandleNotification(ctx context.Context, n Notification) error {
	if n.Reverted != nil {
		for _, b := range n.Reverted.Blocks {
			if err := e.revertBlock(ctx, b); err != nil {
				return err
			}
		}
	}

	if n.Committed == nil || len(n.Committed.Blocks) == 0 {
		return nil
	}
	for _, b := range n.Committed.Blocks {
		if err := e.traceAndCommitBlock(ctx, b); err != nil {
			return err
		}
	}

	tip := n.Committed.Tip().Number()
	if err := e.store.SetFinishedHeight(ctx, tip); err != nil {
		return err
	}
	finishedHeight.SetUint64(tip)
	select {
	case e.events <- Event{FinishedHeight: tip}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (e *ZeroTracer) traceAndCommitBlock(ctx context.Context, b *ExecutedBlock) error {
	start := time.Now()
	number, hash := b.Number(), b.Hash()
	e.logger.Info("[zero] Processing block", "number", number, "hash", hash, "txs", len(b.Block.Transactions()))

	trace, err := e.tracer.TraceBlock(ctx, b.Block, b.Senders, b.Receipts)
	if err != nil {
		return fmt.Errorf("trace block %d (%x): %w", number, hash, err)
	}
	if err := e.store.Put(ctx, hash, number, trace); err != nil {
		return err
	}
	e.logger.Debug("[zero] Stored block trace", "number", number, "hash", hash, "took", time.Since(start))
	return nil
}

func (e *ZeroTracer) revertBlock(ctx context.Context, b *ExecutedBlock) error {
	e.logger.Info("[zero] Reverting block", "number", b.Number(), "hash", b.Hash())
	if err := e.store.DeleteByHash(ctx, b.Hash()); err != nil {
		return err
	}
	tracesReverted.Inc()
	return nil
}
