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
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/db/kv/memdb"
	"github.com/erigontech/zerotracer/db/tracestore"
	"github.com/erigontech/zerotracer/eth/tracers/zero"
	"github.com/erigontech/zerotracer/eth/tracers/zero/zerotest"
)

var (
	genesisHash = common.HexToHash("0x9e9e")
	coinbase    = common.HexToAddress("0xc0ffee")
	sender      = common.HexToAddress("0x5e9d")
	recipient   = common.HexToAddress("0x7ec1")
)

func world() zerotest.World {
	return zerotest.World{
		coinbase: {Balance: *uint256.NewInt(1)},
		sender:   {Balance: *uint256.NewInt(1_000_000)},
	}
}

func transfer(ws *zerotest.WorkingState, env *zero.Env) (zero.StateDiff, error) {
	txn := ws.Begin()
	txn.Transfer(env.From, recipient, 10)
	return txn.Diff(), nil
}

// newChain builds n single-transfer blocks on top of parent, registering the
// pre-state of each block with host.
func newChain(t *testing.T, host *zerotest.Host, parent common.Hash, first uint64, n int, extra uint64) *Chain {
	t.Helper()
	chain := &Chain{}
	for i := 0; i < n; i++ {
		host.SetState(parent, world())
		to := recipient
		txn := ethtypes.NewTx(&ethtypes.LegacyTx{Nonce: uint64(i), To: &to, Value: big.NewInt(10), Gas: 21_000, GasPrice: big.NewInt(1)})
		header := &ethtypes.Header{
			ParentHash: parent,
			Coinbase:   coinbase,
			Number:     new(big.Int).SetUint64(first + uint64(i)),
			GasLimit:   30_000_000,
			Difficulty: big.NewInt(0),
			Extra:      new(big.Int).SetUint64(extra).Bytes(),
		}
		block := ethtypes.NewBlock(header, &ethtypes.Body{Transactions: ethtypes.Transactions{txn}}, nil, trie.NewStackTrie(nil))
		chain.Blocks = append(chain.Blocks, &ExecutedBlock{
			Block:    block,
			Senders:  []common.Address{sender},
			Receipts: ethtypes.Receipts{{Status: ethtypes.ReceiptStatusSuccessful, CumulativeGasUsed: 21_000}},
		})
		parent = block.Hash()
	}
	return chain
}

func newTestStore(t *testing.T) *tracestore.KvStore {
	t.Helper()
	s, err := tracestore.New(context.Background(), memdb.NewTestDB(t, kv.ZeroTraceDB), tracestore.NewCodec(true), log.New())
	require.NoError(t, err)
	return s
}

func runExtension(t *testing.T, e *ZeroTracer) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	return done
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(10 * time.Second):
		t.Fatal("no event")
		return Event{}
	}
}

func TestCommitStoresTracesAndAcknowledges(t *testing.T) {
	ctx := context.Background()
	host := zerotest.NewHost(transfer)
	store := newTestStore(t)
	notifications := make(chan Notification)
	events := make(chan Event, 1)
	e := NewZeroTracer(zero.NewBlockTracer(host, log.New()), store, notifications, events, log.New())
	done := runExtension(t, e)

	chain := newChain(t, host, genesisHash, 1, 3, 0)
	notifications <- Notification{Committed: chain}
	require.Equal(t, Event{FinishedHeight: 3}, waitEvent(t, events))

	for _, b := range chain.Blocks {
		trace, err := store.GetByHash(ctx, b.Hash())
		require.NoError(t, err)
		require.NotNil(t, trace)
		require.Len(t, trace.TxnInfo, 1)
		require.Equal(t, uint64(21_000), trace.GasUsed())

		byNumber, err := store.GetByNumber(ctx, b.Number())
		require.NoError(t, err)
		require.Equal(t, trace, byNumber)
	}
	height, ok, err := store.FinishedHeight(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(3), height)

	close(notifications)
	require.NoError(t, <-done)
}

func TestReorgRevertsThenCommits(t *testing.T) {
	ctx := context.Background()
	host := zerotest.NewHost(transfer)
	store := newTestStore(t)
	events := make(chan Event, 2)
	e := NewZeroTracer(zero.NewBlockTracer(host, log.New()), store, nil, events, log.New())

	old := newChain(t, host, genesisHash, 1, 2, 0)
	require.NoError(t, e.HandleNotification(ctx, Notification{Committed: old}))

	// block 1 stays, block 2 is replaced by two new blocks
	reverted := &Chain{Blocks: old.Blocks[1:]}
	replacement := newChain(t, host, old.Blocks[0].Hash(), 2, 2, 1)
	require.NoError(t, e.HandleNotification(ctx, Notification{Reverted: reverted, Committed: replacement}))
	require.Equal(t, Event{FinishedHeight: 2}, <-events)
	require.Equal(t, Event{FinishedHeight: 3}, <-events)

	trace, err := store.GetByHash(ctx, old.Blocks[1].Hash())
	require.NoError(t, err)
	require.Nil(t, trace)

	for _, b := range append(old.Blocks[:1:1], replacement.Blocks...) {
		trace, err := store.GetByHash(ctx, b.Hash())
		require.NoError(t, err)
		require.NotNil(t, trace, b.Number())
	}

	// a revert without a new commit is not acknowledged
	require.NoError(t, e.HandleNotification(ctx, Notification{Reverted: replacement}))
	require.Empty(t, events)
	for _, b := range replacement.Blocks {
		trace, err := store.GetByNumber(ctx, b.Number())
		require.NoError(t, err)
		require.Nil(t, trace)
	}
}

func TestTraceFailureHaltsExtension(t *testing.T) {
	ctx := context.Background()
	execErr := errors.New("bad opcode")
	var calls int
	host := zerotest.NewHost(func(ws *zerotest.WorkingState, env *zero.Env) (zero.StateDiff, error) {
		calls++
		if calls == 2 {
			return nil, execErr
		}
		return transfer(ws, env)
	})
	store := newTestStore(t)
	notifications := make(chan Notification, 1)
	events := make(chan Event, 1)
	e := NewZeroTracer(zero.NewBlockTracer(host, log.New()), store, notifications, events, log.New())

	chain := newChain(t, host, genesisHash, 1, 2, 0)
	notifications <- Notification{Committed: chain}
	err := <-runExtension(t, e)
	require.ErrorIs(t, err, zero.ErrExecution)
	require.ErrorIs(t, err, execErr)

	trace, err := store.GetByHash(ctx, chain.Blocks[0].Hash())
	require.NoError(t, err)
	require.NotNil(t, trace)
	trace, err = store.GetByHash(ctx, chain.Blocks[1].Hash())
	require.NoError(t, err)
	require.Nil(t, trace)

	require.Empty(t, events)
	_, ok, err := store.FinishedHeight(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreFailureHaltsExtension(t *testing.T) {
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	store := tracestore.NewMockStore(ctrl)
	host := zerotest.NewHost(transfer)
	e := NewZeroTracer(zero.NewBlockTracer(host, log.New()), store, nil, make(chan Event, 1), log.New())

	chain := newChain(t, host, genesisHash, 1, 1, 0)
	insertErr := tracestore.ErrInsertTrace
	deleteErr := tracestore.ErrDeleteTrace
	gomock.InOrder(
		store.EXPECT().DeleteByHash(gomock.Any(), chain.Blocks[0].Hash()).Return(deleteErr),
		store.EXPECT().Put(gomock.Any(), chain.Blocks[0].Hash(), uint64(1), gomock.Any()).Return(insertErr),
	)

	err := e.HandleNotification(ctx, Notification{Reverted: chain, Committed: chain})
	require.ErrorIs(t, err, deleteErr)
	err = e.HandleNotification(ctx, Notification{Committed: chain})
	require.ErrorIs(t, err, insertErr)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := NewZeroTracer(nil, nil, make(chan Notification), make(chan Event), log.New())
	cancel()
	require.ErrorIs(t, e.Run(ctx), context.Canceled)
}
