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


package zero

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type countingState struct {
	diffs []StateDiff
	err   error
}

func (s *countingState) Commit(diff StateDiff) error {
	if s.err != nil {
		return s.err
	}
	s.diffs = append(s.diffs, diff)
	return nil
}

func replayInput(n int) (ethtypes.Transactions, []common.Address, ethtypes.Receipts) {
	to := common.HexToAddress("0x99")
	var (
		txs      ethtypes.Transactions
		senders  []common.Address
		receipts ethtypes.Receipts
	)
	for i := 0; i < n; i++ {
		txs = append(txs, testTx(uint64(i), to))
		senders = append(senders, common.BigToAddress(big.NewInt(int64(i+1))))
		receipts = append(receipts, testReceipt(uint64(i+1)*21_000))
	}
	return txs, senders, receipts
}

func testBlockContext() *BlockContext {
	return &BlockContext{Env: BlockEnv{Number: 7}}
}

func TestReplayCommitsAllButLast(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := NewMockHost(ctrl)
	ws := &countingState{}
	bctx := testBlockContext()
	txs, senders, receipts := replayInput(3)

	var order []int
	for i := range txs {
		i := i
		host.EXPECT().Transact(gomock.Any(), ws, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ WorkingState, env *Env) (StateDiff, error) {
				require.Equal(t, i, env.TxIndex)
				require.Equal(t, senders[i], env.From)
				require.Equal(t, txs[i].Hash(), env.Tx.Hash())
				require.Same(t, &bctx.Env, env.Block)
				// every earlier diff is already committed
				require.Len(t, ws.diffs, i)
				return StateDiff{senders[i]: {Touched: true}}, nil
			})
	}

	commits, err := NewReplayer(host, log.New()).Replay(context.Background(), ws, bctx, txs, senders, receipts,
		func(i int, txn *ethtypes.Transaction, receipt *ethtypes.Receipt, diff StateDiff) error {
			order = append(order, i)
			require.Same(t, receipts[i], receipt)
			require.Contains(t, diff, senders[i])
			return nil
		})
	require.NoError(t, err)
	require.Equal(t, 2, commits)
	require.Len(t, ws.diffs, 2)
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestReplayEmptyBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := NewMockHost(ctrl)
	ws := &countingState{}

	commits, err := NewReplayer(host, log.New()).Replay(context.Background(), ws, testBlockContext(), nil, nil, nil,
		func(int, *ethtypes.Transaction, *ethtypes.Receipt, StateDiff) error {
			t.Fatal("callback on empty block")
			return nil
		})
	require.NoError(t, err)
	require.Zero(t, commits)
}

func TestReplayValidatesInput(t *testing.T) {
	noop := func(int, *ethtypes.Transaction, *ethtypes.Receipt, StateDiff) error { return nil }

	cases := []struct {
		name   string
		mutate func(ethtypes.Transactions, []common.Address, ethtypes.Receipts) (ethtypes.Transactions, []common.Address, ethtypes.Receipts)
		err    error
	}{
		{
			name: "missing receipt",
			mutate: func(txs ethtypes.Transactions, s []common.Address, r ethtypes.Receipts) (ethtypes.Transactions, []common.Address, ethtypes.Receipts) {
				r[1] = nil
				return txs, s, r
			},
			err: ErrMissingReceipt,
		},
		{
			name: "short receipts",
			mutate: func(txs ethtypes.Transactions, s []common.Address, r ethtypes.Receipts) (ethtypes.Transactions, []common.Address, ethtypes.Receipts) {
				return txs, s, r[:1]
			},
			err: ErrReceiptCountMismatch,
		},
		{
			name: "short senders",
			mutate: func(txs ethtypes.Transactions, s []common.Address, r ethtypes.Receipts) (ethtypes.Transactions, []common.Address, ethtypes.Receipts) {
				return txs, s[:1], r
			},
			err: ErrSenderCountMismatch,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// nothing is executed on invalid input
			host := NewMockHost(ctrl)
			txs, senders, receipts := tc.mutate(replayInput(2))

			_, err := NewReplayer(host, log.New()).Replay(context.Background(), &countingState{}, testBlockContext(), txs, senders, receipts, noop)
			require.ErrorIs(t, err, tc.err)
			require.True(t, IsInputError(err))
		})
	}
}

func TestReplayExecutionFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := NewMockHost(ctrl)
	ws := &countingState{}
	txs, senders, receipts := replayInput(3)
	boom := errors.New("out of gas in host")

	gomock.InOrder(
		host.EXPECT().Transact(gomock.Any(), ws, gomock.Any()).Return(StateDiff{}, nil),
		host.EXPECT().Transact(gomock.Any(), ws, gomock.Any()).Return(nil, boom),
	)

	var calls int
	commits, err := NewReplayer(host, log.New()).Replay(context.Background(), ws, testBlockContext(), txs, senders, receipts,
		func(int, *ethtypes.Transaction, *ethtypes.Receipt, StateDiff) error {
			calls++
			return nil
		})
	require.ErrorIs(t, err, ErrExecution)
	require.ErrorIs(t, err, boom)
	require.False(t, IsInputError(err))
	require.Equal(t, 1, commits)
	require.Equal(t, 1, calls)
}

func TestReplayRecoversExecutorPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := NewMockHost(ctrl)
	txs, senders, receipts := replayInput(1)

	host.EXPECT().Transact(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, WorkingState, *Env) (StateDiff, error) {
			panic("invalid opcode table")
		})

	_, err := NewReplayer(host, log.New()).Replay(context.Background(), &countingState{}, testBlockContext(), txs, senders, receipts,
		func(int, *ethtypes.Transaction, *ethtypes.Receipt, StateDiff) error { return nil })
	require.ErrorIs(t, err, ErrExecution)
	require.ErrorContains(t, err, "invalid opcode table")
}

func TestReplayCommitFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	host := NewMockHost(ctrl)
	commitErr := errors.New("overlay corrupted")
	ws := &countingState{err: commitErr}
	txs, senders, receipts := replayInput(2)

	host.EXPECT().Transact(gomock.Any(), ws, gomock.Any()).Return(StateDiff{}, nil).Times(1)

	_, err := NewReplayer(host, log.New()).Replay(context.Background(), ws, testBlockContext(), txs, senders, receipts,
		func(int, *ethtypes.Transaction, *ethtypes.Receipt, StateDiff) error { return nil })
	require.ErrorIs(t, err, ErrExecution)
	require.ErrorIs(t, err, commitErr)
}

func TestNewBlockContext(t *testing.T) {
	coinbase := common.HexToAddress("0xc0")
	recipient := common.HexToAddress("0xd0")
	excess := uint64(131072)
	header := &ethtypes.Header{
		ParentHash:    common.HexToHash("0xaa"),
		Coinbase:      coinbase,
		Number:        big.NewInt(100),
		GasLimit:      30_000_000,
		Time:          1_700_000_000,
		BaseFee:       big.NewInt(1_000_000_000),
		Difficulty:    big.NewInt(0),
		MixDigest:     common.HexToHash("0xbb"),
		ExcessBlobGas: &excess,
	}
	withdrawals := ethtypes.Withdrawals{{Index: 1, Validator: 2, Address: recipient, Amount: 3}}
	block := ethtypes.NewBlock(header, &ethtypes.Body{Withdrawals: withdrawals}, nil, trie.NewStackTrie(nil))

	bctx := NewBlockContext(block)
	require.Equal(t, block.Hash(), bctx.Hash)
	require.Equal(t, header.ParentHash, bctx.ParentHash)
	require.Equal(t, coinbase, bctx.Beneficiary)
	require.Equal(t, []common.Address{recipient}, bctx.Withdrawals)
	require.Equal(t, uint64(100), bctx.Env.Number)
	require.Equal(t, uint256.NewInt(1_000_000_000), bctx.Env.BaseFee)
	require.NotNil(t, bctx.Env.PrevRandao)
	require.Equal(t, header.MixDigest, *bctx.Env.PrevRandao)
	require.Equal(t, excess, *bctx.Env.ExcessBlobGas)

	header.Difficulty = big.NewInt(17)
	bctx = NewBlockContext(ethtypes.NewBlockWithHeader(header))
	require.Nil(t, bctx.Env.PrevRandao)
	require.Equal(t, uint256.NewInt(17), bctx.Env.Difficulty)
}
