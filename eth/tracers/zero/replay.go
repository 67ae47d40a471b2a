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
	"runtime/debug"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
)

// BlockContext is the per-block input of the replay, derived once from the header.
type BlockContext struct {
	Hash        common.Hash
	ParentHash  common.Hash
	Beneficiary common.Address
	Withdrawals []common.Address
	Env         BlockEnv
}

func NewBlockContext(block *ethtypes.Block) *BlockContext {
	header := block.Header()
	bctx := &BlockContext{
		Hash:        block.Hash(),
		ParentHash:  header.ParentHash,
		Beneficiary: header.Coinbase,
		Env: BlockEnv{
			Number:        header.Number.Uint64(),
			Coinbase:      header.Coinbase,
			Time:          header.Time,
			GasLimit:      header.GasLimit,
			ExcessBlobGas: header.ExcessBlobGas,
		},
	}
	if header.BaseFee != nil {
		bctx.Env.BaseFee, _ = uint256.FromBig(header.BaseFee)
	}
	if header.Difficulty != nil {
		bctx.Env.Difficulty, _ = uint256.FromBig(header.Difficulty)
	}
	if header.Difficulty == nil || header.Difficulty.Sign() == 0 {
		random := header.MixDigest
		bctx.Env.PrevRandao = &random
	}
	for _, w := range block.Withdrawals() {
		bctx.Withdrawals = append(bctx.Withdrawals, w.Address)
	}
	return bctx
}

// TxnCallback receives the diff of transaction i right after it executed and
// before it is committed into the working state.
type TxnCallback func(i int, txn *ethtypes.Transaction, receipt *ethtypes.Receipt, diff StateDiff) error

// Replayer executes the transactions of a block strictly in order, committing
// every diff into the working state before the next transaction runs.
type Replayer struct {
	executor Executor
	logger   log.Logger
}

func NewReplayer(executor Executor, logger log.Logger) *Replayer {
	return &Replayer{executor: executor, logger: logger}
}

// Replay runs all transactions against ws and returns the number of commits made.
// The diff of the last transaction is not committed: ws must not be read after
// Replay returns.
func (r *Replayer) Replay(
	ctx context.Context,
	ws WorkingState,
	bctx *BlockContext,
	txs ethtypes.Transactions,
	senders []common.Address,
	receipts ethtypes.Receipts,
	fn TxnCallback,
) (commits int, err error) {
	if err := validateReplayInput(txs, senders, receipts); err != nil {
		return 0, err
	}

	for i, txn := range txs {
		env := &Env{Block: &bctx.Env, Tx: txn, From: senders[i], TxIndex: i}
		diff, err := r.transact(ctx, ws, env)
		if err != nil {
			return commits, fmt.Errorf("%w: block %d tx %d (%x): %w", ErrExecution, bctx.Env.Number, i, txn.Hash(), err)
		}
		if err := fn(i, txn, receipts[i], diff); err != nil {
			return commits, err
		}
		if i == len(txs)-1 {
			break
		}
		if err := r.commit(ws, diff); err != nil {
			return commits, fmt.Errorf("%w: commit block %d tx %d (%x): %w", ErrExecution, bctx.Env.Number, i, txn.Hash(), err)
		}
		commits++
	}
	return commits, nil
}

func validateReplayInput(txs ethtypes.Transactions, senders []common.Address, receipts ethtypes.Receipts) error {
	if len(receipts) != len(txs) {
		return fmt.Errorf("%w: %d receipts, %d txs", ErrReceiptCountMismatch, len(receipts), len(txs))
	}
	if len(senders) != len(txs) {
		return fmt.Errorf("%w: %d senders, %d txs", ErrSenderCountMismatch, len(senders), len(txs))
	}
	for i, receipt := range receipts {
		if receipt == nil {
			return fmt.Errorf("%w: tx %d (%x)", ErrMissingReceipt, i, txs[i].Hash())
		}
	}
	return nil
}

func (r *Replayer) transact(ctx context.Context, ws WorkingState, env *Env) (diff StateDiff, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("[zero] executor panic", "tx", env.TxIndex, "err", rec, "stack", string(debug.Stack()))
			err = fmt.Errorf("executor panic: %v", rec)
		}
	}()
	return r.executor.Transact(ctx, ws, env)
}

func (r *Replayer) commit(ws WorkingState, diff StateDiff) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("commit panic: %v", rec)
		}
	}()
	return ws.Commit(diff)
}
