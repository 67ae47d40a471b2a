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
	"bytes"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/erigontech/zerotracer/core/types"
)

// effectRecorder turns the diff of each replayed transaction into a TxnInfo.
// The code db, access set and running cumulative gas are shared by all
// transactions of one block.
type effectRecorder struct {
	access *AccessSet
	codeDb map[common.Hash]hexutil.Bytes
	cumGas uint64
}

func newEffectRecorder(access *AccessSet) *effectRecorder {
	return &effectRecorder{
		access: access,
		codeDb: make(map[common.Hash]hexutil.Bytes),
	}
}

func (r *effectRecorder) record(txn *ethtypes.Transaction, receipt *ethtypes.Receipt, diff StateDiff) (types.TxnInfo, error) {
	meta, err := r.txnMeta(txn, receipt)
	if err != nil {
		return types.TxnInfo{}, err
	}

	traces := make(map[common.Address]*types.TxnTrace, len(diff))
	for addr, acc := range diff {
		if acc == nil {
			continue
		}
		traces[addr] = r.accountTrace(addr, acc)
	}
	return types.TxnInfo{Traces: traces, Meta: meta}, nil
}

func (r *effectRecorder) txnMeta(txn *ethtypes.Transaction, receipt *ethtypes.Receipt) (types.TxnMeta, error) {
	if receipt.CumulativeGasUsed < r.cumGas {
		return types.TxnMeta{}, fmt.Errorf("%w: tx %x: %d < %d", ErrCumulativeGasDecreased, txn.Hash(), receipt.CumulativeGasUsed, r.cumGas)
	}
	gasUsed := receipt.CumulativeGasUsed - r.cumGas
	r.cumGas = receipt.CumulativeGasUsed

	txBytes, err := txn.MarshalBinary()
	if err != nil {
		return types.TxnMeta{}, fmt.Errorf("encode tx %x: %w", txn.Hash(), err)
	}
	receiptBytes, err := encodeReceipt(receipt)
	if err != nil {
		return types.TxnMeta{}, fmt.Errorf("encode receipt of tx %x: %w", txn.Hash(), err)
	}
	return types.TxnMeta{
		ByteCode:           txBytes,
		NewTxnTrieNode:     txBytes,
		NewReceiptTrieNode: receiptBytes,
		GasUsed:            gasUsed,
	}, nil
}

// encodeReceipt returns the consensus encoding of the receipt, the value stored
// in the receipt trie. The bloom is derived from the logs when the receipt
// carries none.
func encodeReceipt(receipt *ethtypes.Receipt) ([]byte, error) {
	rcpt := *receipt
	if rcpt.Bloom == (ethtypes.Bloom{}) && len(rcpt.Logs) > 0 {
		rcpt.Bloom = ethtypes.CreateBloom(ethtypes.Receipts{&rcpt})
	}
	return rcpt.MarshalBinary()
}

func (r *effectRecorder) accountTrace(addr common.Address, acc *AccountDiff) *types.TxnTrace {
	// every loaded account needs an account proof, even without storage access
	r.access.Seed(addr)

	trace := &types.TxnTrace{}
	if acc.Touched {
		trace.Balance = new(uint256.Int).Set(&acc.Balance)
		nonce := acc.Nonce
		trace.Nonce = &nonce
	}

	for key, slot := range acc.Storage {
		if slot.IsChanged() {
			if trace.StorageWritten == nil {
				trace.StorageWritten = make(map[common.Hash]*uint256.Int)
			}
			trace.StorageWritten[key] = new(uint256.Int).Set(&slot.Present)
			r.access.Record(addr, key, AccessWrite)
		} else {
			trace.StorageRead = append(trace.StorageRead, key)
			r.access.Record(addr, key, AccessRead)
		}
	}
	slices.SortFunc(trace.StorageRead, func(a, b common.Hash) int { return bytes.Compare(a[:], b[:]) })

	trace.CodeUsage = r.codeUsage(acc)

	if acc.SelfDestructed {
		destructed := true
		trace.SelfDestructed = &destructed
	}
	return trace
}

func (r *effectRecorder) codeUsage(acc *AccountDiff) *types.ContractCodeUsage {
	if acc.CodeHash == ethtypes.EmptyCodeHash || acc.CodeHash == (common.Hash{}) {
		return nil
	}
	if acc.Code == nil {
		return nil
	}
	r.codeDb[acc.CodeHash] = common.CopyBytes(acc.Code)
	if acc.Created {
		return types.CodeWrite(acc.Code)
	}
	return types.CodeRead(acc.CodeHash)
}
