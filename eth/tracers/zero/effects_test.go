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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/zerotracer/core/types"
)

func testTx(nonce uint64, to common.Address) *ethtypes.Transaction {
	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      100_000,
		GasPrice: big.NewInt(7),
	})
}

func testReceipt(cumGas uint64) *ethtypes.Receipt {
	return &ethtypes.Receipt{
		Type:              ethtypes.LegacyTxType,
		Status:            ethtypes.ReceiptStatusSuccessful,
		CumulativeGasUsed: cumGas,
	}
}

func TestRecordGasUsedIsPrefixDifference(t *testing.T) {
	r := newEffectRecorder(NewAccessSet())
	to := common.HexToAddress("0x11")

	var used []uint64
	for i, cum := range []uint64{21_000, 50_000, 50_000} {
		info, err := r.record(testTx(uint64(i), to), testReceipt(cum), StateDiff{})
		require.NoError(t, err)
		used = append(used, info.Meta.GasUsed)
	}
	require.Equal(t, []uint64{21_000, 29_000, 0}, used)
	require.Equal(t, uint64(50_000), r.cumGas)

	_, err := r.record(testTx(3, to), testReceipt(40_000), StateDiff{})
	require.ErrorIs(t, err, ErrCumulativeGasDecreased)
	require.True(t, IsInputError(err))
}

func TestRecordMetaEncodings(t *testing.T) {
	r := newEffectRecorder(NewAccessSet())
	emitter := common.HexToAddress("0x22")
	txn := testTx(0, emitter)
	receipt := testReceipt(30_000)
	receipt.Logs = []*ethtypes.Log{{
		Address: emitter,
		Topics:  []common.Hash{common.HexToHash("0xfeed")},
		Data:    []byte{1, 2, 3},
	}}

	info, err := r.record(txn, receipt, StateDiff{})
	require.NoError(t, err)

	txBytes, err := txn.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, hexutil.Bytes(txBytes), info.Meta.ByteCode)
	require.Equal(t, info.Meta.ByteCode, info.Meta.NewTxnTrieNode)

	var decoded ethtypes.Receipt
	require.NoError(t, decoded.UnmarshalBinary(info.Meta.NewReceiptTrieNode))
	require.Equal(t, receipt.CumulativeGasUsed, decoded.CumulativeGasUsed)
	require.Len(t, decoded.Logs, 1)
	require.NotEqual(t, ethtypes.Bloom{}, decoded.Bloom)
	require.True(t, decoded.Bloom.Test(emitter.Bytes()))
	// the caller's receipt is left as is
	require.Equal(t, ethtypes.Bloom{}, receipt.Bloom)
}

func TestRecordAccountTraces(t *testing.T) {
	access := NewAccessSet()
	r := newEffectRecorder(access)

	sender := common.HexToAddress("0x01")
	loaded := common.HexToAddress("0x02")
	contract := common.HexToAddress("0x03")
	created := common.HexToAddress("0x04")
	destructed := common.HexToAddress("0x05")

	code := []byte{0x60, 0x00, 0x60, 0x00, 0xf3}
	codeHash := crypto.Keccak256Hash(code)
	newCode := []byte{0x60, 0x01}
	newCodeHash := crypto.Keccak256Hash(newCode)

	keyRead := common.HexToHash("0x0a")
	keyWritten := common.HexToHash("0x0b")
	keyRead2 := common.HexToHash("0x09")

	diff := StateDiff{
		sender: {Balance: *uint256.NewInt(90), Nonce: 1, CodeHash: ethtypes.EmptyCodeHash, Touched: true},
		loaded: {Balance: *uint256.NewInt(5), CodeHash: ethtypes.EmptyCodeHash},
		contract: {
			CodeHash: codeHash,
			Code:     code,
			Storage: map[common.Hash]StorageSlot{
				keyRead:    {Original: *uint256.NewInt(3), Present: *uint256.NewInt(3)},
				keyRead2:   {},
				keyWritten: {Original: *uint256.NewInt(3), Present: *uint256.NewInt(4)},
			},
			Touched: true,
		},
		created:    {Nonce: 1, CodeHash: newCodeHash, Code: newCode, Created: true, Touched: true},
		destructed: {CodeHash: codeHash, SelfDestructed: true, Touched: true},
	}

	info, err := r.record(testTx(0, contract), testReceipt(21_000), diff)
	require.NoError(t, err)
	require.Len(t, info.Traces, 5)

	s := info.Traces[sender]
	require.Equal(t, uint256.NewInt(90), s.Balance)
	require.Equal(t, uint64(1), *s.Nonce)
	require.Nil(t, s.CodeUsage)
	require.Nil(t, s.SelfDestructed)

	l := info.Traces[loaded]
	require.Equal(t, &types.TxnTrace{}, l)

	c := info.Traces[contract]
	require.Equal(t, []common.Hash{keyRead2, keyRead}, c.StorageRead)
	require.Equal(t, map[common.Hash]*uint256.Int{keyWritten: uint256.NewInt(4)}, c.StorageWritten)
	require.True(t, c.CodeUsage.IsRead())
	require.Equal(t, codeHash, *c.CodeUsage.Read)

	cr := info.Traces[created]
	require.True(t, cr.CodeUsage.IsWrite())
	require.Equal(t, hexutil.Bytes(newCode), cr.CodeUsage.Write)

	d := info.Traces[destructed]
	require.NotNil(t, d.SelfDestructed)
	require.True(t, *d.SelfDestructed)
	// code of the destructed account was never loaded
	require.Nil(t, d.CodeUsage)

	require.Equal(t, map[common.Hash]hexutil.Bytes{codeHash: code, newCodeHash: newCode}, r.codeDb)

	for addr := range diff {
		require.True(t, access.HasAddress(addr), addr)
	}
	require.Equal(t, []common.Hash{keyRead2, keyRead, keyWritten}, access.Keys(contract))
	require.Empty(t, access.Keys(sender))
}
