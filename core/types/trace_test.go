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


package types

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestContractCodeUsageJSON(t *testing.T) {
	hash := common.HexToHash("0x1234")

	enc, err := json.Marshal(CodeRead(hash))
	require.NoError(t, err)
	require.JSONEq(t, `{"read":"0x0000000000000000000000000000000000000000000000000000000000001234"}`, string(enc))

	enc, err = json.Marshal(CodeWrite([]byte{0x60, 0x01}))
	require.NoError(t, err)
	require.JSONEq(t, `{"write":"0x6001"}`, string(enc))

	var usage ContractCodeUsage
	require.NoError(t, json.Unmarshal([]byte(`{"write":"0x6001"}`), &usage))
	require.True(t, usage.IsWrite())
	require.False(t, usage.IsRead())

	require.ErrorIs(t, json.Unmarshal([]byte(`{}`), &usage), errAmbiguousCodeUsage)
	require.ErrorIs(t, json.Unmarshal([]byte(`{"read":"0x0000000000000000000000000000000000000000000000000000000000001234","write":"0x01"}`), &usage), errAmbiguousCodeUsage)

	var none *ContractCodeUsage
	require.False(t, none.IsRead())
	require.False(t, none.IsWrite())
}

func TestTxnTraceJSON(t *testing.T) {
	nonce := uint64(16)
	destructed := true
	key := common.HexToHash("0x01")
	trace := &TxnTrace{
		Balance:        uint256.NewInt(255),
		Nonce:          &nonce,
		StorageRead:    []common.Hash{key},
		StorageWritten: map[common.Hash]*uint256.Int{key: uint256.NewInt(0)},
		SelfDestructed: &destructed,
	}

	enc, err := json.Marshal(trace)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"balance": "0xff",
		"nonce": "0x10",
		"storage_read": ["0x0000000000000000000000000000000000000000000000000000000000000001"],
		"storage_written": {"0x0000000000000000000000000000000000000000000000000000000000000001": "0x0"},
		"self_destructed": true
	}`, string(enc))

	var dec TxnTrace
	require.NoError(t, json.Unmarshal(enc, &dec))
	require.Equal(t, *trace, dec)
}

func TestTxnTraceOmitsAbsentFields(t *testing.T) {
	enc, err := json.Marshal(&TxnTrace{})
	require.NoError(t, err)
	require.Equal(t, `{}`, string(enc))

	var dec TxnTrace
	require.NoError(t, json.Unmarshal([]byte(`{"self_destructed":false}`), &dec))
	require.Nil(t, dec.SelfDestructed)
}

func TestBlockTraceJSONFieldNames(t *testing.T) {
	addr := common.HexToAddress("0xaa")
	codeHash := common.HexToHash("0xbb")
	trace := BlockTrace{
		TriePreImages: NewTriePreImages(NewPartialTrieBuilder(common.HexToHash("0xcc")).Build(), nil),
		CodeDb:        map[common.Hash]hexutil.Bytes{codeHash: {0x00}},
		TxnInfo: []TxnInfo{{
			Traces: map[common.Address]*TxnTrace{addr: {}},
			Meta:   TxnMeta{ByteCode: []byte{0x01}, NewTxnTrieNode: []byte{0x01}, NewReceiptTrieNode: []byte{0x02}, GasUsed: 21000},
		}},
	}

	enc, err := json.Marshal(&trace)
	require.NoError(t, err)

	var generic map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(enc, &generic))
	require.Contains(t, generic, "trie_pre_images")
	require.Contains(t, generic, "code_db")
	require.Contains(t, generic, "txn_info")

	var txnInfo []map[string]map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(generic["txn_info"], &txnInfo))
	meta := txnInfo[0]["meta"]
	require.JSONEq(t, `"0x01"`, string(meta["byte_code"]))
	require.JSONEq(t, `"0x01"`, string(meta["new_txn_trie_node_byte"]))
	require.JSONEq(t, `"0x02"`, string(meta["new_receipt_trie_node_byte"]))
	require.JSONEq(t, `21000`, string(meta["gas_used"]))

	var dec BlockTrace
	require.NoError(t, json.Unmarshal(enc, &dec))
	require.Equal(t, uint64(21000), dec.GasUsed())
	require.Equal(t, common.HexToHash("0xcc"), dec.TriePreImages.StateTrie().Root())
	require.Equal(t, hexutil.Bytes{0x00}, dec.CodeDb[codeHash])
	require.Contains(t, dec.TxnInfo[0].Traces, addr)
}
