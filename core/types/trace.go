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

// Trace types for sending proof information to a zk prover as defined in https://github.com/0xPolygonZero/proof-protocol-decoder.
package types

import (
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

var errAmbiguousCodeUsage = errors.New("code usage must be either read or write")

// ContractCodeUsage is either a read of already deployed code (by hash) or
// the write of code created by the transaction. A nil *ContractCodeUsage
// means the account's code was not used.
type ContractCodeUsage struct {
	Read  *common.Hash  `json:"read,omitempty"`
	Write hexutil.Bytes `json:"write,omitempty"`
}

func CodeRead(codeHash common.Hash) *ContractCodeUsage {
	return &ContractCodeUsage{Read: &codeHash}
}

func CodeWrite(code []byte) *ContractCodeUsage {
	return &ContractCodeUsage{Write: common.CopyBytes(code)}
}

func (c *ContractCodeUsage) IsWrite() bool { return c != nil && c.Read == nil && len(c.Write) > 0 }
func (c *ContractCodeUsage) IsRead() bool  { return c != nil && c.Read != nil }

func (c *ContractCodeUsage) UnmarshalJSON(input []byte) error {
	type usage ContractCodeUsage
	var dec usage
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if (dec.Read == nil) == (len(dec.Write) == 0) {
		return errAmbiguousCodeUsage
	}
	*c = ContractCodeUsage(dec)
	return nil
}

// Uint256 marshals as 0x-prefixed hex. uint256.Int on its own marshals in decimal.
type Uint256 struct {
	uint256.Int
}

func (u Uint256) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Hex())
}

// TxnTrace is the effect of one transaction on one account.
type TxnTrace struct {
	Balance        *uint256.Int
	Nonce          *uint64
	StorageRead    []common.Hash
	StorageWritten map[common.Hash]*uint256.Int
	CodeUsage      *ContractCodeUsage
	// SelfDestructed is either nil or true.
	SelfDestructed *bool
}

type txnTraceHex struct {
	Balance        *Uint256                 `json:"balance,omitempty"`
	Nonce          *hexutil.Uint64          `json:"nonce,omitempty"`
	StorageRead    []common.Hash            `json:"storage_read,omitempty"`
	StorageWritten map[common.Hash]*Uint256 `json:"storage_written,omitempty"`
	CodeUsage      *ContractCodeUsage       `json:"code_usage,omitempty"`
	SelfDestructed *bool                    `json:"self_destructed,omitempty"`
}

func (t *TxnTrace) MarshalJSON() ([]byte, error) {
	tHex := txnTraceHex{
		StorageRead:    t.StorageRead,
		CodeUsage:      t.CodeUsage,
		SelfDestructed: t.SelfDestructed,
	}
	if t.Balance != nil {
		tHex.Balance = &Uint256{*t.Balance}
	}
	if t.Nonce != nil {
		nonce := hexutil.Uint64(*t.Nonce)
		tHex.Nonce = &nonce
	}
	if len(t.StorageWritten) > 0 {
		tHex.StorageWritten = make(map[common.Hash]*Uint256, len(t.StorageWritten))
		for k, v := range t.StorageWritten {
			if v != nil {
				tHex.StorageWritten[k] = &Uint256{*v}
			}
		}
	}
	return json.Marshal(tHex)
}

func (t *TxnTrace) UnmarshalJSON(input []byte) error {
	var tHex txnTraceHex
	if err := json.Unmarshal(input, &tHex); err != nil {
		return err
	}
	*t = TxnTrace{
		StorageRead: tHex.StorageRead,
		CodeUsage:   tHex.CodeUsage,
	}
	if tHex.Balance != nil {
		t.Balance = new(uint256.Int).Set(&tHex.Balance.Int)
	}
	if tHex.Nonce != nil {
		nonce := uint64(*tHex.Nonce)
		t.Nonce = &nonce
	}
	if len(tHex.StorageWritten) > 0 {
		t.StorageWritten = make(map[common.Hash]*uint256.Int, len(tHex.StorageWritten))
		for k, v := range tHex.StorageWritten {
			if v != nil {
				t.StorageWritten[k] = new(uint256.Int).Set(&v.Int)
			}
		}
	}
	if tHex.SelfDestructed != nil && *tHex.SelfDestructed {
		t.SelfDestructed = tHex.SelfDestructed
	}
	return nil
}

type TxnMeta struct {
	ByteCode           hexutil.Bytes `json:"byte_code"`
	NewTxnTrieNode     hexutil.Bytes `json:"new_txn_trie_node_byte"`
	NewReceiptTrieNode hexutil.Bytes `json:"new_receipt_trie_node_byte"`
	GasUsed            uint64        `json:"gas_used"`
}

type TxnInfo struct {
	Traces map[common.Address]*TxnTrace `json:"traces"`
	Meta   TxnMeta                      `json:"meta"`
}

type BlockTrace struct {
	TriePreImages TriePreImages                 `json:"trie_pre_images"`
	CodeDb        map[common.Hash]hexutil.Bytes `json:"code_db"`
	TxnInfo       []TxnInfo                     `json:"txn_info"`
}

// GasUsed sums the per-transaction gas, which equals the block's final cumulative gas.
func (b *BlockTrace) GasUsed() uint64 {
	var total uint64
	for i := range b.TxnInfo {
		total += b.TxnInfo[i].Meta.GasUsed
	}
	return total
}
