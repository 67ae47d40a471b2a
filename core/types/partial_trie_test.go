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
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/stretchr/testify/require"
)

type proofNodes [][]byte

func (p *proofNodes) Put(key []byte, value []byte) error {
	*p = append(*p, common.CopyBytes(value))
	return nil
}

func (p *proofNodes) Delete(key []byte) error { return nil }

// newTestTrie stores value-<i> under keccak(key-<i>), the way the state trie hashes its keys.
func newTestTrie(t *testing.T, n int) *trie.Trie {
	t.Helper()
	tr := trie.NewEmpty(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil))
	for i := 0; i < n; i++ {
		key := crypto.Keccak256([]byte(fmt.Sprintf("key-%d", i)))
		require.NoError(t, tr.Update(key, []byte(fmt.Sprintf("value-%d-padded-to-a-longer-size", i))))
	}
	return tr
}

func prove(t *testing.T, tr *trie.Trie, b *PartialTrieBuilder, keys ...string) {
	t.Helper()
	for _, key := range keys {
		var proof proofNodes
		require.NoError(t, tr.Prove(crypto.Keccak256([]byte(key)), &proof))
		b.InsertProof(proof)
	}
}

func TestPartialTrieLookup(t *testing.T) {
	tr := newTestTrie(t, 64)
	b := NewPartialTrieBuilder(tr.Hash())
	prove(t, tr, b, "key-1", "key-2", "key-1", "key-missing")
	pt := b.Build()

	require.Equal(t, tr.Hash(), pt.Root())
	require.Positive(t, pt.Len())

	v, err := pt.Lookup([]byte("key-1"))
	require.NoError(t, err)
	require.Equal(t, []byte("value-1-padded-to-a-longer-size"), v)

	v, err = pt.Lookup([]byte("key-2"))
	require.NoError(t, err)
	require.Equal(t, []byte("value-2-padded-to-a-longer-size"), v)

	// proof of absence
	v, err = pt.Lookup([]byte("key-missing"))
	require.NoError(t, err)
	require.Nil(t, v)

	// the builder is reset by Build
	require.Zero(t, b.Build().Len())
}

func TestPartialTrieUnprovenPath(t *testing.T) {
	tr := newTestTrie(t, 64)
	b := NewPartialTrieBuilder(tr.Hash())
	prove(t, tr, b, "key-1")
	pt := b.Build()

	found := false
	for i := 2; i < 64; i++ {
		if _, err := pt.Lookup([]byte(fmt.Sprintf("key-%d", i))); err != nil {
			found = true
			break
		}
	}
	require.True(t, found, "every path resolved with a single proof")
}

func TestPartialTrieEmptyRoot(t *testing.T) {
	for _, root := range []common.Hash{{}, ethtypes.EmptyRootHash} {
		v, err := NewPartialTrieBuilder(root).Build().Lookup([]byte("anything"))
		require.NoError(t, err)
		require.Nil(t, v)
	}
}

func TestPartialTrieJSON(t *testing.T) {
	tr := newTestTrie(t, 16)
	b := NewPartialTrieBuilder(tr.Hash())
	prove(t, tr, b, "key-3", "key-7")
	pt := b.Build()

	nodes := pt.Nodes()
	for i := 1; i < len(nodes); i++ {
		require.Negative(t, bytes.Compare(crypto.Keccak256(nodes[i-1]), crypto.Keccak256(nodes[i])))
	}

	enc, err := json.Marshal(pt)
	require.NoError(t, err)
	var dec PartialTrie
	require.NoError(t, json.Unmarshal(enc, &dec))
	require.Equal(t, pt.Root(), dec.Root())
	require.Equal(t, nodes, dec.Nodes())

	again, err := json.Marshal(&dec)
	require.NoError(t, err)
	require.Equal(t, enc, again)
}

func TestTriePreImagesMissingParts(t *testing.T) {
	var empty TriePreImages
	require.Nil(t, empty.StateTrie())
	require.Nil(t, empty.StorageTrie(common.Address{}))
	_, err := empty.VerifyAccount(common.Address{})
	require.Error(t, err)
}

func TestBlockTraceVerifyWitnessMissingState(t *testing.T) {
	trace := &BlockTrace{TxnInfo: []TxnInfo{{Traces: map[common.Address]*TxnTrace{{0x01}: {}}}}}
	_, _, err := trace.VerifyWitness()
	require.Error(t, err)

	accounts, slots, err := (&BlockTrace{}).VerifyWitness()
	require.NoError(t, err)
	require.Zero(t, accounts)
	require.Zero(t, slots)
}
