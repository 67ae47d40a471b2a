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
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/holiman/uint256"
)

var errNodeNotFound = errors.New("trie node not found")

// PartialTrie is a Merkle-Patricia trie known only along some paths: the root
// hash plus every proof node that was supplied for it, addressed by node hash.
// Subtries that were never proven stay represented by their hash only.
type PartialTrie struct {
	root  common.Hash
	nodes map[common.Hash][]byte
}

// PartialTrieBuilder accumulates proof nodes for a trie with a known root.
// Nodes shared between several proofs are stored once.
type PartialTrieBuilder struct {
	root  common.Hash
	nodes map[common.Hash][]byte
}

func NewPartialTrieBuilder(root common.Hash) *PartialTrieBuilder {
	return &PartialTrieBuilder{root: root, nodes: make(map[common.Hash][]byte)}
}

func (b *PartialTrieBuilder) InsertProof(proof [][]byte) {
	for _, node := range proof {
		if len(node) == 0 {
			continue
		}
		h := crypto.Keccak256Hash(node)
		if _, ok := b.nodes[h]; ok {
			continue
		}
		b.nodes[h] = common.CopyBytes(node)
	}
}

func (b *PartialTrieBuilder) Build() *PartialTrie {
	t := &PartialTrie{root: b.root, nodes: b.nodes}
	b.nodes = make(map[common.Hash][]byte)
	return t
}

func (t *PartialTrie) Root() common.Hash { return t.root }
func (t *PartialTrie) Len() int          { return len(t.nodes) }

// Has and Get make the node set usable as an ethdb.KeyValueReader for proof verification.
func (t *PartialTrie) Has(key []byte) (bool, error) {
	_, ok := t.nodes[common.BytesToHash(key)]
	return ok, nil
}

func (t *PartialTrie) Get(key []byte) ([]byte, error) {
	if node, ok := t.nodes[common.BytesToHash(key)]; ok {
		return node, nil
	}
	return nil, errNodeNotFound
}

// Nodes returns the proof nodes ordered by node hash.
func (t *PartialTrie) Nodes() [][]byte {
	hashes := make([]common.Hash, 0, len(t.nodes))
	for h := range t.nodes {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return bytes.Compare(hashes[i][:], hashes[j][:]) < 0 })
	nodes := make([][]byte, len(hashes))
	for i, h := range hashes {
		nodes[i] = t.nodes[h]
	}
	return nodes
}

// Lookup walks the known nodes from the root along keccak(key) and returns the
// stored value, nil when the path proves absence. It fails when the path leaves
// the proven part of the trie.
func (t *PartialTrie) Lookup(key []byte) ([]byte, error) {
	if t.root == ethtypes.EmptyRootHash || t.root == (common.Hash{}) {
		return nil, nil
	}
	return trie.VerifyProof(t.root, crypto.Keccak256(key), t)
}

type partialTrieJSON struct {
	Root  common.Hash     `json:"root"`
	Nodes []hexutil.Bytes `json:"nodes"`
}

func (t *PartialTrie) MarshalJSON() ([]byte, error) {
	enc := partialTrieJSON{Root: t.root, Nodes: make([]hexutil.Bytes, 0, len(t.nodes))}
	for _, node := range t.Nodes() {
		enc.Nodes = append(enc.Nodes, node)
	}
	return json.Marshal(enc)
}

func (t *PartialTrie) UnmarshalJSON(input []byte) error {
	var dec partialTrieJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	b := NewPartialTrieBuilder(dec.Root)
	for _, node := range dec.Nodes {
		b.InsertProof([][]byte{node})
	}
	*t = *b.Build()
	return nil
}

type SeparateTriePreImage struct {
	Direct *PartialTrie `json:"direct"`
}

type SeparateStorageTriesPreImage struct {
	MultipleTries map[common.Hash]SeparateTriePreImage `json:"multiple_tries"`
}

type SeparateTriePreImages struct {
	State   SeparateTriePreImage         `json:"state"`
	Storage SeparateStorageTriesPreImage `json:"storage"`
}

// TriePreImages is the block witness: one partial account trie and one partial
// storage trie per account with non-empty storage, keyed by keccak(address).
type TriePreImages struct {
	Separate *SeparateTriePreImages `json:"separate"`
}

func NewTriePreImages(state *PartialTrie, storage map[common.Hash]*PartialTrie) TriePreImages {
	tries := make(map[common.Hash]SeparateTriePreImage, len(storage))
	for hashedAddr, t := range storage {
		tries[hashedAddr] = SeparateTriePreImage{Direct: t}
	}
	return TriePreImages{Separate: &SeparateTriePreImages{
		State:   SeparateTriePreImage{Direct: state},
		Storage: SeparateStorageTriesPreImage{MultipleTries: tries},
	}}
}

func (p *TriePreImages) StateTrie() *PartialTrie {
	if p.Separate == nil {
		return nil
	}
	return p.Separate.State.Direct
}

func (p *TriePreImages) StorageTrie(addr common.Address) *PartialTrie {
	if p.Separate == nil {
		return nil
	}
	return p.Separate.Storage.MultipleTries[crypto.Keccak256Hash(addr[:])].Direct
}

// VerifyAccount resolves the account of addr from the state partial trie. A nil
// account with nil error is a proof of absence.
func (p *TriePreImages) VerifyAccount(addr common.Address) (*ethtypes.StateAccount, error) {
	st := p.StateTrie()
	if st == nil {
		return nil, errors.New("witness has no state trie")
	}
	enc, err := st.Lookup(addr[:])
	if err != nil {
		return nil, fmt.Errorf("account %x: %w", addr, err)
	}
	if len(enc) == 0 {
		return nil, nil
	}
	acc := new(ethtypes.StateAccount)
	if err := rlp.DecodeBytes(enc, acc); err != nil {
		return nil, fmt.Errorf("account %x: %w", addr, err)
	}
	return acc, nil
}

// VerifyStorage resolves slot key of addr from the account's storage partial trie.
func (p *TriePreImages) VerifyStorage(addr common.Address, key common.Hash) (*uint256.Int, error) {
	acc, err := p.VerifyAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.Root == ethtypes.EmptyRootHash {
		return new(uint256.Int), nil
	}
	st := p.StorageTrie(addr)
	if st == nil {
		return nil, fmt.Errorf("account %x: storage trie missing from witness", addr)
	}
	if st.Root() != acc.Root {
		return nil, fmt.Errorf("account %x: storage root mismatch, account %x, witness %x", addr, acc.Root, st.Root())
	}
	enc, err := st.Lookup(key[:])
	if err != nil {
		return nil, fmt.Errorf("account %x slot %x: %w", addr, key, err)
	}
	if len(enc) == 0 {
		return new(uint256.Int), nil
	}
	_, content, _, err := rlp.Split(enc)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(content), nil
}

// VerifyWitness resolves every account and storage slot referenced by the
// transaction traces against the witness and returns how many distinct
// accounts and slots were checked.
func (b *BlockTrace) VerifyWitness() (accounts, slots int, err error) {
	checked := make(map[common.Address]map[common.Hash]struct{})
	verifySlot := func(addr common.Address, key common.Hash) error {
		if _, ok := checked[addr][key]; ok {
			return nil
		}
		if _, err := b.TriePreImages.VerifyStorage(addr, key); err != nil {
			return err
		}
		checked[addr][key] = struct{}{}
		slots++
		return nil
	}
	for i := range b.TxnInfo {
		for addr, trace := range b.TxnInfo[i].Traces {
			if _, ok := checked[addr]; !ok {
				if _, err := b.TriePreImages.VerifyAccount(addr); err != nil {
					return accounts, slots, err
				}
				checked[addr] = make(map[common.Hash]struct{})
				accounts++
			}
			if trace == nil {
				continue
			}
			for _, key := range trace.StorageRead {
				if err := verifySlot(addr, key); err != nil {
					return accounts, slots, err
				}
			}
			for key := range trace.StorageWritten {
				if err := verifySlot(addr, key); err != nil {
					return accounts, slots, err
				}
			}
		}
	}
	return accounts, slots, nil
}
