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


// Package zerotest provides an in-memory Host for tracer tests. State is kept
// as plain account maps and proven with real Merkle-Patricia tries built on
// demand, so witnesses verify against genuine state roots.
package zerotest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"

	"github.com/erigontech/zerotracer/eth/tracers/zero"
)

var ErrUnknownBlock = errors.New("unknown block")

type Account struct {
	Nonce   uint64
	Balance uint256.Int
	Code    []byte
	Storage map[common.Hash]uint256.Int
}

func (a *Account) CodeHash() common.Hash {
	if len(a.Code) == 0 {
		return ethtypes.EmptyCodeHash
	}
	return crypto.Keccak256Hash(a.Code)
}

func (a *Account) copy() *Account {
	cpy := *a
	cpy.Code = common.CopyBytes(a.Code)
	cpy.Storage = maps.Clone(a.Storage)
	return &cpy
}

// World is the full state at one block.
type World map[common.Address]*Account

func (w World) Copy() World {
	cpy := make(World, len(w))
	for addr, acc := range w {
		cpy[addr] = acc.copy()
	}
	return cpy
}

func newTrie() *trie.Trie {
	return trie.NewEmpty(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil))
}

// storageTrie returns nil for accounts without storage.
func (w World) storageTrie(addr common.Address) (*trie.Trie, error) {
	acc, ok := w[addr]
	if !ok {
		return nil, nil
	}
	var t *trie.Trie
	for key, value := range acc.Storage {
		if value.IsZero() {
			continue
		}
		if t == nil {
			t = newTrie()
		}
		b := value.Bytes32()
		enc, err := rlp.EncodeToBytes(common.TrimLeftZeroes(b[:]))
		if err != nil {
			return nil, err
		}
		if err := t.Update(crypto.Keccak256(key[:]), enc); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (w World) StorageRoot(addr common.Address) (common.Hash, error) {
	t, err := w.storageTrie(addr)
	if err != nil {
		return common.Hash{}, err
	}
	if t == nil {
		return ethtypes.EmptyRootHash, nil
	}
	return t.Hash(), nil
}

func (w World) stateTrie() (*trie.Trie, error) {
	t := newTrie()
	for addr, acc := range w {
		root, err := w.StorageRoot(addr)
		if err != nil {
			return nil, err
		}
		enc, err := rlp.EncodeToBytes(&ethtypes.StateAccount{
			Nonce:    acc.Nonce,
			Balance:  new(uint256.Int).Set(&acc.Balance),
			Root:     root,
			CodeHash: acc.CodeHash().Bytes(),
		})
		if err != nil {
			return nil, err
		}
		if err := t.Update(crypto.Keccak256(addr[:]), enc); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (w World) StateRoot() (common.Hash, error) {
	t, err := w.stateTrie()
	if err != nil {
		return common.Hash{}, err
	}
	return t.Hash(), nil
}

// proofList collects the nodes written by trie.Prove.
type proofList [][]byte

func (l *proofList) Put(key []byte, value []byte) error {
	*l = append(*l, common.CopyBytes(value))
	return nil
}

func (l *proofList) Delete(key []byte) error {
	panic("not supported")
}

// View is a read-only World implementing zero.StateView.
type View struct {
	world World

	mu       sync.Mutex
	requests [][]zero.AccessRequest
}

func NewView(world World) *View { return &View{world: world} }

// Requests returns every request set passed to Witness so far.
func (v *View) Requests() [][]zero.AccessRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.requests
}

func (v *View) Witness(ctx context.Context, requests []zero.AccessRequest) (*zero.StateWitness, error) {
	v.mu.Lock()
	v.requests = append(v.requests, requests)
	v.mu.Unlock()

	st, err := v.world.stateTrie()
	if err != nil {
		return nil, err
	}
	w := &zero.StateWitness{StateRoot: st.Hash()}
	for _, req := range requests {
		var proof proofList
		if err := st.Prove(crypto.Keccak256(req.Address[:]), &proof); err != nil {
			return nil, fmt.Errorf("account proof %x: %w", req.Address, err)
		}
		w.AccountProof = append(w.AccountProof, proof...)

		sw := zero.StorageWitness{Address: req.Address, StorageRoot: ethtypes.EmptyRootHash}
		storage, err := v.world.storageTrie(req.Address)
		if err != nil {
			return nil, err
		}
		if storage != nil {
			sw.StorageRoot = storage.Hash()
			for _, key := range req.Keys {
				var proof proofList
				if err := storage.Prove(crypto.Keccak256(key[:]), &proof); err != nil {
					return nil, fmt.Errorf("storage proof %x/%x: %w", req.Address, key, err)
				}
				sw.Proof = append(sw.Proof, proof...)
			}
		}
		w.Storage = append(w.Storage, sw)
	}
	return w, nil
}

// TxFunc executes one transaction. It must describe all effects in the
// returned diff and must not modify ws directly.
type TxFunc func(ws *WorkingState, env *zero.Env) (zero.StateDiff, error)

// Host keeps a World per block hash and runs transactions through a TxFunc.
type Host struct {
	mu     sync.Mutex
	states map[common.Hash]*View
	exec   TxFunc

	envs []zero.Env
}

func NewHost(exec TxFunc) *Host {
	return &Host{states: make(map[common.Hash]*View), exec: exec}
}

// SetState makes world the post-state of block hash and returns its view.
func (h *Host) SetState(hash common.Hash, world World) *View {
	h.mu.Lock()
	defer h.mu.Unlock()
	v := NewView(world)
	h.states[hash] = v
	return v
}

// Envs returns the environments of all executed transactions in order.
func (h *Host) Envs() []zero.Env {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.envs
}

func (h *Host) StateByBlockHash(ctx context.Context, hash common.Hash) (zero.StateView, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.states[hash]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrUnknownBlock, hash)
	}
	return v, nil
}

func (h *Host) NewWorkingState(view zero.StateView) (zero.WorkingState, error) {
	v, ok := view.(*View)
	if !ok {
		return nil, fmt.Errorf("unexpected state view %T", view)
	}
	return &WorkingState{world: v.world.Copy()}, nil
}

func (h *Host) Transact(ctx context.Context, ws zero.WorkingState, env *zero.Env) (zero.StateDiff, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, ok := ws.(*WorkingState)
	if !ok {
		return nil, fmt.Errorf("unexpected working state %T", ws)
	}
	h.mu.Lock()
	h.envs = append(h.envs, *env)
	h.mu.Unlock()
	return h.exec(w, env)
}

// WorkingState is the mutable copy of a World used during replay.
type WorkingState struct {
	world   World
	commits int
}

func (ws *WorkingState) Commits() int { return ws.commits }

func (ws *WorkingState) Account(addr common.Address) *Account { return ws.world[addr] }

func (ws *WorkingState) Commit(diff zero.StateDiff) error {
	for addr, d := range diff {
		if d.SelfDestructed {
			delete(ws.world, addr)
			continue
		}
		acc, ok := ws.world[addr]
		if !ok {
			acc = &Account{}
			ws.world[addr] = acc
		}
		acc.Balance = d.Balance
		acc.Nonce = d.Nonce
		if d.Code != nil {
			acc.Code = common.CopyBytes(d.Code)
		}
		for key, slot := range d.Storage {
			if acc.Storage == nil {
				acc.Storage = make(map[common.Hash]uint256.Int)
			}
			if slot.Present.IsZero() {
				delete(acc.Storage, key)
			} else {
				acc.Storage[key] = slot.Present
			}
		}
	}
	ws.commits++
	return nil
}

// Begin starts building the diff of one transaction.
func (ws *WorkingState) Begin() *Txn {
	return &Txn{ws: ws, diff: make(zero.StateDiff)}
}

// Txn builds a StateDiff the way an EVM would observe it.
type Txn struct {
	ws   *WorkingState
	diff zero.StateDiff
}

// Load adds addr to the diff with its current state, without touching it.
func (t *Txn) Load(addr common.Address) *zero.AccountDiff {
	if d, ok := t.diff[addr]; ok {
		return d
	}
	d := &zero.AccountDiff{CodeHash: ethtypes.EmptyCodeHash}
	if acc, ok := t.ws.world[addr]; ok {
		d.Balance = acc.Balance
		d.Nonce = acc.Nonce
		d.CodeHash = acc.CodeHash()
		if len(acc.Code) > 0 {
			d.Code = common.CopyBytes(acc.Code)
		}
	}
	t.diff[addr] = d
	return d
}

func (t *Txn) Touch(addr common.Address) *zero.AccountDiff {
	d := t.Load(addr)
	d.Touched = true
	return d
}

func (t *Txn) current(addr common.Address, key common.Hash) uint256.Int {
	if acc, ok := t.ws.world[addr]; ok {
		return acc.Storage[key]
	}
	return uint256.Int{}
}

func (t *Txn) slot(addr common.Address, key common.Hash) (*zero.AccountDiff, zero.StorageSlot) {
	d := t.Load(addr)
	if d.Storage == nil {
		d.Storage = make(map[common.Hash]zero.StorageSlot)
	}
	s, ok := d.Storage[key]
	if !ok {
		v := t.current(addr, key)
		s = zero.StorageSlot{Original: v, Present: v}
	}
	return d, s
}

func (t *Txn) SLoad(addr common.Address, key common.Hash) uint256.Int {
	d, s := t.slot(addr, key)
	d.Storage[key] = s
	return s.Present
}

func (t *Txn) SStore(addr common.Address, key common.Hash, value uint64) {
	d, s := t.slot(addr, key)
	s.Present.SetUint64(value)
	d.Storage[key] = s
}

func (t *Txn) Transfer(from, to common.Address, amount uint64) {
	src := t.Touch(from)
	src.Balance.Sub(&src.Balance, uint256.NewInt(amount))
	src.Nonce++
	dst := t.Touch(to)
	dst.Balance.Add(&dst.Balance, uint256.NewInt(amount))
}

func (t *Txn) Create(addr common.Address, code []byte) {
	d := t.Touch(addr)
	d.Created = true
	d.Nonce = 1
	d.Code = common.CopyBytes(code)
	d.CodeHash = crypto.Keccak256Hash(code)
}

func (t *Txn) SelfDestruct(addr common.Address) {
	d := t.Touch(addr)
	d.SelfDestructed = true
}

func (t *Txn) Diff() zero.StateDiff { return t.diff }
