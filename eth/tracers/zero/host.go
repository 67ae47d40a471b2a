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

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

//go:generate mockgen -destination=./host_mock.go -package=zero . Host,StateView

// Host is what the tracer needs from the node it runs in: historical state by
// block hash and an EVM able to execute one transaction at a time.
type Host interface {
	StateProvider
	Executor
}

type StateProvider interface {
	// StateByBlockHash returns the state as it was after the block with the given hash.
	StateByBlockHash(ctx context.Context, hash common.Hash) (StateView, error)
}

// StateView is a read-only state at a fixed block.
type StateView interface {
	// Witness returns the trie proof nodes for the requested accounts and
	// storage keys, taken against the state root of this view.
	Witness(ctx context.Context, requests []AccessRequest) (*StateWitness, error)
}

// WorkingState is a mutable overlay on a StateView used during replay.
type WorkingState interface {
	// Commit makes the effects of one transaction visible to the next one.
	Commit(diff StateDiff) error
}

type Executor interface {
	NewWorkingState(view StateView) (WorkingState, error)
	// Transact executes one transaction against ws without committing it.
	Transact(ctx context.Context, ws WorkingState, env *Env) (StateDiff, error)
}

// BlockEnv is the per-block part of the execution environment.
type BlockEnv struct {
	Number        uint64
	Coinbase      common.Address
	Time          uint64
	GasLimit      uint64
	BaseFee       *uint256.Int
	Difficulty    *uint256.Int
	PrevRandao    *common.Hash // nil before the merge
	ExcessBlobGas *uint64
}

// Env is the environment of one transaction execution.
type Env struct {
	Block   *BlockEnv
	Tx      *ethtypes.Transaction
	From    common.Address
	TxIndex int
}

// StorageSlot is one storage slot observed during a transaction.
type StorageSlot struct {
	Original uint256.Int // value before the transaction
	Present  uint256.Int // value after the transaction
}

func (s StorageSlot) IsChanged() bool { return s.Original != s.Present }

// AccountDiff is the post-state of one account touched by a transaction.
type AccountDiff struct {
	Balance  uint256.Int
	Nonce    uint64
	CodeHash common.Hash
	// Code is nil when the executor did not load the account's code.
	Code    []byte
	Storage map[common.Hash]StorageSlot

	// Touched is the EVM touched flag, set even when nothing changed.
	Touched        bool
	Created        bool
	SelfDestructed bool
}

// StateDiff holds every account loaded by a transaction.
type StateDiff map[common.Address]*AccountDiff

// AccessRequest asks for the proof of one account and the given storage keys.
type AccessRequest struct {
	Address common.Address
	Keys    []common.Hash
}

type StorageWitness struct {
	Address     common.Address
	StorageRoot common.Hash
	Proof       [][]byte
}

// StateWitness is the raw proof material returned by StateView.Witness.
type StateWitness struct {
	StateRoot    common.Hash
	AccountProof [][]byte
	Storage      []StorageWitness
}
