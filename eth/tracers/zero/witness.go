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

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/erigontech/zerotracer/core/types"
)

// AssembleWitness requests one witness for the union of all accesses of the
// block against the pre-block view and builds the partial tries from it.
// Storage tries are keyed by keccak(address) and only built for accounts with
// non-empty storage.
func AssembleWitness(ctx context.Context, view StateView, access *AccessSet) (types.TriePreImages, error) {
	requests := access.Requests()
	w, err := view.Witness(ctx, requests)
	if err != nil {
		return types.TriePreImages{}, fmt.Errorf("%w: %d accounts: %w", ErrWitness, len(requests), err)
	}
	if w == nil {
		return types.TriePreImages{}, fmt.Errorf("%w: state view returned no witness", ErrWitness)
	}

	state := types.NewPartialTrieBuilder(w.StateRoot)
	state.InsertProof(w.AccountProof)

	storage := make(map[common.Hash]*types.PartialTrieBuilder)
	for _, sw := range w.Storage {
		if sw.StorageRoot == ethtypes.EmptyRootHash || sw.StorageRoot == (common.Hash{}) {
			continue
		}
		hashedAddr := crypto.Keccak256Hash(sw.Address[:])
		b, ok := storage[hashedAddr]
		if !ok {
			b = types.NewPartialTrieBuilder(sw.StorageRoot)
			storage[hashedAddr] = b
		}
		b.InsertProof(sw.Proof)
	}

	tries := make(map[common.Hash]*types.PartialTrie, len(storage))
	for hashedAddr, b := range storage {
		tries[hashedAddr] = b.Build()
	}
	return types.NewTriePreImages(state.Build(), tries), nil
}

// WitnessNodes counts the proof nodes of all partial tries.
func WitnessNodes(p *types.TriePreImages) int {
	if p.Separate == nil {
		return 0
	}
	var n int
	if st := p.Separate.State.Direct; st != nil {
		n += st.Len()
	}
	for _, st := range p.Separate.Storage.MultipleTries {
		if st.Direct != nil {
			n += st.Direct.Len()
		}
	}
	return n
}
