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


package zero_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/erigontech/zerotracer/eth/tracers/zero"
	"github.com/erigontech/zerotracer/eth/tracers/zero/zerotest"
)

var (
	plainAddr   = common.HexToAddress("0x1000")
	storageAddr = common.HexToAddress("0x2000")
	absentAddr  = common.HexToAddress("0x3000")

	slot1 = common.HexToHash("0x01")
	slot2 = common.HexToHash("0x02")
)

func testWorld() zerotest.World {
	return zerotest.World{
		plainAddr: {Nonce: 3, Balance: *uint256.NewInt(1_000)},
		storageAddr: {
			Nonce:   1,
			Code:    []byte{0x60, 0x00, 0x54},
			Storage: map[common.Hash]uint256.Int{slot1: *uint256.NewInt(5), slot2: *uint256.NewInt(6)},
		},
	}
}

func TestAssembleWitnessProvesAccessedPaths(t *testing.T) {
	world := testWorld()
	view := zerotest.NewView(world)

	access := zero.NewAccessSet()
	access.Seed(plainAddr)
	access.Seed(absentAddr)
	access.Record(storageAddr, slot1, zero.AccessRead)

	preImages, err := zero.AssembleWitness(context.Background(), view, access)
	require.NoError(t, err)

	// one request covering the whole set
	require.Len(t, view.Requests(), 1)
	require.Equal(t, access.Requests(), view.Requests()[0])

	root, err := world.StateRoot()
	require.NoError(t, err)
	require.Equal(t, root, preImages.StateTrie().Root())

	acc, err := preImages.VerifyAccount(plainAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), acc.Nonce)
	require.Equal(t, uint256.NewInt(1_000), acc.Balance)
	require.Equal(t, ethtypes.EmptyRootHash, acc.Root)

	acc, err = preImages.VerifyAccount(absentAddr)
	require.NoError(t, err)
	require.Nil(t, acc)

	value, err := preImages.VerifyStorage(storageAddr, slot1)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(5), value)

	// storage tries only for accounts with storage, keyed by hashed address
	tries := preImages.Separate.Storage.MultipleTries
	require.Len(t, tries, 1)
	storageRoot, err := world.StorageRoot(storageAddr)
	require.NoError(t, err)
	require.Equal(t, storageRoot, tries[crypto.Keccak256Hash(storageAddr[:])].Direct.Root())
	require.Nil(t, preImages.StorageTrie(plainAddr))

	require.Positive(t, zero.WitnessNodes(&preImages))
}

func TestAssembleWitnessEmptyState(t *testing.T) {
	access := zero.NewAccessSet()
	access.Seed(absentAddr)

	preImages, err := zero.AssembleWitness(context.Background(), zerotest.NewView(zerotest.World{}), access)
	require.NoError(t, err)
	require.Equal(t, ethtypes.EmptyRootHash, preImages.StateTrie().Root())
	require.Empty(t, preImages.Separate.Storage.MultipleTries)

	acc, err := preImages.VerifyAccount(absentAddr)
	require.NoError(t, err)
	require.Nil(t, acc)
}

func TestAssembleWitnessSkipsEmptyStorageRoots(t *testing.T) {
	ctrl := gomock.NewController(t)
	view := zero.NewMockStateView(ctrl)
	node := []byte{0xc2, 0x80, 0x80}
	proof := [][]byte{node}

	view.EXPECT().Witness(gomock.Any(), gomock.Any()).Return(&zero.StateWitness{
		StateRoot:    common.HexToHash("0xabcd"),
		AccountProof: [][]byte{node, node},
		Storage: []zero.StorageWitness{
			{Address: plainAddr, StorageRoot: ethtypes.EmptyRootHash, Proof: proof},
			{Address: absentAddr, StorageRoot: common.Hash{}, Proof: proof},
			{Address: storageAddr, StorageRoot: common.HexToHash("0xef"), Proof: proof},
			{Address: storageAddr, StorageRoot: common.HexToHash("0xef"), Proof: [][]byte{{0xc1, 0x80}}},
		},
	}, nil)

	access := zero.NewAccessSet()
	access.Seed(plainAddr)
	preImages, err := zero.AssembleWitness(context.Background(), view, access)
	require.NoError(t, err)
	require.Equal(t, 1, preImages.StateTrie().Len())

	tries := preImages.Separate.Storage.MultipleTries
	require.Len(t, tries, 1)
	merged := tries[crypto.Keccak256Hash(storageAddr[:])].Direct
	require.Equal(t, 2, merged.Len())
	require.Equal(t, 3, zero.WitnessNodes(&preImages))
}

func TestAssembleWitnessErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	view := zero.NewMockStateView(ctrl)
	providerErr := errors.New("state history pruned")

	gomock.InOrder(
		view.EXPECT().Witness(gomock.Any(), gomock.Any()).Return(nil, providerErr),
		view.EXPECT().Witness(gomock.Any(), gomock.Any()).Return(nil, nil),
	)

	_, err := zero.AssembleWitness(context.Background(), view, zero.NewAccessSet())
	require.ErrorIs(t, err, zero.ErrWitness)
	require.ErrorIs(t, err, providerErr)

	_, err = zero.AssembleWitness(context.Background(), view, zero.NewAccessSet())
	require.ErrorIs(t, err, zero.ErrWitness)
}
