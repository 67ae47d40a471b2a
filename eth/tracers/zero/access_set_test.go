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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestAccessSetRequests(t *testing.T) {
	addrA := common.HexToAddress("0x0a")
	addrB := common.HexToAddress("0x0b")
	key1 := common.HexToHash("0x01")
	key2 := common.HexToHash("0x02")

	s := NewAccessSet()
	s.Record(addrB, key2, AccessWrite)
	s.Record(addrB, key1, AccessRead)
	s.Record(addrB, key2, AccessRead)
	s.Seed(addrA)
	s.Seed(addrB)

	require.Equal(t, 2, s.Len())
	require.True(t, s.HasAddress(addrA))
	require.True(t, s.Contains(addrB, key1))
	require.False(t, s.Contains(addrA, key1))
	require.Equal(t, []common.Hash{key1, key2}, s.Keys(addrB))

	reqs := s.Requests()
	require.Len(t, reqs, 2)
	require.Equal(t, addrA, reqs[0].Address)
	require.Empty(t, reqs[0].Keys)
	require.Equal(t, addrB, reqs[1].Address)
	require.Equal(t, []common.Hash{key1, key2}, reqs[1].Keys)

	require.Equal(t, AccessStats{Addresses: 2, Slots: 2, Reads: 2, Writes: 1}, s.Stats())
}

func TestAccessSetSeedKeepsKeys(t *testing.T) {
	addr := common.HexToAddress("0x0c")
	key := common.HexToHash("0x03")

	s := NewAccessSet()
	s.Record(addr, key, AccessWrite)
	s.Seed(addr)
	require.True(t, s.Contains(addr, key))
	require.Equal(t, "write", AccessWrite.String())
	require.Equal(t, "read", AccessRead.String())
}
