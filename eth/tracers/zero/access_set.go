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
	"bytes"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
)

func (k AccessKind) String() string {
	if k == AccessWrite {
		return "write"
	}
	return "read"
}

// AccessSet is the union of storage keys touched per address over a whole block.
// Entries only grow. Not safe for concurrent use.
type AccessSet struct {
	slots  map[common.Address]map[common.Hash]struct{}
	reads  int
	writes int
}

func NewAccessSet() *AccessSet {
	return &AccessSet{slots: make(map[common.Address]map[common.Hash]struct{})}
}

// Seed makes addr part of the set without any storage key, so its account
// proof ends up in the witness.
func (s *AccessSet) Seed(addr common.Address) {
	if _, ok := s.slots[addr]; !ok {
		s.slots[addr] = make(map[common.Hash]struct{})
	}
}

func (s *AccessSet) Record(addr common.Address, key common.Hash, kind AccessKind) {
	keys, ok := s.slots[addr]
	if !ok {
		keys = make(map[common.Hash]struct{})
		s.slots[addr] = keys
	}
	keys[key] = struct{}{}
	if kind == AccessWrite {
		s.writes++
	} else {
		s.reads++
	}
}

func (s *AccessSet) Contains(addr common.Address, key common.Hash) bool {
	_, ok := s.slots[addr][key]
	return ok
}

func (s *AccessSet) HasAddress(addr common.Address) bool {
	_, ok := s.slots[addr]
	return ok
}

// Len returns the number of addresses.
func (s *AccessSet) Len() int { return len(s.slots) }

// Keys returns the keys recorded for addr in ascending order.
func (s *AccessSet) Keys(addr common.Address) []common.Hash {
	keys := make([]common.Hash, 0, len(s.slots[addr]))
	for k := range s.slots[addr] {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b common.Hash) int { return bytes.Compare(a[:], b[:]) })
	return keys
}

// Requests converts the set into witness requests, one per address including
// addresses without keys. Addresses and keys are in ascending order.
func (s *AccessSet) Requests() []AccessRequest {
	addrs := make([]common.Address, 0, len(s.slots))
	for addr := range s.slots {
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })

	reqs := make([]AccessRequest, len(addrs))
	for i, addr := range addrs {
		reqs[i] = AccessRequest{Address: addr, Keys: s.Keys(addr)}
	}
	return reqs
}

type AccessStats struct {
	Addresses int
	Slots     int
	Reads     int
	Writes    int
}

func (s *AccessSet) Stats() AccessStats {
	st := AccessStats{Addresses: len(s.slots), Reads: s.reads, Writes: s.writes}
	for _, keys := range s.slots {
		st.Slots += len(keys)
	}
	return st
}
