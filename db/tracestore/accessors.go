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


package tracestore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/db/kv/dbutils"
)

var (
	versionKey  = []byte("version")
	finishedKey = []byte("finished")
)

// ReadBlockTraceBlob returns the block number and encoded trace stored for hash.
// A nil blob means there is no trace for hash.
func ReadBlockTraceBlob(db kv.Getter, hash common.Hash) (uint64, []byte, error) {
	v, err := db.GetOne(kv.BlockTrace, hash[:])
	if err != nil {
		return 0, nil, fmt.Errorf("ReadBlockTraceBlob: %w, hash=%x", err, hash)
	}
	if v == nil {
		return 0, nil, nil
	}
	return decodeValue(v)
}

// ReadBlockTraceHash returns the smallest hash with a trace at number, or the
// zero hash when there is none.
func ReadBlockTraceHash(tx kv.Tx, number uint64) (common.Hash, error) {
	c, err := tx.Cursor(kv.BlockTraceNumber)
	if err != nil {
		return common.Hash{}, err
	}
	defer c.Close()

	prefix := dbutils.EncodeBlockNumber(number)
	k, _, err := c.Seek(prefix)
	if err != nil {
		return common.Hash{}, fmt.Errorf("ReadBlockTraceHash: %w, number=%d", err, number)
	}
	if k == nil || !bytes.HasPrefix(k, prefix) {
		return common.Hash{}, nil
	}
	_, hash, err := dbutils.DecodeBlockTraceNumberKey(k)
	return hash, err
}

// WriteBlockTraceBlob stores blob for hash and indexes it by number, replacing
// any trace previously stored for hash.
func WriteBlockTraceBlob(tx kv.RwTx, hash common.Hash, number uint64, blob []byte) error {
	prev, err := tx.GetOne(kv.BlockTrace, hash[:])
	if err != nil {
		return err
	}
	if prev != nil {
		prevNumber, _, err := decodeValue(prev)
		if err != nil {
			return err
		}
		if err := tx.Delete(kv.BlockTraceNumber, dbutils.BlockTraceNumberKey(prevNumber, hash)); err != nil {
			return err
		}
	}
	if err := tx.Put(kv.BlockTrace, hash[:], encodeValue(number, blob)); err != nil {
		return fmt.Errorf("failed to store block trace: %w", err)
	}
	if err := tx.Put(kv.BlockTraceNumber, dbutils.BlockTraceNumberKey(number, hash), []byte{}); err != nil {
		return fmt.Errorf("failed to store block trace number: %w", err)
	}
	return nil
}

// DeleteBlockTrace removes the trace of hash and its number index entry.
// It reports whether a trace was present.
func DeleteBlockTrace(tx kv.RwTx, hash common.Hash) (bool, error) {
	v, err := tx.GetOne(kv.BlockTrace, hash[:])
	if err != nil {
		return false, err
	}
	if v == nil {
		return false, nil
	}
	number, _, err := decodeValue(v)
	if err != nil {
		return false, err
	}
	if err := tx.Delete(kv.BlockTraceNumber, dbutils.BlockTraceNumberKey(number, hash)); err != nil {
		return false, err
	}
	if err := tx.Delete(kv.BlockTrace, hash[:]); err != nil {
		return false, err
	}
	return true, nil
}

// ReadFinishedHeight returns the highest block acknowledged by the trace extension.
func ReadFinishedHeight(db kv.Getter) (uint64, bool, error) {
	v, err := db.GetOne(kv.TraceProgress, finishedKey)
	if err != nil {
		return 0, false, err
	}
	if len(v) == 0 {
		return 0, false, nil
	}
	number, err := dbutils.DecodeBlockNumber(v)
	if err != nil {
		return 0, false, err
	}
	return number, true, nil
}

func WriteFinishedHeight(db kv.Putter, number uint64) error {
	return db.Put(kv.TraceProgress, finishedKey, dbutils.EncodeBlockNumber(number))
}

// ReadSchemaVersion returns the version written by WriteSchemaVersion, ok is
// false on a fresh database.
func ReadSchemaVersion(db kv.Getter) (major, minor uint32, ok bool, err error) {
	v, err := db.GetOne(kv.DatabaseInfo, versionKey)
	if err != nil || v == nil {
		return 0, 0, false, err
	}
	if len(v) != 8 {
		return 0, 0, false, fmt.Errorf("%w: schema version of %d bytes", dbutils.ErrInvalidSize, len(v))
	}
	return binary.BigEndian.Uint32(v), binary.BigEndian.Uint32(v[4:]), true, nil
}

func WriteSchemaVersion(db kv.Putter, major, minor uint32) error {
	v := make([]byte, 8)
	binary.BigEndian.PutUint32(v, major)
	binary.BigEndian.PutUint32(v[4:], minor)
	return db.Put(kv.DatabaseInfo, versionKey, v)
}
