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
	"errors"
	"fmt"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/klauspost/compress/zstd"

	"github.com/erigontech/zerotracer/core/types"
)

// Trace blobs are prefixed with a codec version byte.
const (
	codecJSON    byte = 0x00
	codecJSONZst byte = 0x01
)

var ErrDecodeTrace = errors.New("failed to decode block trace")

// honours the MarshalJSON/UnmarshalJSON methods of the trace types
var json = jsoniter.ConfigCompatibleWithStandardLibrary

var compressorPool = sync.Pool{
	New: func() interface{} {
		w, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(err)
		}
		return w
	},
}

var decompressPool = sync.Pool{
	New: func() interface{} {
		r, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}
		return r
	},
}

// Codec converts block traces to the blob stored per block hash.
type Codec struct {
	compress bool
}

func NewCodec(compress bool) Codec { return Codec{compress: compress} }

func (c Codec) Encode(trace *types.BlockTrace) ([]byte, error) {
	raw, err := json.Marshal(trace)
	if err != nil {
		return nil, fmt.Errorf("encode block trace: %w", err)
	}
	if !c.compress {
		return append([]byte{codecJSON}, raw...), nil
	}
	enc := compressorPool.Get().(*zstd.Encoder)
	defer compressorPool.Put(enc)
	out := make([]byte, 1, len(raw)/4+1)
	out[0] = codecJSONZst
	return enc.EncodeAll(raw, out), nil
}

// Decode accepts blobs of any known codec version regardless of c's settings.
func (c Codec) Decode(blob []byte) (*types.BlockTrace, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: empty value", ErrDecodeTrace)
	}
	raw := blob[1:]
	switch blob[0] {
	case codecJSON:
	case codecJSONZst:
		dec := decompressPool.Get().(*zstd.Decoder)
		defer decompressPool.Put(dec)
		var err error
		if raw, err = dec.DecodeAll(raw, nil); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecodeTrace, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown codec version %d", ErrDecodeTrace, blob[0])
	}
	trace := new(types.BlockTrace)
	if err := json.Unmarshal(raw, trace); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecodeTrace, err)
	}
	return trace, nil
}

// UpgradeLegacyBlob prefixes a schema 1.0 blob, which is bare JSON, with the
// JSON codec version. It reports whether blob needed the upgrade.
func UpgradeLegacyBlob(blob []byte) ([]byte, bool) {
	if len(blob) == 0 || blob[0] != '{' {
		return blob, false
	}
	return append([]byte{codecJSON}, blob...), true
}

// value layout of the BlockTrace table: block_num_u64 + blob
func encodeValue(number uint64, blob []byte) []byte {
	v := make([]byte, 8+len(blob))
	binary.BigEndian.PutUint64(v, number)
	copy(v[8:], blob)
	return v
}

func decodeValue(v []byte) (uint64, []byte, error) {
	if len(v) < 8 {
		return 0, nil, fmt.Errorf("%w: value of %d bytes", ErrDecodeTrace, len(v))
	}
	return binary.BigEndian.Uint64(v[:8]), bytes.Clone(v[8:]), nil
}
