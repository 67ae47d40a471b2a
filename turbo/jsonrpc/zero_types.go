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


package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Error codes of the zero namespace, as in https://eips.ethereum.org/EIPS/eip-1474
const (
	InvalidParamsCode = -32602
	InternalErrorCode = -32603
)

type InvalidParamsError struct{ Message string }

func (e *InvalidParamsError) Error() string  { return e.Message }
func (e *InvalidParamsError) ErrorCode() int { return InvalidParamsCode }

// TraceNotFoundError uses the invalid params code: the requested block is unknown.
type TraceNotFoundError struct{ Message string }

func (e *TraceNotFoundError) Error() string  { return e.Message }
func (e *TraceNotFoundError) ErrorCode() int { return InvalidParamsCode }

type InternalError struct{ Message string }

func (e *InternalError) Error() string  { return e.Message }
func (e *InternalError) ErrorCode() int { return InternalErrorCode }

// BlockNumberOrTag is a block parameter: either a number, given as hex string
// or JSON integer, or one of the block tags.
type BlockNumberOrTag struct {
	Number uint64
	Tag    string
}

func (b BlockNumberOrTag) IsTag() bool { return b.Tag != "" }

func (b BlockNumberOrTag) String() string {
	if b.IsTag() {
		return b.Tag
	}
	return hexutil.EncodeUint64(b.Number)
}

func (b *BlockNumberOrTag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '"' {
		n, err := strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid block number %s", data)
		}
		*b = BlockNumberOrTag{Number: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.ToLower(strings.TrimSpace(s))
	// rpc.BlockNumber maps "earliest" to block 0
	if s == rpc.EarliestBlockNumber.String() {
		*b = BlockNumberOrTag{Tag: s}
		return nil
	}
	var n rpc.BlockNumber
	if err := n.UnmarshalJSON([]byte(s)); err != nil {
		return fmt.Errorf("invalid block number %q: %w", s, err)
	}
	if n < 0 {
		*b = BlockNumberOrTag{Tag: n.String()}
		return nil
	}
	*b = BlockNumberOrTag{Number: uint64(n)}
	return nil
}

func (b BlockNumberOrTag) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.String())
}
