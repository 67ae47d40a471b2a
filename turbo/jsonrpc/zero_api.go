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
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/zerotracer/core/types"
	"github.com/erigontech/zerotracer/db/tracestore"
)

// ZeroAPI serves the block traces produced for zk provers.
type ZeroAPI interface {
	GetBlockTraceByNumber(ctx context.Context, number BlockNumberOrTag) (*types.BlockTrace, error)
	GetBlockTraceByHash(ctx context.Context, hash common.Hash) (*types.BlockTrace, error)
}

// ZeroAPIImpl is implementation of the ZeroAPI interface
type ZeroAPIImpl struct {
	store  tracestore.Reader
	logger log.Logger
}

// NewZeroAPI returns ZeroAPIImpl instance
func NewZeroAPI(store tracestore.Reader, logger log.Logger) *ZeroAPIImpl {
	return &ZeroAPIImpl{store: store, logger: logger}
}

// GetBlockTraceByNumber implements zero_getBlockTraceByNumber. Only literal
// block numbers are accepted.
func (api *ZeroAPIImpl) GetBlockTraceByNumber(ctx context.Context, number BlockNumberOrTag) (*types.BlockTrace, error) {
	if number.IsTag() {
		return nil, &InvalidParamsError{Message: fmt.Sprintf("block tag %q is not supported, use a block number", number.Tag)}
	}
	trace, err := api.store.GetByNumber(ctx, number.Number)
	if err != nil {
		return nil, api.internalError("zero_getBlockTraceByNumber", err, "number", number.Number)
	}
	if trace == nil {
		return nil, &TraceNotFoundError{Message: fmt.Sprintf("Block trace not found for block number: %d", number.Number)}
	}
	return trace, nil
}

// GetBlockTraceByHash implements zero_getBlockTraceByHash.
func (api *ZeroAPIImpl) GetBlockTraceByHash(ctx context.Context, hash common.Hash) (*types.BlockTrace, error) {
	trace, err := api.store.GetByHash(ctx, hash)
	if err != nil {
		return nil, api.internalError("zero_getBlockTraceByHash", err, "hash", hash)
	}
	if trace == nil {
		return nil, &TraceNotFoundError{Message: "Block trace not found for block hash: " + hash.Hex()}
	}
	return trace, nil
}

// internalError logs the cause and hides it from the caller.
func (api *ZeroAPIImpl) internalError(method string, err error, ctx ...interface{}) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	api.logger.Warn("[rpc] "+method+" failed", append(ctx, "err", err)...)
	return &InternalError{Message: "Database error"}
}

// APIList returns the "zero" namespace for registration on an rpc.Server.
func APIList(store tracestore.Reader, logger log.Logger) []rpc.API {
	return []rpc.API{{
		Namespace: "zero",
		Service:   ZeroAPI(NewZeroAPI(store, logger)),
	}}
}
