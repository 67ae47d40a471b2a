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


package cli

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/zerotracer/core/types"
	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/db/kv/memdb"
	"github.com/erigontech/zerotracer/db/tracestore"
	"github.com/erigontech/zerotracer/turbo/jsonrpc"
)

type progressFunc func(ctx context.Context) (uint64, bool, error)

func (f progressFunc) FinishedHeight(ctx context.Context) (uint64, bool, error) { return f(ctx) }

func newTestHTTPServer(t *testing.T, cfg *Flags) (*httptest.Server, *tracestore.KvStore) {
	t.Helper()
	ctx := context.Background()
	store, err := tracestore.New(ctx, memdb.NewTestDB(t, kv.ZeroTraceDB), tracestore.NewCodec(true), log.New())
	require.NoError(t, err)

	srv := rpc.NewServer()
	for _, api := range jsonrpc.APIList(store, log.New()) {
		require.NoError(t, srv.RegisterName(api.Namespace, api.Service))
	}
	ts := httptest.NewServer(NewHTTPHandler(cfg, srv, store))
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})
	return ts, store
}

func TestHTTPHandlerServesRPC(t *testing.T) {
	ctx := context.Background()
	ts, store := newTestHTTPServer(t, &Flags{})

	trace := &types.BlockTrace{TxnInfo: []types.TxnInfo{{Meta: types.TxnMeta{GasUsed: 21_000}}}}
	require.NoError(t, store.Put(ctx, common.HexToHash("0x07"), 7, trace))

	client, err := rpc.DialContext(ctx, ts.URL)
	require.NoError(t, err)
	defer client.Close()

	var got types.BlockTrace
	require.NoError(t, client.CallContext(ctx, &got, "zero_getBlockTraceByNumber", "0x7"))
	require.Equal(t, uint64(21_000), got.GasUsed())

	err = client.CallContext(ctx, &got, "zero_getBlockTraceByNumber", "0x8")
	var rpcErr rpc.Error
	require.True(t, errors.As(err, &rpcErr), "%v", err)
	require.Equal(t, jsonrpc.InvalidParamsCode, rpcErr.ErrorCode())

	res, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestHTTPHandlerHealth(t *testing.T) {
	ctx := context.Background()
	ts, store := newTestHTTPServer(t, &Flags{})

	var body healthResponse
	res, err := http.Get(ts.URL + HealthPath)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	res.Body.Close()
	require.True(t, body.Healthy)
	require.Nil(t, body.FinishedHeight)

	require.NoError(t, store.SetFinishedHeight(ctx, 42))
	res, err = http.Get(ts.URL + HealthPath)
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	res.Body.Close()
	require.NotNil(t, body.FinishedHeight)
	require.Equal(t, uint64(42), *body.FinishedHeight)

	failing := httptest.NewServer(NewHTTPHandler(&Flags{}, rpc.NewServer(), progressFunc(func(context.Context) (uint64, bool, error) {
		return 0, false, errors.New("database closed")
	})))
	defer failing.Close()
	res, err = http.Get(failing.URL + HealthPath)
	require.NoError(t, err)
	body = healthResponse{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	res.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	require.False(t, body.Healthy)
	require.Equal(t, "database closed", body.Error)
}

func TestHTTPHandlerMetricsAndCORS(t *testing.T) {
	const origin = "https://prover.example"
	ts, _ := newTestHTTPServer(t, &Flags{MetricsEnabled: true, HttpCORSDomain: []string{origin}})

	res, err := http.Get(ts.URL + "/debug/metrics/prometheus")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, origin, res.Header.Get("Access-Control-Allow-Origin"))

	disabled, _ := newTestHTTPServer(t, &Flags{})
	res, err = http.Get(disabled.URL + "/debug/metrics/prometheus")
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusNotFound, res.StatusCode)
}
