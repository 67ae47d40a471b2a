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
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	jsoniter "github.com/json-iterator/go"
	"github.com/ledgerwatch/log/v3"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/zerotracer/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const HealthPath = "/health"

// ProgressReader reports how far the tracing extension got.
type ProgressReader interface {
	FinishedHeight(ctx context.Context) (number uint64, ok bool, err error)
}

type healthResponse struct {
	Healthy        bool    `json:"healthy"`
	FinishedHeight *uint64 `json:"finished_height,omitempty"`
	Error          string  `json:"error,omitempty"`
}

func healthHandler(progress ProgressReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var res healthResponse
		status := http.StatusOK
		number, ok, err := progress.FinishedHeight(r.Context())
		switch {
		case err != nil:
			status = http.StatusServiceUnavailable
			res.Error = err.Error()
		default:
			res.Healthy = true
			if ok {
				res.FinishedHeight = &number
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(res); err != nil {
			log.Debug("[rpc] Failed to write health response", "err", err)
		}
	}
}

// NewHTTPHandler routes JSON-RPC on "/", the health check and, when enabled,
// the prometheus metrics.
func NewHTTPHandler(cfg *Flags, srv *rpc.Server, progress ProgressReader) http.Handler {
	mux := chi.NewRouter()
	if len(cfg.HttpCORSDomain) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.HttpCORSDomain,
			AllowedMethods: []string{http.MethodPost, http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"*"},
			MaxAge:         600,
		}))
	}
	mux.Get(HealthPath, healthHandler(progress))
	if cfg.MetricsEnabled {
		mux.Handle(metrics.PrometheusPath, metrics.Handler())
	}
	mux.Post("/", srv.ServeHTTP)
	return mux
}

// StartRpcServer serves apis until ctx is cancelled.
func StartRpcServer(ctx context.Context, cfg *Flags, apis []rpc.API, progress ProgressReader, logger log.Logger) error {
	srv := rpc.NewServer()
	defer srv.Stop()
	for _, api := range apis {
		if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
			return fmt.Errorf("could not register RPC api %s: %w", api.Namespace, err)
		}
	}

	httpEndpoint := fmt.Sprintf("%s:%d", cfg.HttpListenAddress, cfg.HttpPort)
	listener, err := net.Listen("tcp", httpEndpoint)
	if err != nil {
		return fmt.Errorf("could not start RPC api: %w", err)
	}
	server := &http.Server{
		Handler:           NewHTTPHandler(cfg, srv, progress),
		ReadTimeout:       rpc.DefaultHTTPTimeouts.ReadTimeout,
		ReadHeaderTimeout: rpc.DefaultHTTPTimeouts.ReadHeaderTimeout,
		WriteTimeout:      rpc.DefaultHTTPTimeouts.WriteTimeout,
		IdleTimeout:       rpc.DefaultHTTPTimeouts.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	logger.Info("HTTP endpoint opened", "url", listener.Addr().String(), "metrics", cfg.MetricsEnabled, "corsdomain", cfg.HttpCORSDomain)

	err = g.Wait()
	logger.Info("HTTP endpoint closed", "url", httpEndpoint)
	return err
}
