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


package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/erigontech/zerotracer/cmd/zerotracer/cli"
	"github.com/erigontech/zerotracer/core/types"
	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/db/tracestore"
	"github.com/erigontech/zerotracer/eth/tracers/zero"
	"github.com/erigontech/zerotracer/node"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errTraceNotFound = errors.New("block trace not found")

const tableSizesInterval = time.Minute

func openNode(cmd *cobra.Command, cfg *cli.Flags, readOnly bool) (*node.Node, error) {
	nodeCfg, err := cfg.NodeConfig(readOnly)
	if err != nil {
		return nil, err
	}
	return node.New(cmd.Context(), nodeCfg, cfg.Logger())
}

func serveCommand(cfg *cli.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the zero RPC namespace over the traces stored in --datadir",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(cmd, cfg, true)
			if err != nil {
				return err
			}
			defer n.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			if cfg.MetricsEnabled {
				go kv.CollectTableSizesPeriodically(ctx, n.KvStore().DB(), kv.ZeroTraceDB, tableSizesInterval, cfg.Logger())
			}
			return cli.StartRpcServer(ctx, cfg, n.APIs(), n.Store(), cfg.Logger())
		},
	}
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid block hash %q: %w", s, err)
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid block hash %q: want %d bytes, got %d", s, common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// lookupTrace accepts a 0x-prefixed 32-byte hash or a decimal or hex block number.
func lookupTrace(ctx context.Context, reader tracestore.Reader, arg string) (*types.BlockTrace, error) {
	var (
		trace *types.BlockTrace
		err   error
	)
	if strings.HasPrefix(arg, "0x") && len(arg) == 2+2*common.HashLength {
		hash, herr := parseHash(arg)
		if herr != nil {
			return nil, herr
		}
		trace, err = reader.GetByHash(ctx, hash)
	} else {
		number, perr := strconv.ParseUint(arg, 0, 64)
		if perr != nil {
			return nil, fmt.Errorf("invalid block number or hash %q", arg)
		}
		trace, err = reader.GetByNumber(ctx, number)
	}
	if err != nil {
		return nil, err
	}
	if trace == nil {
		return nil, fmt.Errorf("%w: %s", errTraceNotFound, arg)
	}
	return trace, nil
}

func inspectCommand(cfg *cli.Flags) *cobra.Command {
	var verify, compact bool
	cmd := &cobra.Command{
		Use:   "inspect <number|hash>",
		Short: "Print a stored block trace as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(cmd, cfg, true)
			if err != nil {
				return err
			}
			defer n.Close()

			trace, err := lookupTrace(cmd.Context(), n.Store(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			if err := enc.Encode(trace); err != nil {
				return err
			}

			logger := cfg.Logger()
			logger.Info("[zero] Block trace", "block", args[0], "txs", len(trace.TxnInfo), "gas", trace.GasUsed(),
				"code", len(trace.CodeDb), "witness_nodes", zero.WitnessNodes(&trace.TriePreImages))
			if !verify {
				return nil
			}
			accounts, slots, err := trace.VerifyWitness()
			if err != nil {
				return fmt.Errorf("witness verification failed: %w", err)
			}
			logger.Info("[zero] Witness verified", "accounts", accounts, "slots", slots)
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "Resolve every account and slot used by the transactions against the witness")
	cmd.Flags().BoolVar(&compact, "compact", false, "Print the trace on a single line")
	return cmd
}

func deleteCommand(cfg *cli.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <hash>",
		Short: "Delete the trace of a block by hash. Fails while a node holds the datadir",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := parseHash(args[0])
			if err != nil {
				return err
			}
			n, err := openNode(cmd, cfg, false)
			if err != nil {
				return err
			}
			defer n.Close()

			var existed bool
			if err := n.KvStore().DB().Update(cmd.Context(), func(tx kv.RwTx) error {
				existed, err = tracestore.DeleteBlockTrace(tx, hash)
				return err
			}); err != nil {
				return err
			}
			if !existed {
				return fmt.Errorf("%w: %s", errTraceNotFound, hash.Hex())
			}
			cfg.Logger().Info("[zero] Deleted block trace", "hash", hash)
			return nil
		},
	}
}
