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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/erigontech/zerotracer/node/nodecfg"
	"github.com/erigontech/zerotracer/node/nodecfg/datadir"
	"github.com/erigontech/zerotracer/turbo/logging"
)

const ConfigFlag = "config"

type Flags struct {
	DataDir           string
	ConfigFile        string
	HttpListenAddress string
	HttpPort          int
	HttpCORSDomain    []string
	MetricsEnabled    bool
	DBSizeLimit       string
	InMem             bool
	Compression       bool
	TraceCacheSize    int

	logger log.Logger
}

func RootCommand() (*cobra.Command, *Flags) {
	rootCmd := &cobra.Command{
		Use:           "zerotracer",
		Short:         "zerotracer serves the zk-prover block traces recorded next to an Erigon node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cfg := &Flags{}
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "datadir", "", "path to the tracer working directory")
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, ConfigFlag, "", "Sets flags from a .toml or .yaml file, explicit flags take precedence")
	rootCmd.PersistentFlags().StringVar(&cfg.HttpListenAddress, "http.addr", nodecfg.DefaultHTTPHost, "HTTP-RPC server listening interface")
	rootCmd.PersistentFlags().IntVar(&cfg.HttpPort, "http.port", nodecfg.DefaultHTTPPort, "HTTP-RPC server listening port")
	rootCmd.PersistentFlags().StringSliceVar(&cfg.HttpCORSDomain, "http.corsdomain", []string{}, "Comma separated list of domains from which to accept cross origin requests (browser enforced)")
	rootCmd.PersistentFlags().BoolVar(&cfg.MetricsEnabled, "metrics", false, "Serve prometheus metrics on the HTTP-RPC endpoint")
	rootCmd.PersistentFlags().StringVar(&cfg.DBSizeLimit, "db.size.limit", nodecfg.DefaultConfig.DBSizeLimit.String(), "Upper limit of the trace database size, for example: 512MB, 2TB")
	rootCmd.PersistentFlags().BoolVar(&cfg.InMem, "db.inmem", false, "Keep traces in memory only")
	rootCmd.PersistentFlags().BoolVar(&cfg.Compression, "trace.compression", nodecfg.DefaultConfig.Compression, "Store new traces zstd-compressed")
	rootCmd.PersistentFlags().IntVar(&cfg.TraceCacheSize, "trace.cache", nodecfg.DefaultConfig.TraceCacheSize, "Amount of decoded traces kept in memory for queries by hash, unused by read-only opens. Set 0 to disable")
	logging.RegisterFlags(rootCmd.PersistentFlags())

	if err := rootCmd.MarkPersistentFlagDirname("datadir"); err != nil {
		panic(err)
	}
	if err := rootCmd.MarkPersistentFlagFilename(ConfigFlag, "toml", "yaml", "yml"); err != nil {
		panic(err)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfg.ConfigFile != "" {
			if err := SetFlagsFromConfigFile(cmd.Flags(), cfg.ConfigFile); err != nil {
				return fmt.Errorf("failed setting config flags from yaml/toml file: %w", err)
			}
		}
		cfg.logger = logging.SetupLoggerCmd("zerotracer", cmd)
		return nil
	}

	return rootCmd, cfg
}

func (cfg *Flags) Logger() log.Logger {
	if cfg.logger == nil {
		return log.Root()
	}
	return cfg.logger
}

// NodeConfig converts the flags into the trace store configuration. Read-only
// opens run without the trace cache since another process owns the writes.
func (cfg *Flags) NodeConfig(readOnly bool) (nodecfg.Config, error) {
	nodeCfg := nodecfg.DefaultConfig
	if cfg.DataDir != "" {
		nodeCfg.Dirs = datadir.New(cfg.DataDir)
	}
	if err := nodeCfg.DBSizeLimit.UnmarshalText([]byte(cfg.DBSizeLimit)); err != nil {
		return nodeCfg, fmt.Errorf("invalid --db.size.limit %q: %w", cfg.DBSizeLimit, err)
	}
	if nodeCfg.DBSizeLimit < datasize.MB {
		return nodeCfg, fmt.Errorf("--db.size.limit too small: %s", nodeCfg.DBSizeLimit)
	}
	nodeCfg.InMem = cfg.InMem
	nodeCfg.ReadOnly = readOnly && !cfg.InMem
	nodeCfg.Compression = cfg.Compression
	nodeCfg.TraceCacheSize = cfg.TraceCacheSize
	if nodeCfg.ReadOnly {
		nodeCfg.TraceCacheSize = 0
	}
	return nodeCfg, nil
}

// SetFlagsFromConfigFile sets every flag named in the file that was not given
// on the command line.
func SetFlagsFromConfigFile(fs *pflag.FlagSet, filePath string) error {
	fileExtension := filepath.Ext(filePath)

	fileConfig := make(map[string]interface{})

	switch fileExtension {
	case ".yaml", ".yml":
		yamlFile, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(yamlFile, fileConfig); err != nil {
			return err
		}
	case ".toml":
		tomlFile, err := os.ReadFile(filePath)
		if err != nil {
			return err
		}
		if err := toml.Unmarshal(tomlFile, &fileConfig); err != nil {
			return err
		}
	default:
		return errors.New("config files only accepted are .yaml and .toml")
	}

	for key, value := range fileConfig {
		if key == ConfigFlag || fs.Changed(key) {
			continue
		}
		if fs.Lookup(key) == nil {
			return fmt.Errorf("unknown flag %q in config file", key)
		}
		if reflect.ValueOf(value).Kind() == reflect.Slice {
			sliceInterface := value.([]interface{})
			s := make([]string, len(sliceInterface))
			for i, v := range sliceInterface {
				s[i] = fmt.Sprintf("%v", v)
			}
			if err := fs.Set(key, strings.Join(s, ",")); err != nil {
				return fmt.Errorf("failed setting %s flag with values=%s error=%w", key, s, err)
			}
		} else {
			if err := fs.Set(key, fmt.Sprintf("%v", value)); err != nil {
				return fmt.Errorf("failed setting %s flag with value=%v error=%w", key, value, err)
			}
		}
	}

	return nil
}
