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

package kv

import (
	"fmt"
	"sort"
	"strings"
)

// DBSchemaVersion versions list
// 1.0 - BlockTrace table keyed by block hash, BlockTraceNumber secondary index
// 1.1 - trace blobs prefixed with codec version byte, zstd compression
var DBSchemaVersion = struct{ Major, Minor uint32 }{Major: 1, Minor: 1}

const (
	// DatabaseInfo is used to store information about data layout.
	// key - "version", value - major_u32 + minor_u32
	DatabaseInfo = "DbInfo"

	//key - block hash
	//value - block_num_u64 + encoded block trace
	BlockTrace = "BlockTrace"

	//key - block_num_u64 + block hash
	//value - empty
	// Several hashes may share one number while a fork is not yet reverted.
	BlockTraceNumber = "BlockTraceNumber"

	// Progress of the trace extension.
	// key - "finished"
	// value - block_num_u64
	TraceProgress = "TraceProgress"

	// Applied schema migrations.
	// key - migration name, value - schema version it was applied on
	// key - "_progress_" + migration name, value - resume point of an unfinished migration
	Migrations = "Migration"
)

var ZeroTraceTables = []string{
	DatabaseInfo,
	BlockTrace,
	BlockTraceNumber,
	TraceProgress,
	Migrations,
}

type TableCfg map[string]TableCfgItem

type TableFlags uint

const (
	Default TableFlags = 0x00
)

type TableCfgItem struct {
	Flags        TableFlags
	IsDeprecated bool
}

var ZeroTraceTablesCfg = TableCfg{}

func TablesCfgByLabel(label Label) TableCfg {
	switch label {
	case ZeroTraceDB, TemporaryDB:
		return ZeroTraceTablesCfg
	default:
		panic(fmt.Sprintf("unexpected label: %s", label))
	}
}

func sortBuckets() {
	sort.SliceStable(ZeroTraceTables, func(i, j int) bool {
		return strings.Compare(ZeroTraceTables[i], ZeroTraceTables[j]) < 0
	})
}

func init() {
	reinit()
}

func reinit() {
	sortBuckets()

	for _, name := range ZeroTraceTables {
		_, ok := ZeroTraceTablesCfg[name]
		if !ok {
			ZeroTraceTablesCfg[name] = TableCfgItem{}
		}
	}
}
