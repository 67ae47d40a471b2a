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


package nodecfg

import (
	"github.com/c2h5oh/datasize"

	"github.com/erigontech/zerotracer/node/nodecfg/datadir"
)

const (
	DefaultHTTPHost = "localhost"
	DefaultHTTPPort = 8545

	DefaultTraceCacheSize = 256
)

// Config represents a small collection of configuration values to fine tune the
// trace store of the tracer and the services built on top of it.
type Config struct {
	Dirs datadir.Dirs

	// DBSizeLimit caps the growth of the trace database.
	DBSizeLimit datasize.ByteSize

	// InMem keeps the trace database in memory. Nothing survives Close.
	InMem bool

	// ReadOnly opens an existing trace database without taking the datadir
	// lock, so a query process can run beside the writing node.
	ReadOnly bool

	// Compression stores new traces zstd-compressed. Both encodings are
	// always readable.
	Compression bool

	// TraceCacheSize is the number of decoded traces kept in memory for
	// queries by hash. 0 disables the cache.
	TraceCacheSize int
}

// DefaultConfig contains reasonable default settings.
var DefaultConfig = Config{
	DBSizeLimit:    2 * datasize.TB,
	Compression:    true,
	TraceCacheSize: DefaultTraceCacheSize,
}
