// Copyright 2022 The Erigon Authors
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
	"context"
	"errors"

	"github.com/c2h5oh/datasize"
)

/*
Naming:
 tx - Database Transaction
 txn - Ethereum Transaction
 RoTx - Read-Only Database Transaction. RwTx - read-write
 k, v - key, value
 Table - collection of key-value pairs. In MDBX - it's `dbi`. Keys are sorted and unique
 Cursor - low-level api to navigate over Table

Both engines (mdbx and memdb) give the same guarantees:
 - at most one RwTx is open at a time, other writers block in BeginRw/Update
 - any number of read transactions run concurrently with the writer and see a
   consistent snapshot taken when they began
 - data written in a RwTx becomes visible to new readers only after Commit
*/

/*
RoDB low-level interface.
Warning: can't move `tx` between goroutines.
Lifetime: read data valid until end of transaction.
Example:

	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	... application logic using `tx`
*/
type RoDB interface {
	Closer
	BeginRo(ctx context.Context) (Tx, error)

	// View like BeginRo but for short-living transactions. Example:
	//	 if err := db.View(ctx, func(tx kv.Tx) error {
	//	    ... code which uses database in transaction
	//	 }); err != nil {
	//			return err
	//	}
	View(ctx context.Context, f func(tx Tx) error) error

	ReadOnly() bool
	AllTables() TableCfg
	PageSize() datasize.ByteSize
}

// RwDB low-level interface.
type RwDB interface {
	RoDB

	// Update like BeginRw but commits on nil error and rolls back otherwise.
	Update(ctx context.Context, f func(tx RwTx) error) error

	// BeginRw - creates transaction. Blocks while another RwTx is open.
	BeginRw(ctx context.Context) (RwTx, error)
}

type Closer interface {
	Close()
}

type Getter interface {
	// Has indicates whether a key exists in the database.
	Has(table string, key []byte) (bool, error)

	// GetOne references a readonly section of memory that must not be accessed after txn has terminated.
	// Returns nil value and nil error when the key is absent.
	GetOne(table string, key []byte) (val []byte, err error)

	// ForEach iterates over entries with keys greater or equal to fromPrefix.
	// walker is called for each eligible entry.
	// If walker returns an error iteration stops and the error is returned.
	ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error

	// ForPrefix iterates over entries which keys start with prefix.
	ForPrefix(table string, prefix []byte, walker func(k, v []byte) error) error
}

type Putter interface {
	// Put inserts or updates a single entry.
	Put(table string, k, v []byte) error

	// Delete removes a single entry. Deleting an absent key is not an error.
	Delete(table string, k []byte) error
}

// Tx
// WARNING:
//   - Tx is not threadsafe and may only be used in the goroutine that created it
//   - ReadOnly transactions do not lock goroutine to thread, RwTx does
type Tx interface {
	Getter

	// Cursor - creates cursor object on top of given table.
	// Cursor is not thread-safe and must be closed before the tx ends.
	Cursor(table string) (Cursor, error)

	// Count returns the number of entries in table.
	Count(table string) (uint64, error)

	ListTables() ([]string, error)

	Rollback() // Rollback - abandon all the operations of the transaction instead of saving them.
}

// RwTx
//
// WARNING:
//   - RwTx is not threadsafe and may only be used in the goroutine that created it.
//   - ReadOnly transactions do not lock goroutine to thread, RwTx does
type RwTx interface {
	Tx
	Putter

	Commit() error // Commit all the operations of a transaction into the database.
}

// Cursor - class for navigating through a database
//
// If methods (like First/Next/Seek) return error, then returned key SHOULD not be nil (can be []byte{} for example).
// Then looping code will look as:
// c := kv.Cursor(bucketName)
//
//	for k, v, err := c.First(); k != nil; k, v, err = c.Next() {
//	    if err != nil {
//	        return err
//	    }
//	    ... logic
//	}
type Cursor interface {
	First() ([]byte, []byte, error)               // First - position at first key/data item
	Seek(seek []byte) ([]byte, []byte, error)     // Seek - position at first key greater than or equal to specified key
	SeekExact(key []byte) ([]byte, []byte, error) // SeekExact - position at exact matching key if exists
	Next() ([]byte, []byte, error)                // Next - position at next key/value
	Last() ([]byte, []byte, error)                // Last - position at last key and last possible value

	Close()
}

type Label string

const (
	ZeroTraceDB = "zerotrace"
	TemporaryDB = "temporary"
)

func (l Label) String() string { return string(l) }

const ReadersLimit = 32000 // MDBX_READERS_LIMIT=32767

var (
	ErrDBReadOnly    = errors.New("database is opened in read-only mode")
	ErrUnknownTable  = errors.New("unknown table")
	ErrTxDone        = errors.New("transaction has already been committed or rolled back")
	ErrNestedWriteTx = errors.New("nested write transaction")
)
