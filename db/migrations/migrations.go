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

package migrations

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/zerotracer/db/kv"
	"github.com/erigontech/zerotracer/db/tracestore"
)

// migrations apply sequentially in order of this array, skips applied migrations
// it allows - don't worry about merge conflicts and use switch branches
//
// Idempotency is expected
// Best practices to achieve Idempotency:
//   - leave values that are already in the new layout untouched
//   - persist a resume point with BeforeCommit(tx, key, false) when working in batches
//   - write test - and check that it's safe to apply same migration twice
var migrations = map[kv.Label][]Migration{
	kv.ZeroTraceDB: {
		traceCodecPrefix,
	},
}

const progressPrefix = "_progress_"

// Callback must be called inside the migration's last transaction with
// isDone set. Earlier calls with a key record where to resume.
type Callback func(tx kv.RwTx, progress []byte, isDone bool) error
type Migration struct {
	Name string
	Up   func(ctx context.Context, db kv.RwDB, progress []byte, BeforeCommit Callback, logger log.Logger) error
}

var (
	ErrMigrationNonUniqueName   = errors.New("please provide unique migration name")
	ErrMigrationCommitNotCalled = errors.New("migration before-commit function was not called")
)

func NewMigrator(label kv.Label) *Migrator {
	return &Migrator{
		Migrations: migrations[label],
	}
}

type Migrator struct {
	Migrations []Migration
}

// AppliedMigrations returns the names of the migrations recorded as complete.
func AppliedMigrations(tx kv.Tx, withPayload bool) (map[string][]byte, error) {
	applied := map[string][]byte{}
	err := tx.ForEach(kv.Migrations, nil, func(k []byte, v []byte) error {
		if bytes.HasPrefix(k, []byte(progressPrefix)) {
			return nil
		}
		if withPayload {
			applied[string(k)] = bytes.Clone(v)
		} else {
			applied[string(k)] = []byte{}
		}
		return nil
	})
	return applied, err
}

func (m *Migrator) HasPendingMigrations(ctx context.Context, db kv.RoDB) (bool, error) {
	var has bool
	if err := db.View(ctx, func(tx kv.Tx) error {
		pending, err := m.PendingMigrations(tx)
		if err != nil {
			return err
		}
		has = len(pending) > 0
		return nil
	}); err != nil {
		return false, err
	}
	return has, nil
}

func (m *Migrator) PendingMigrations(tx kv.Tx) ([]Migration, error) {
	applied, err := AppliedMigrations(tx, false)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for i := range m.Migrations {
		v := m.Migrations[i]
		if _, ok := applied[v.Name]; ok {
			continue
		}
		pending = append(pending, v)
	}
	return pending, nil
}

func (m *Migrator) VerifyVersion(ctx context.Context, db kv.RoDB) error {
	if err := db.View(ctx, func(tx kv.Tx) error {
		major, minor, ok, err := tracestore.ReadSchemaVersion(tx)
		if err != nil {
			return fmt.Errorf("reading DB schema version: %w", err)
		}
		if ok {
			if major > kv.DBSchemaVersion.Major {
				return fmt.Errorf("cannot downgrade major DB version from %d to %d", major, kv.DBSchemaVersion.Major)
			} else if major == kv.DBSchemaVersion.Major {
				if minor > kv.DBSchemaVersion.Minor {
					return fmt.Errorf("cannot downgrade minor DB version from %d.%d to %d.%d", major, minor, kv.DBSchemaVersion.Major, kv.DBSchemaVersion.Minor)
				}
			} else {
				return fmt.Errorf("cannot switch major DB version, db: %d, binary: %d", major, kv.DBSchemaVersion.Major)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("migrator.VerifyVersion: %w", err)
	}

	return nil
}

// Apply runs all pending migrations in order and then stamps the current
// schema version.
func (m *Migrator) Apply(ctx context.Context, db kv.RwDB, logger log.Logger) error {
	if len(m.Migrations) == 0 {
		return nil
	}

	var (
		applied      map[string][]byte
		major, minor uint32
	)
	if err := db.View(ctx, func(tx kv.Tx) (err error) {
		applied, err = AppliedMigrations(tx, false)
		if err != nil {
			return fmt.Errorf("reading applied migrations: %w", err)
		}
		major, minor, _, err = tracestore.ReadSchemaVersion(tx)
		return err
	}); err != nil {
		return err
	}
	if err := m.VerifyVersion(ctx, db); err != nil {
		return fmt.Errorf("migrator.Apply: %w", err)
	}

	// migration names must be unique, protection against people's mistake
	uniqueNameCheck := map[string]bool{}
	for i := range m.Migrations {
		_, ok := uniqueNameCheck[m.Migrations[i].Name]
		if ok {
			return fmt.Errorf("%w, duplicate: %s", ErrMigrationNonUniqueName, m.Migrations[i].Name)
		}
		uniqueNameCheck[m.Migrations[i].Name] = true
	}

	appliedOn := []byte(fmt.Sprintf("%d.%d", major, minor))
	for i := range m.Migrations {
		v := m.Migrations[i]
		if _, ok := applied[v.Name]; ok {
			continue
		}

		callbackCalled := false // commit function must be called if no error, protection against people's mistake

		logger.Info("Apply migration", "name", v.Name)
		var progress []byte
		if err := db.View(ctx, func(tx kv.Tx) (err error) {
			progress, err = tx.GetOne(kv.Migrations, []byte(progressPrefix+v.Name))
			progress = bytes.Clone(progress)
			return err
		}); err != nil {
			return fmt.Errorf("migrator.Apply: %w", err)
		}

		if err := v.Up(ctx, db, progress, func(tx kv.RwTx, key []byte, isDone bool) error {
			if !isDone {
				if key != nil {
					return tx.Put(kv.Migrations, []byte(progressPrefix+v.Name), key)
				}
				return nil
			}
			callbackCalled = true

			if err := tx.Put(kv.Migrations, []byte(v.Name), appliedOn); err != nil {
				return err
			}
			return tx.Delete(kv.Migrations, []byte(progressPrefix+v.Name))
		}, logger); err != nil {
			return fmt.Errorf("migrator.Apply.Up: %s, %w", v.Name, err)
		}

		if !callbackCalled {
			return fmt.Errorf("%w: %s", ErrMigrationCommitNotCalled, v.Name)
		}
		logger.Info("Applied migration", "name", v.Name)
	}
	if err := db.Update(ctx, func(tx kv.RwTx) error {
		return tracestore.WriteSchemaVersion(tx, kv.DBSchemaVersion.Major, kv.DBSchemaVersion.Minor)
	}); err != nil {
		return fmt.Errorf("migrator.Apply: %w", err)
	}
	logger.Info("Updated DB schema to", "version", fmt.Sprintf("%d.%d", kv.DBSchemaVersion.Major, kv.DBSchemaVersion.Minor))
	return nil
}
