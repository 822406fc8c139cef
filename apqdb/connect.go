// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package apqdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	apqdbmigrations "github.com/cardinalhq/apqgate/apqdb/migrations"
	"github.com/cardinalhq/apqgate/internal/dbopen"
	"github.com/cardinalhq/apqgate/migrations"
)

// ConnectToAPQDB opens a pool using the APQDB_* environment variables and
// verifies the schema version. Pass dbopen.SkipMigrationCheck() when the
// caller is about to migrate.
func ConnectToAPQDB(ctx context.Context, opts ...dbopen.Options) (*pgxpool.Pool, error) {
	connectionString, err := dbopen.GetDatabaseURLFromEnv("APQDB")
	if err != nil {
		return nil, errors.Join(dbopen.ErrDatabaseNotConfigured, fmt.Errorf("failed to get APQDB connection string: %w", err))
	}

	pool, err := dbopen.NewConnectionPool(ctx, connectionString)
	if err != nil {
		return nil, err
	}

	var checkOptions []migrations.CheckOption
	for _, o := range opts {
		checkOptions = append(checkOptions, o.MigrationCheckOptions...)
	}

	if err := apqdbmigrations.CheckVersion(ctx, pool, checkOptions...); err != nil {
		pool.Close()
		return nil, fmt.Errorf("APQDB migration version check failed: %w", err)
	}

	return pool, nil
}

// APQDBStore connects to APQDB and returns a Store over the pool.
func APQDBStore(ctx context.Context, opts ...dbopen.Options) (*Store, error) {
	pool, err := ConnectToAPQDB(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}
