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
package migrations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cardinalhq/apqgate/migrations"
)

// CheckVersion verifies that APQDB is at the migration version embedded in
// this binary. Environment settings are applied first, then opts.
func CheckVersion(ctx context.Context, pool *pgxpool.Pool, opts ...migrations.CheckOption) error {
	options := checkOptionsFromEnv()
	for _, opt := range opts {
		opt(&options)
	}

	if options.Mode == migrations.CheckModeSkip {
		slog.Debug("Migration version checking disabled for apqdb")
		return nil
	}

	return checkMigrationVersion(ctx, migrationFiles, func(ctx context.Context) (uint, bool, error) {
		return getCurrentMigrationVersion(pool)
	}, options)
}

// checkOptionsFromEnv returns migration check options from environment variables.
func checkOptionsFromEnv() migrations.CheckOptions {
	options := migrations.DefaultCheckOptions()

	if val := os.Getenv("APQDB_MIGRATION_CHECK_ENABLED"); val != "" && strings.ToLower(val) != "true" {
		options.Mode = migrations.CheckModeSkip
	}

	if val := os.Getenv("MIGRATION_CHECK_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			options.Timeout = d
		}
	}

	if val := os.Getenv("MIGRATION_CHECK_RETRY_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			options.RetryInterval = d
		}
	}

	if val := os.Getenv("MIGRATION_CHECK_ALLOW_DIRTY"); val != "" {
		options.AllowDirty = strings.ToLower(val) == "true"
	}

	return options
}

// extractLatestMigrationVersion extracts the highest migration version from embedded migration files
func extractLatestMigrationVersion(files fs.ReadDirFS) (uint, error) {
	entries, err := files.ReadDir(".")
	if err != nil {
		return 0, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var maxVersion uint
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		// "1760000000_persisted_query.up.sql"
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.ParseUint(prefix, 10, 64)
		if err != nil {
			continue
		}

		if uint(version) > maxVersion {
			maxVersion = uint(version)
		}
	}

	if maxVersion == 0 {
		return 0, errors.New("no valid migration files found")
	}

	return maxVersion, nil
}

type versionFunc func(ctx context.Context) (version uint, dirty bool, err error)

// checkMigrationVersion compares the database version reported by current
// with the newest embedded migration, waiting for it in CheckModeWait.
func checkMigrationVersion(ctx context.Context, files fs.ReadDirFS, current versionFunc, options migrations.CheckOptions) error {
	expectedVersion, err := extractLatestMigrationVersion(files)
	if err != nil {
		return fmt.Errorf("failed to extract expected migration version for apqdb: %w", err)
	}

	slog.Info("Checking migration version",
		slog.String("database", "apqdb"),
		slog.Uint64("expected_version", uint64(expectedVersion)),
		slog.Duration("timeout", options.Timeout))

	deadline := time.Now().Add(options.Timeout)
	ticker := time.NewTicker(options.RetryInterval)
	defer ticker.Stop()

	for {
		currentVersion, dirty, err := current(ctx)
		if err != nil {
			return fmt.Errorf("failed to get current migration version for apqdb: %w", err)
		}

		if dirty && !options.AllowDirty {
			return errors.New("database apqdb migration is in dirty state, please fix before proceeding")
		}
		if dirty {
			slog.Warn("Database migration is dirty but allowed to continue", slog.String("database", "apqdb"))
		}

		if currentVersion == expectedVersion {
			slog.Info("Migration version check passed",
				slog.String("database", "apqdb"),
				slog.Uint64("version", uint64(currentVersion)))
			return nil
		}

		var mismatch error
		if currentVersion > expectedVersion {
			mismatch = fmt.Errorf("database apqdb version %d is newer than expected version %d - you may need to update the application",
				currentVersion, expectedVersion)
		} else if time.Now().After(deadline) {
			mismatch = fmt.Errorf("timeout waiting for apqdb migration to complete: current version %d, expected %d",
				currentVersion, expectedVersion)
		}

		if options.Mode == migrations.CheckModeWarn {
			slog.Warn("APQDB migration version mismatch, continuing",
				slog.Uint64("current_version", uint64(currentVersion)),
				slog.Uint64("expected_version", uint64(expectedVersion)))
			return nil
		}
		if mismatch != nil {
			return mismatch
		}

		slog.Info("Waiting for migrations to complete",
			slog.String("database", "apqdb"),
			slog.Uint64("current_version", uint64(currentVersion)),
			slog.Uint64("expected_version", uint64(expectedVersion)),
			slog.Duration("remaining_timeout", time.Until(deadline)))

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for apqdb migrations: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// getCurrentMigrationVersion gets the current migration version from the database
func getCurrentMigrationVersion(pool *pgxpool.Pool) (uint, bool, error) {
	m, cleanup, err := newMigrate(pool)
	if err != nil {
		return 0, false, err
	}
	defer cleanup()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get current version: %w", err)
	}

	return version, dirty, nil
}
