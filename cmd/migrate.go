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

package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/apqgate/apqdb"
	apqdbmigrations "github.com/cardinalhq/apqgate/apqdb/migrations"
	"github.com/cardinalhq/apqgate/internal/dbopen"
)

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Run APQDB migrations",
		RunE: func(_ *cobra.Command, _ []string) error {
			setupLogging("apqgate-migrate")
			return migrate()
		},
	})
}

func migrate() error {
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(5*time.Minute))
	defer cancel()

	pool, err := apqdb.ConnectToAPQDB(ctx, dbopen.SkipMigrationCheck())
	if err != nil {
		return err
	}
	defer pool.Close()

	slog.Info("Running APQDB migrations")
	if err := apqdbmigrations.RunMigrationsUp(ctx, pool); err != nil {
		return err
	}
	slog.Info("APQDB migrations completed successfully")
	return nil
}
