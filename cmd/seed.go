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
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/apqgate/config"
	"github.com/cardinalhq/apqgate/internal/apq"
	"github.com/cardinalhq/apqgate/internal/awsclient"
	"github.com/cardinalhq/apqgate/internal/manifest"
)

func init() {
	var (
		location string
		scope    string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Preload persisted queries from an Apollo manifest",
		Long: `Read an Apollo persisted query manifest from a local file or an
s3://bucket/key URL and store every valid operation in the shared cache.
Operations whose body does not parse or does not hash to its id are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging("apqgate-seed")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Cache.Backend == config.BackendMemory {
				return fmt.Errorf("cache.backend is %q; seeded entries would be lost on exit", cfg.Cache.Backend)
			}
			if scope == "" {
				scope = cfg.Scope.Default
			}

			ctx := cmd.Context()
			var getter manifest.ObjectGetter
			if manifest.IsS3(location) {
				s3c, err := awsclient.NewS3(ctx,
					awsclient.WithRegion(cfg.S3.Region),
					awsclient.WithEndpoint(cfg.S3.Endpoint),
					awsclient.WithPathStyle(cfg.S3.PathStyle),
					awsclient.WithRole(cfg.S3.RoleARN),
				)
				if err != nil {
					return err
				}
				getter = s3c
			}

			m, err := manifest.Load(ctx, location, getter)
			if err != nil {
				return err
			}

			d := newDeps(cfg)
			defer d.Close()
			cache, err := d.openCache(ctx)
			if err != nil {
				return err
			}

			apqCfg := apq.Config{}
			if cfg.Scope.Enabled {
				apqCfg.Scope = apq.HeaderScope(cfg.Scope.Header, cfg.Scope.Default)
			}
			_, err = seed(ctx, apq.New(cache, apqCfg), m, scope, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&location, "manifest", "", "Manifest path or s3://bucket/key URL")
	cmd.Flags().StringVar(&scope, "scope", "", "Scope to seed (default: scope.default)")
	_ = cmd.MarkFlagRequired("manifest")
	rootCmd.AddCommand(cmd)
}

type seedResult struct {
	Stored   int
	Existing int
	Skipped  int
}

// seed persists every valid operation of m into scope. Invalid operations are
// reported and skipped; a cache failure aborts.
func seed(ctx context.Context, interceptor *apq.Interceptor, m *manifest.Manifest, scope string, out io.Writer) (seedResult, error) {
	var res seedResult

	valid, problems := m.Validate()
	for _, p := range problems {
		slog.Warn("Skipping manifest operation", slog.String("name", p.Operation.Name),
			slog.String("id", p.Operation.ID), slog.Any("error", p.Err))
		_, _ = fmt.Fprintf(out, "skipped %s\n", p.Error())
	}
	res.Skipped = len(problems)

	for _, op := range valid {
		stored, err := interceptor.Persist(ctx, scope, op.Body)
		if err != nil {
			return res, fmt.Errorf("persisting operation %q: %w", op.Name, err)
		}
		if stored {
			res.Stored++
		} else {
			res.Existing++
		}
	}

	_, _ = fmt.Fprintf(out, "scope %s: stored %d, already present %d, skipped %d\n",
		scope, res.Stored, res.Existing, res.Skipped)
	return res, nil
}
