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

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/apqgate/config"
	"github.com/cardinalhq/apqgate/internal/apq"
	"github.com/cardinalhq/apqgate/internal/querycache"
)

func init() {
	var scopes []string

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Remove persisted queries from the shared cache",
		Long: `Remove every persisted query from the configured cache, or only those of
the scopes named with --scope. Other entries sharing the cache are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			setupLogging("apqgate-flush")

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Cache.Backend == config.BackendMemory {
				return fmt.Errorf("cache.backend is %q; nothing outside a running server holds its entries", cfg.Cache.Backend)
			}

			ctx := cmd.Context()
			d := newDeps(cfg)
			defer d.Close()

			cache, err := d.openCache(ctx)
			if err != nil {
				return err
			}
			_, err = flush(ctx, cache, scopes, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Only flush these scopes (repeatable)")
	rootCmd.AddCommand(cmd)
}

// flush cleans the persisted query tag, or each scope's tag when scopes are
// given. Every scope is attempted even when an earlier one fails.
func flush(ctx context.Context, cache querycache.Cache, scopes []string, out io.Writer) (int, error) {
	if len(scopes) == 0 {
		n, err := cache.CleanTags(ctx, apq.CacheTag)
		if err != nil {
			return 0, fmt.Errorf("flushing persisted queries: %w", err)
		}
		_, _ = fmt.Fprintf(out, "flushed %d persisted queries\n", n)
		return n, nil
	}

	var result *multierror.Error
	total := 0
	for _, scope := range scopes {
		n, err := cache.CleanTags(ctx, apq.ScopeTag(scope))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("flushing scope %s: %w", scope, err))
			continue
		}
		slog.Debug("Flushed scope", slog.String("scope", scope), slog.Int("count", n))
		_, _ = fmt.Fprintf(out, "scope %s: flushed %d persisted queries\n", scope, n)
		total += n
	}
	return total, result.ErrorOrNil()
}
