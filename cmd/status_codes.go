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
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cardinalhq/apqgate/config"
	"github.com/cardinalhq/apqgate/internal/apq"
	"github.com/cardinalhq/apqgate/internal/dbopen"
	"github.com/cardinalhq/apqgate/internal/scopeconfig"
)

func init() {
	var scope string

	cmd := &cobra.Command{
		Use:   "status-codes",
		Short: "Manage per-scope persisted query status codes",
	}
	cmd.PersistentFlags().StringVar(&scope, "scope", "", "Scope to manage (default: scope.default)")

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the overrides and effective status codes of a scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withScopeConfig(cmd, &scope, func(ctx context.Context, svc *scopeconfig.Service, scope string) error {
				return showStatusCodes(ctx, svc, scope, cmd.OutOrStdout())
			})
		},
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Override status codes of a scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o := overridesFromFlags(cmd.Flags())
			if o.IsEmpty() {
				return errors.New("no status code flags given")
			}
			return withScopeConfig(cmd, &scope, func(ctx context.Context, svc *scopeconfig.Service, scope string) error {
				if err := svc.SetStatusOverrides(ctx, scope, o); err != nil {
					return err
				}
				return showStatusCodes(ctx, svc, scope, cmd.OutOrStdout())
			})
		},
	}
	setCmd.Flags().Int("not-found-get", 0, "Status for a GET with an unknown hash")
	setCmd.Flags().Int("not-found-post", 0, "Status for a POST with an unknown hash")
	setCmd.Flags().Int("mismatch-get", 0, "Status for a GET whose hash does not match its query")
	setCmd.Flags().Int("mismatch-post", 0, "Status for a POST whose hash does not match its query")

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove every override of a scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withScopeConfig(cmd, &scope, func(ctx context.Context, svc *scopeconfig.Service, scope string) error {
				if err := svc.DeleteStatusOverrides(ctx, scope); err != nil {
					return err
				}
				return showStatusCodes(ctx, svc, scope, cmd.OutOrStdout())
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every configuration entry stored for a scope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withScopeConfig(cmd, &scope, func(ctx context.Context, svc *scopeconfig.Service, scope string) error {
				return listScopeConfig(ctx, svc, scope, cmd.OutOrStdout())
			})
		},
	}

	cmd.AddCommand(getCmd, setCmd, deleteCmd, listCmd)
	rootCmd.AddCommand(cmd)
}

func withScopeConfig(cmd *cobra.Command, scope *string, fn func(context.Context, *scopeconfig.Service, string) error) error {
	setupLogging("apqgate-status-codes")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *scope == "" {
		*scope = cfg.Scope.Default
	}

	ctx := cmd.Context()
	d := newDeps(cfg, dbopen.WarnOnMigrationMismatch())
	defer d.Close()

	svc, err := newScopeConfigService(ctx, d)
	if err != nil {
		return err
	}
	return fn(ctx, svc, *scope)
}

func overridesFromFlags(flags *pflag.FlagSet) scopeconfig.StatusOverrides {
	var o scopeconfig.StatusOverrides
	for name, field := range map[string]**int{
		"not-found-get":  &o.NotFoundGET,
		"not-found-post": &o.NotFoundPOST,
		"mismatch-get":   &o.MismatchGET,
		"mismatch-post":  &o.MismatchPOST,
	} {
		if !flags.Changed(name) {
			continue
		}
		v, err := flags.GetInt(name)
		if err != nil {
			continue
		}
		*field = &v
	}
	return o
}

type statusCodesView struct {
	Scope     string                      `json:"scope"`
	Overrides scopeconfig.StatusOverrides `json:"overrides"`
	Effective apq.StatusCodes             `json:"effective"`
}

func showStatusCodes(ctx context.Context, svc *scopeconfig.Service, scope string, out io.Writer) error {
	o, err := svc.GetStatusOverrides(ctx, scope)
	if err != nil {
		return err
	}
	codes, err := svc.StatusCodes(ctx, scope)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(statusCodesView{Scope: scope, Overrides: o, Effective: codes})
}

// listScopeConfig prints the raw entries stored for scope, without the
// fallback chain applied.
func listScopeConfig(ctx context.Context, svc *scopeconfig.Service, scope string, out io.Writer) error {
	rows, err := svc.ListConfigs(ctx, scope)
	if err != nil {
		return err
	}
	entries := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		entries[row.Key] = row.Value
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Scope   string                     `json:"scope"`
		Entries map[string]json.RawMessage `json:"entries"`
	}{Scope: scope, Entries: entries})
}
