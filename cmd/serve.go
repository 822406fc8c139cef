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
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cardinalhq/apqgate/config"
	"github.com/cardinalhq/apqgate/internal/apq"
	"github.com/cardinalhq/apqgate/internal/dbopen"
	"github.com/cardinalhq/apqgate/internal/debugging"
	"github.com/cardinalhq/apqgate/internal/gqlexec"
	"github.com/cardinalhq/apqgate/internal/healthcheck"
	"github.com/cardinalhq/apqgate/internal/logctx"
	"github.com/cardinalhq/apqgate/internal/querycache"
	"github.com/cardinalhq/apqgate/internal/scopeconfig"
	"github.com/cardinalhq/apqgate/migrations"
)

var migrationCheck string

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the GraphQL endpoint with persisted query support",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&migrationCheck, "migration-check", migrations.CheckModeWait.String(),
		"APQDB schema version check at startup (wait, warn, skip)")
	rootCmd.AddCommand(cmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	mode, err := migrations.ParseCheckMode(migrationCheck)
	if err != nil {
		return err
	}

	doneCtx, doneFx, err := setupTelemetry("apqgate")
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	debugging.RunPprof(doneCtx)

	d := newDeps(cfg, dbopen.WithCheckMode(mode))
	defer d.Close()

	cache, err := d.openCache(doneCtx)
	if err != nil {
		return err
	}
	handler, err := buildHandler(doneCtx, d, cache)
	if err != nil {
		return err
	}

	healthServer := healthcheck.NewServer(healthcheck.GetConfigFromEnv())
	for name, probe := range d.probes {
		healthServer.AddProbe(name, probe)
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	return serve(doneCtx, cfg.Server, ln, handler, healthServer)
}

// buildHandler assembles execution engine, interceptor and logging for the
// configured GraphQL path. Anything else answers 404.
func buildHandler(ctx context.Context, d *deps, cache querycache.Cache) (http.Handler, error) {
	cfg := d.cfg

	engine, err := newEngine(cfg.Upstream)
	if err != nil {
		return nil, err
	}

	apqCfg := apq.Config{
		StatusCodes:  cfg.Status,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if cfg.Scope.Enabled {
		apqCfg.Scope = apq.HeaderScope(cfg.Scope.Header, cfg.Scope.Default)
	}
	if cfg.ScopeConfig.Enabled {
		svc, err := newScopeConfigService(ctx, d)
		if err != nil {
			return nil, err
		}
		apqCfg.Statuses = svc
	}

	interceptor := apq.New(cache, apqCfg)

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, logctx.Middleware(interceptor.Middleware(engine)))
	return mux, nil
}

func newEngine(uc config.UpstreamConfig) (http.Handler, error) {
	if uc.URL == "" {
		slog.Info("No upstream configured, using built-in GraphQL engine")
		return gqlexec.NewBuiltin()
	}
	up, err := gqlexec.NewUpstream(uc.URL)
	if err != nil {
		return nil, err
	}
	slog.Info("Proxying GraphQL requests", slog.String("upstream", up.Target()))
	return up, nil
}

func newScopeConfigService(ctx context.Context, d *deps) (*scopeconfig.Service, error) {
	store, err := d.apqdbStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("scope configuration requires APQDB: %w", err)
	}
	svc := scopeconfig.New(store, d.cfg.ScopeConfig.TTL,
		scopeconfig.WithDefaultScope(d.cfg.Scope.Default),
		scopeconfig.WithStaticStatusCodes(d.cfg.Status),
	)
	d.onClose(svc.Close)
	return svc, nil
}

// serve runs the GraphQL and health servers until ctx is done, then shuts
// both down.
func serve(ctx context.Context, sc config.ServerConfig, ln net.Listener, handler http.Handler, health *healthcheck.Server) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return health.Start(gctx)
	})
	g.Go(func() error {
		slog.Info("Serving GraphQL", slog.String("addr", ln.Addr().String()), slog.String("path", sc.Path))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("graphql server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		health.SetReady(false)
		slog.Info("Shutting down GraphQL server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	health.SetStatus(healthcheck.StatusHealthy)
	health.SetReady(true)

	return g.Wait()
}
