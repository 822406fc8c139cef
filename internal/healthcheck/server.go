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

// Package healthcheck serves liveness and readiness endpoints on a port of
// their own.
package healthcheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status int32

const (
	StatusStarting Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusStarting:
		return "starting"
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Response is the JSON body of every endpoint. Checks lists failed readiness
// conditions and probes by name.
type Response struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ProbeFunc reports whether a dependency is reachable.
type ProbeFunc func(ctx context.Context) error

type probe struct {
	name string
	fn   ProbeFunc
}

type Server struct {
	port         int
	probeTimeout time.Duration
	status       atomic.Int32
	ready        atomic.Bool
	conditions   sync.Map // name -> bool

	mu     sync.RWMutex
	probes []probe

	server *http.Server
}

type Config struct {
	Port         int
	ProbeTimeout time.Duration
}

const (
	defaultPort         = 8090
	defaultProbeTimeout = 2 * time.Second
)

func GetConfigFromEnv() Config {
	port := defaultPort
	if portStr := os.Getenv("HEALTH_CHECK_PORT"); portStr != "" {
		if p, err := strconv.Atoi(portStr); err == nil && p > 0 && p < 65536 {
			port = p
		}
	}

	return Config{
		Port: port,
	}
}

func NewServer(config Config) *Server {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = defaultProbeTimeout
	}

	return &Server{
		port:         config.Port,
		probeTimeout: config.ProbeTimeout,
	}
}

func (s *Server) SetStatus(status Status) {
	s.status.Store(int32(status))
	slog.Debug("Health check status updated", slog.String("status", status.String()))
}

func (s *Server) GetStatus() Status {
	return Status(s.status.Load())
}

func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	slog.Debug("Ready status updated", slog.Bool("ready", ready))
}

// SetReadyCondition sets a named readiness condition. Every condition must be
// true, along with the base ready flag, for the server to report ready.
func (s *Server) SetReadyCondition(name string, ready bool) {
	s.conditions.Store(name, ready)
	slog.Debug("Ready condition updated", slog.String("condition", name), slog.Bool("ready", ready))
}

// ClearReadyCondition removes a named readiness condition entirely.
func (s *Server) ClearReadyCondition(name string) {
	s.conditions.Delete(name)
}

// AddProbe registers fn to be called on every readiness check.
func (s *Server) AddProbe(name string, fn ProbeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, probe{name: name, fn: fn})
}

// IsReady reports the base flag and named conditions. Probes are not run.
func (s *Server) IsReady() bool {
	return s.ready.Load() && len(s.failedConditions()) == 0
}

func (s *Server) failedConditions() map[string]string {
	failed := map[string]string{}
	s.conditions.Range(func(key, value any) bool {
		if !value.(bool) {
			failed[key.(string)] = "not ready"
		}
		return true
	})
	return failed
}

// CheckReady runs every probe concurrently and returns the names of failed
// conditions and probes, mapped to the reason.
func (s *Server) CheckReady(ctx context.Context) (bool, map[string]string) {
	failed := s.failedConditions()
	if !s.ready.Load() {
		failed["ready"] = "not ready"
	}

	s.mu.RLock()
	probes := append([]probe(nil), s.probes...)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	var mu sync.Mutex
	var g errgroup.Group
	for _, p := range probes {
		g.Go(func() error {
			if err := p.fn(ctx); err != nil {
				mu.Lock()
				failed[p.name] = err.Error()
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return len(failed) == 0, failed
}

// Start serves the health endpoints until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("health check listener: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("Starting health check server", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errCh:
		if err != nil {
			slog.Error("Health check server error", slog.Any("error", err))
		}
		return err
	}
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	slog.Info("Stopping health check server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Handler returns the mux serving /healthz, /readyz and /livez.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthzHandler)
	mux.HandleFunc("/readyz", s.readyzHandler)
	mux.HandleFunc("/livez", s.livezHandler)
	return mux
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, Response{Healthy: s.GetStatus() == StatusHealthy})
}

func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ready, failed := s.CheckReady(r.Context())
	if !ready {
		slog.Debug("Readiness check failed", slog.Any("checks", failed))
	}
	writeResponse(w, Response{Healthy: ready, Checks: failed})
}

func (s *Server) livezHandler(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, Response{Healthy: s.GetStatus() != StatusUnhealthy})
}

func writeResponse(w http.ResponseWriter, response Response) {
	w.Header().Set("Content-Type", "application/json")

	if response.Healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode health check response", slog.Any("error", err))
	}
}
