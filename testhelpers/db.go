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

// Package testhelpers provides fixtures shared by integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orlangure/gnomock"
	"github.com/orlangure/gnomock/preset/postgres"

	apqdbmigrations "github.com/cardinalhq/apqgate/apqdb/migrations"
)

const (
	containerUser     = "apqgate"
	containerPassword = "apqgate"
	containerDB       = "testing_apqdb"
)

// SetupTestAPQDB creates a clean test apqdb database with migrations applied.
// It uses the server named by APQDB_HOST, or starts a throwaway Postgres
// container when that is unset. Returns a connection pool and registers
// cleanup with t.Cleanup.
func SetupTestAPQDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	dbName := fmt.Sprintf("test_apqdb_%d_%d", time.Now().Unix(), rand.Intn(10000))

	var host, port, user, password, baseDB string
	if os.Getenv("APQDB_HOST") == "" {
		host, port = startPostgres(t)
		user, password, baseDB = containerUser, containerPassword, containerDB
	} else {
		host = os.Getenv("APQDB_HOST")
		port = getEnvOrDefault("APQDB_PORT", "5432")
		user = getEnvOrDefault("APQDB_USER", os.Getenv("USER"))
		baseDB = getEnvOrDefault("APQDB_DBNAME", containerDB)
		password = os.Getenv("APQDB_PASSWORD")
	}

	basePool, err := pgxpool.New(ctx, connString(user, password, host, port, baseDB))
	if err != nil {
		t.Fatalf("Failed to connect to base database: %v", err)
	}

	if _, err := basePool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		basePool.Close()
		t.Fatalf("Failed to create test database %s: %v", dbName, err)
	}

	testPool, err := pgxpool.New(ctx, connString(user, password, host, port, dbName))
	if err != nil {
		basePool.Close()
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	t.Cleanup(func() {
		testPool.Close()

		_, err := basePool.Exec(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName))
		if err != nil {
			slog.Error("Failed to drop test database", slog.String("dbName", dbName), slog.Any("error", err))
		}
		basePool.Close()
	})

	if err := apqdbmigrations.RunMigrationsUp(ctx, testPool); err != nil {
		t.Fatalf("Failed to run apqdb migrations: %v", err)
	}

	return testPool
}

func startPostgres(t *testing.T) (host, port string) {
	t.Helper()

	container, err := gnomock.Start(postgres.Preset(
		postgres.WithUser(containerUser, containerPassword),
		postgres.WithDatabase(containerDB),
		postgres.WithVersion("16"),
	))
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := gnomock.Stop(container); err != nil {
			slog.Error("Failed to stop postgres container", slog.Any("error", err))
		}
	})
	return container.Host, strconv.Itoa(container.DefaultPort())
}

func connString(user, password, host, port, dbName string) string {
	u := &url.URL{
		Scheme: "postgresql",
		Host:   host + ":" + port,
		Path:   dbName,
	}
	if password != "" {
		u.User = url.UserPassword(user, password)
		u.RawQuery = "sslmode=disable"
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
