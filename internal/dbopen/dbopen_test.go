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
package dbopen

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/apqgate/migrations"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"APQDB_URL", "APQDB_HOST", "APQDB_PORT", "APQDB_USER",
		"APQDB_PASSWORD", "APQDB_DBNAME", "APQDB_SSLMODE", "OTEL_SERVICE_NAME",
	} {
		t.Setenv(key, "")
	}
}

func TestGetDatabaseURLFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    string
		wantErr string
	}{
		{
			name:    "missing host and dbname",
			env:     map[string]string{},
			wantErr: "APQDB_HOST, APQDB_DBNAME",
		},
		{
			name: "url wins",
			env: map[string]string{
				"APQDB_URL":  "postgresql://a@b/c",
				"APQDB_HOST": "ignored",
			},
			want: "postgresql://a@b/c",
		},
		{
			name: "default port",
			env: map[string]string{
				"APQDB_HOST":   "db",
				"APQDB_DBNAME": "apq",
			},
			want: "postgresql://db:5432/apq",
		},
		{
			name: "full",
			env: map[string]string{
				"APQDB_HOST":     "db",
				"APQDB_PORT":     "6543",
				"APQDB_USER":     "gate",
				"APQDB_PASSWORD": "s3cret",
				"APQDB_DBNAME":   "apq",
				"APQDB_SSLMODE":  "require",
			},
			want: "postgresql://gate:s3cret@db:6543/apq?sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got, err := GetDatabaseURLFromEnv("APQDB")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetDatabaseURLFromEnv_ApplicationName(t *testing.T) {
	clearEnv(t)
	t.Setenv("APQDB_HOST", "db")
	t.Setenv("APQDB_DBNAME", "apq")
	t.Setenv("OTEL_SERVICE_NAME", "apq gate/"+strings.Repeat("x", 80))

	got, err := GetDatabaseURLFromEnv("APQDB_")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	name := u.Query().Get("application_name")
	assert.Len(t, name, 63)
	assert.True(t, strings.HasPrefix(name, "apq_gate_xxx"))
}

func TestOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want migrations.CheckMode
	}{
		{"skip", SkipMigrationCheck(), migrations.CheckModeSkip},
		{"warn", WarnOnMigrationMismatch(), migrations.CheckModeWarn},
		{"wait", WithCheckMode(migrations.CheckModeWait), migrations.CheckModeWait},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := migrations.DefaultCheckOptions()
			got.Mode = -1
			for _, o := range tt.opts.MigrationCheckOptions {
				o(&got)
			}
			assert.Equal(t, tt.want, got.Mode)
		})
	}
}
