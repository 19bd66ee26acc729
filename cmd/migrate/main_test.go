package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/backoffice/internal/storage/postgres"
)

func TestParseOptions(t *testing.T) {
	t.Setenv(envPostgresDSN, "")

	tests := []struct {
		name    string
		args    []string
		env     string
		want    options
		wantErr string
	}{
		{
			name: "defaults with dsn flag",
			args: []string{"-dsn", " postgres://localhost/backoffice "},
			want: options{direction: "up", dsn: "postgres://localhost/backoffice"},
		},
		{
			name: "dsn from env",
			args: []string{"-direction=DOWN", "-steps=2"},
			env:  "postgres://env/backoffice",
			want: options{direction: "down", steps: 2, dsn: "postgres://env/backoffice"},
		},
		{
			name:    "missing dsn",
			args:    []string{"-direction=status"},
			wantErr: envPostgresDSN,
		},
		{
			name:    "unsupported direction",
			args:    []string{"-direction=sideways", "-dsn=x"},
			wantErr: "unsupported direction",
		},
		{
			name:    "negative steps",
			args:    []string{"-steps=-1", "-dsn=x"},
			wantErr: "steps must be >= 0",
		},
		{
			name:    "unknown flag",
			args:    []string{"-force"},
			wantErr: "usage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(envPostgresDSN, tt.env)
			var stderr bytes.Buffer
			got, err := parseOptions(tt.args, &stderr)
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

func TestRun_InvalidArgsDoNotTouchDatabase(t *testing.T) {
	t.Setenv(envPostgresDSN, "")
	var out bytes.Buffer
	err := run(context.Background(), []string{"-direction=status"}, &out)
	require.Error(t, err)
}

func testPostgresDSN(t *testing.T) string {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("BACKOFFICE_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("BACKOFFICE_POSTGRES_TEST_DSN is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not available: %v", err)
	}
	_ = store.Close()
	return dsn
}

func TestRun_MigrateRoundTrip(t *testing.T) {
	dsn := testPostgresDSN(t)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"-direction=up", "-dsn=" + dsn}, &out))
	assert.Contains(t, out.String(), "migrate up ok")

	out.Reset()
	require.NoError(t, run(ctx, []string{"-direction=pending", "-dsn=" + dsn}, &out))
	assert.Equal(t, "no pending migrations\n", out.String())

	out.Reset()
	require.NoError(t, run(ctx, []string{"-direction=down", "-dsn=" + dsn}, &out))
	assert.Contains(t, out.String(), "migrate down ok")

	out.Reset()
	require.NoError(t, run(ctx, []string{"-direction=pending", "-dsn=" + dsn}, &out))
	assert.NotContains(t, out.String(), "no pending migrations")

	require.NoError(t, run(ctx, []string{"-direction=up", "-dsn=" + dsn}, &out))
}
