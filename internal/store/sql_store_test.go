package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newSQLiteStore(t *testing.T, path, namespace string) *SQLStore {
	t.Helper()
	s, err := NewSQLStore("sqlite", path, namespace)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLStore_SQLite_Contract(t *testing.T) {
	s := newSQLiteStore(t, filepath.Join(t.TempDir(), "state.db"), "device-1")
	testStateStore(t, s)
}

func TestSQLStore_SQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	first, err := NewSQLStore("sqlite", path, "device-1")
	require.NoError(t, err)
	require.NoError(t, first.Set(ctx, KeyCartItems, []byte(`[{"product":"p1","qty":2}]`)))
	require.NoError(t, first.Close())

	// migrations must be idempotent on an existing file
	second := newSQLiteStore(t, path, "device-1")
	got, err := second.Get(ctx, KeyCartItems)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"product":"p1","qty":2}]`, string(got))
}

func TestSQLStore_SQLite_NamespaceIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	a := newSQLiteStore(t, path, "a")
	require.NoError(t, a.Set(ctx, KeyToken, []byte(`"token-a"`)))
	require.NoError(t, a.Close())

	b := newSQLiteStore(t, path, "b")
	_, err := b.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSQLStore_UnsupportedDriver(t *testing.T) {
	_, err := NewSQLStore("mysql", "dsn", "ns")
	assert.ErrorContains(t, err, "unsupported sql driver")
}

func TestSQLStore_Postgres_Contract(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%d user=testuser password=testpass dbname=testdb sslmode=disable",
		host, port.Int())
	s, err := NewSQLStore("postgres", dsn, "device-1")
	require.NoError(t, err)
	defer s.Close()

	testStateStore(t, s)
}
