//go:build integration

package containers

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"giftvault/internal/platform/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// project schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *postgres.DB
}

// NewPostgresContainer starts PostgreSQL, applies migrations, and connects a
// pool.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("giftvault_test"),
		tcpostgres.WithUsername("giftvault"),
		tcpostgres.WithPassword("giftvault"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	if err := postgres.Migrate(url, migrationsDir(t)); err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}

	db, err := postgres.New(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect postgres pool: %v", err)
	}
	t.Cleanup(db.Close)

	return &PostgresContainer{Container: container, URL: url, DB: db}
}

// Truncate empties the given tables. Use between tests for isolation.
func (p *PostgresContainer) Truncate(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.DB.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("failed to locate migrations directory")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}
