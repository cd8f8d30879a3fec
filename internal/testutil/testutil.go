// Package testutil holds helpers for the DATABASE_URL gated integration
// tests.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youssefsiam38/agentstream/driver/pgxv5"
	"github.com/youssefsiam38/agentstream/storage"
)

// DatabaseURLEnv names the variable integration tests read.
const DatabaseURLEnv = "DATABASE_URL"

// TestDB is a migrated database for one test.
type TestDB struct {
	Pool *pgxpool.Pool
	URL  string
}

// RequireIntegration skips t unless DATABASE_URL is set.
func RequireIntegration(t testing.TB) string {
	t.Helper()
	url := os.Getenv(DatabaseURLEnv)
	if url == "" {
		t.Skip(DatabaseURLEnv + " not set, skipping integration test")
	}
	return url
}

// NewTestDB connects to DATABASE_URL and applies the schema.
func NewTestDB(t testing.TB) *TestDB {
	t.Helper()
	url := RequireIntegration(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	drv, err := pgxv5.Open(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := storage.Migrate(ctx, drv.GetExecutor()); err != nil {
		drv.Close()
		t.Fatalf("migrate: %v", err)
	}
	return &TestDB{Pool: drv.Pool(), URL: url}
}

func (db *TestDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// CleanTables empties the session and message tables.
func (db *TestDB) CleanTables(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `TRUNCATE TABLE agentstream_messages, agentstream_sessions CASCADE`)
	return err
}
