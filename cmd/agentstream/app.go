package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/youssefsiam38/agentstream/driver"
	"github.com/youssefsiam38/agentstream/driver/databasesql"
	"github.com/youssefsiam38/agentstream/driver/pgxv5"
	"github.com/youssefsiam38/agentstream/storage"
)

type loader func() (Config, error)

func newLogger(cfg Config, w io.Writer) *slog.Logger {
	level, _ := parseLevel(cfg.LogLevel)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// closer releases a database connection
type closer interface {
	Close() error
}

// openExecutor connects the configured SQL driver
func openExecutor(ctx context.Context, cfg Config) (driver.Executor, closer, error) {
	switch cfg.Driver {
	case driverPgx:
		drv, err := pgxv5.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect with pgx: %w", err)
		}
		return drv.GetExecutor(), drv, nil
	case driverSQL:
		drv, err := databasesql.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect with database/sql: %w", err)
		}
		return drv.GetExecutor(), drv, nil
	default:
		return nil, nil, fmt.Errorf("driver %q has no database", cfg.Driver)
	}
}

// openStore returns the configured store and a function releasing it
func openStore(ctx context.Context, cfg Config) (storage.Store, func(), error) {
	if cfg.Driver == driverMemory {
		return storage.NewMemoryStore(), func() {}, nil
	}

	exec, conn, err := openExecutor(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return storage.NewSQLStore(exec), func() { _ = conn.Close() }, nil
}

// resolveSession returns the ID of the session with identifier, creating it
// when create is set.
func resolveSession(ctx context.Context, store storage.Store, identifier string, create bool) (string, error) {
	session, err := store.GetSessionByIdentifier(ctx, identifier)
	if err == nil {
		return session.ID, nil
	}
	if !errors.Is(err, storage.ErrSessionNotFound) || !create {
		return "", err
	}
	return store.CreateSession(ctx, identifier, map[string]any{"source": "cli"})
}

func writeJSONL[T any](w io.Writer, items []T) error {
	enc := json.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}
