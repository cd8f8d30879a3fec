// Package driver abstracts the PostgreSQL client behind the SQL message
// store. Two implementations exist: driver/pgxv5 (pgx connection pools) and
// driver/databasesql (database/sql with lib/pq).
package driver

import (
	"context"
	"fmt"
)

// Driver owns a connection pool. TTx is the native transaction type of the
// client library, so callers can save messages inside a transaction they
// opened themselves.
type Driver[TTx any] interface {
	GetExecutor() Executor
	Begin(ctx context.Context) (ExecutorTx, error)
	UnwrapExecutor(tx TTx) ExecutorTx
	UnwrapTx(execTx ExecutorTx) TTx
	Close() error
}

// Row is satisfied by pgx.Row and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the subset of pgx.Rows the stores iterate with.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Executor runs statements against a pool or an open transaction. Slice
// arguments are bound as PostgreSQL arrays by every implementation.
type Executor interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Begin on a transaction opens a savepoint.
	Begin(ctx context.Context) (ExecutorTx, error)
}

// ExecutorTx is an open transaction or savepoint.
type ExecutorTx interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// InTx runs fn in a transaction begun on exec. The transaction commits when
// fn returns nil and rolls back otherwise.
func InTx(ctx context.Context, exec Executor, fn func(tx ExecutorTx) error) (err error) {
	tx, err := exec.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txKey struct{}

// WithExecutor makes stores reached through ctx run inside tx.
func WithExecutor(ctx context.Context, tx ExecutorTx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// ExecutorFromContext returns the transaction stored by WithExecutor, or nil.
func ExecutorFromContext(ctx context.Context) ExecutorTx {
	tx, _ := ctx.Value(txKey{}).(ExecutorTx)
	return tx
}
