// Package pgxv5 implements driver.Driver on a pgx/v5 connection pool.
//
//	drv, err := pgxv5.Open(ctx, os.Getenv("DATABASE_URL"))
//	if err != nil {
//		return err
//	}
//	defer drv.Close()
//	store := storage.NewSQLStore(drv.GetExecutor())
package pgxv5

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youssefsiam38/agentstream/driver"
)

type Driver struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Driver {
	return &Driver{pool: pool}
}

// Open creates a pool for databaseURL and pings it.
func Open(ctx context.Context, databaseURL string) (*Driver, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxv5: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxv5: ping: %w", err)
	}
	return New(pool), nil
}

func (d *Driver) Pool() *pgxpool.Pool { return d.pool }

func (d *Driver) GetExecutor() driver.Executor {
	return executor{q: d.pool}
}

func (d *Driver) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	return executor{q: d.pool}.Begin(ctx)
}

// UnwrapExecutor lets a store join a transaction the caller began on the pool.
func (d *Driver) UnwrapExecutor(tx pgx.Tx) driver.ExecutorTx {
	return txExecutor{executor{q: tx}, tx}
}

func (d *Driver) UnwrapTx(execTx driver.ExecutorTx) pgx.Tx {
	return execTx.(txExecutor).tx
}

func (d *Driver) Close() error {
	d.pool.Close()
	return nil
}

// querier is implemented by both *pgxpool.Pool and pgx.Tx. Begin on a
// pgx.Tx creates a savepoint.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type executor struct {
	q querier
}

func (e executor) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	tx, err := e.q.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return txExecutor{executor{q: tx}, tx}, nil
}

func (e executor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := e.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (e executor) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	return e.q.Query(ctx, sql, args...)
}

func (e executor) QueryRow(ctx context.Context, sql string, args ...any) driver.Row {
	return e.q.QueryRow(ctx, sql, args...)
}

type txExecutor struct {
	executor
	tx pgx.Tx
}

func (t txExecutor) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t txExecutor) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

var _ driver.Driver[pgx.Tx] = (*Driver)(nil)
