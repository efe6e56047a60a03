package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNoTransaction = errors.New("locking read outside a transaction")
)

//go:embed schema.sql
var schema string

type txKey struct{}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Connect opens a pool and verifies the database is reachable.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// TxManager runs units of work inside one transaction. Repository methods
// called with the context handed to fn join that transaction; row locks
// taken by them are held until fn returns.
type TxManager struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewTxManager creates a TxManager. A positive lockTimeout bounds every lock
// wait so contention surfaces as SQLSTATE 55P03 instead of blocking forever.
func NewTxManager(pool *pgxpool.Pool, lockTimeout time.Duration) *TxManager {
	return &TxManager{pool: pool, lockTimeout: lockTimeout}
}

// WithinTransaction commits when fn returns nil and rolls back otherwise.
// Calls nested inside an open transaction reuse it.
func (m *TxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if m.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", m.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func txFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(pgx.Tx)
	return tx, ok
}

// Repository handles all database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) q(ctx context.Context) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return r.pool
}

// locking returns the transaction in ctx. FOR UPDATE outside a transaction
// would release its locks as soon as the statement ends.
func (r *Repository) locking(ctx context.Context) (querier, error) {
	tx, ok := txFromContext(ctx)
	if !ok {
		return nil, ErrNoTransaction
	}
	return tx, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}
