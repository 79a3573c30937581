// Package store provides the data access layer. Queries are built with
// squirrel against a *sql.DB that wraps pgxpool via the stdlib adapter;
// operations that need native pgx transactions (point awards) use the pool
// directly.
package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// psql is the shared statement builder with Postgres placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is the central data access object.
type Store struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// New creates a Store backed by pool. The same pool serves both the stdlib
// *sql.DB used by squirrel queries and direct pgx transactions.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
	}
}

// Pool returns the underlying pgxpool for callers that need pgx native
// operations (health checks, migrations in tests).
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// withPgxTx runs fn inside a pgx native transaction, committing when fn
// returns nil and rolling back otherwise.
func (s *Store) withPgxTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on panic or fn error
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
