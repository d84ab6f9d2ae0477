package hypergraph

import (
	"context"
	"database/sql"
)

// Handle runs statements. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Handle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Beginner is a Handle that can start transactions. *sql.DB and *sql.Conn
// satisfy it.
type Beginner interface {
	Handle
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx runs fn inside a transaction on b, committing when fn succeeds and
// rolling back otherwise.
func WithTx(ctx context.Context, b Beginner, fn func(tx *sql.Tx) error) error {
	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
