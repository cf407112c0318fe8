package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"liaison/internal/config/connections/postgres"
	"liaison/internal/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	checkViolation      = "23514"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// repo implements ports.Repository against either the pool or an open tx.
type repo struct {
	q querier
}

var _ ports.Repository = (*repo)(nil)

type Store struct {
	*repo
	pg *postgres.Postgres
}

var _ ports.Store = (*Store)(nil)

func NewStore(pg *postgres.Postgres) *Store {
	return &Store{repo: &repo{q: pg.Pool}, pg: pg}
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repo ports.Repository) error) error {
	return pgx.BeginTxFunc(ctx, s.pg.Pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &repo{q: tx})
	})
}

// mapErr converts driver errors into the ports sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ports.ErrConflict)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ports.ErrNotFound)
		case checkViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, ports.ErrRejected)
		}
	}
	return err
}

// conditional resolves a zero-row conditional update into ErrNotFound or
// ErrConflict depending on whether the row exists.
func (r *repo) conditional(ctx context.Context, tag pgconn.CommandTag, table, id string) error {
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1::uuid)`, id).Scan(&exists)
	if err != nil {
		return mapErr(err)
	}
	if !exists {
		return ports.ErrNotFound
	}
	return ports.ErrConflict
}

// prefixed qualifies every column of a select list with a table alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
