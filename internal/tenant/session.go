package tenant

import (
	"context"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Session is the only handle through which a unit of work reaches the database.
// It is created by Manager, carries the bound identity, and stops accepting
// statements once its unit of work returns.
type Session struct {
	identity Identity
	tx       pgx.Tx
	closed   atomic.Bool
}

// Identity returns the identity the session is bound to.
func (s *Session) Identity() Identity {
	if s == nil {
		return Identity{}
	}
	return s.identity
}

func (s *Session) usable() error {
	if s == nil || s.tx == nil || s.identity.IsZero() || s.closed.Load() {
		return ErrNoTenant
	}
	return nil
}

// Exec runs a statement inside the unit of work.
func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if err := s.usable(); err != nil {
		return pgconn.CommandTag{}, err
	}
	return s.tx.Exec(ctx, sql, args...)
}

// Query runs a row-returning statement inside the unit of work.
func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}
	return s.tx.Query(ctx, sql, args...)
}

// QueryRow runs a statement expected to return at most one row.
func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if err := s.usable(); err != nil {
		return errRow{err: err}
	}
	return s.tx.QueryRow(ctx, sql, args...)
}

func (s *Session) close() {
	s.closed.Store(true)
}

type errRow struct {
	err error
}

func (r errRow) Scan(...any) error { return r.err }
