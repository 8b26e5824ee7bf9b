package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SrSebald/Vitalia/internal/domain"
	"github.com/SrSebald/Vitalia/internal/tenant"
)

const (
	codeInsufficientPrivilege = "42501"
	codeForeignKeyViolation   = "23503"
	codeUniqueViolation       = "23505"
	codeCheckViolation        = "23514"
)

// translate maps driver errors onto domain errors. Policy rejections and
// references to rows the tenant cannot see both become tenant.ErrNotFound.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return tenant.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeInsufficientPrivilege, codeForeignKeyViolation:
		return tenant.ErrNotFound
	case codeUniqueViolation:
		return domain.ErrConflict
	case codeCheckViolation:
		return &domain.ValidationError{Field: pgErr.ConstraintName, Reason: "violates check constraint"}
	}
	return err
}

func affected(tag pgconn.CommandTag, err error) (int64, error) {
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}
