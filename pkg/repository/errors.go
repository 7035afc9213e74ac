package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes translated by Errors.Map.
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
	codeNotNull         = "23502"
)

// Errors names the domain errors a package wants database failures
// translated into. A nil field leaves the matching failure untouched.
type Errors struct {
	NotFound  error
	Duplicate error
	Invalid   error
}

// Map translates err. sql.ErrNoRows becomes NotFound, a unique violation
// becomes Duplicate and check or not-null violations become Invalid. The
// constraint name is kept in the wrapped message for Invalid.
func (e Errors) Map(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) && e.NotFound != nil {
		return e.NotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch {
	case pgErr.Code == codeUniqueViolation && e.Duplicate != nil:
		return e.Duplicate
	case (pgErr.Code == codeCheckViolation || pgErr.Code == codeNotNull) && e.Invalid != nil:
		if pgErr.ConstraintName != "" {
			return fmt.Errorf("%w: %s", e.Invalid, pgErr.ConstraintName)
		}
		return e.Invalid
	}
	return err
}
