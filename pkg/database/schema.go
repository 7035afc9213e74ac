package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// migrationsTable is where golang-migrate records the applied version.
const migrationsTable = "schema_migrations"

const codeUndefinedTable = "42P01"

// SchemaVersion reads the migration version recorded by cmd/migrate. It
// fails with ErrSchemaMissing when nothing has been applied and with
// ErrSchemaDirty when the last migration did not complete.
func SchemaVersion(ctx context.Context, db *sql.DB) (uint, error) {
	var (
		version uint
		dirty   bool
	)

	err := db.QueryRowContext(ctx, "SELECT version, dirty FROM "+migrationsTable+" LIMIT 1").Scan(&version, &dirty)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.Is(err, sql.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable) {
			return 0, ErrSchemaMissing
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	if dirty {
		return version, fmt.Errorf("%w at version %d", ErrSchemaDirty, version)
	}
	return version, nil
}
