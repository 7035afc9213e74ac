package database

import "errors"

var (
	// ErrNotReady is returned by repositories until the startup checks pass.
	ErrNotReady = errors.New("database not ready")
	// ErrSchemaMissing means migrations have never been applied.
	ErrSchemaMissing = errors.New("database schema not migrated")
	// ErrSchemaDirty means a migration failed part way and needs manual repair.
	ErrSchemaDirty = errors.New("database schema dirty")
)
