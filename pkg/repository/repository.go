// Package repository provides read helpers over database/sql for
// journal-style tables: single rows, row sets and counted pages.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JaimeStill/creditdesk/pkg/pagination"
	"github.com/JaimeStill/creditdesk/pkg/query"
)

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Scanner is the common surface of *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc reads one entity from a row. Column order must match the
// projection the query was built from.
type ScanFunc[T any] func(Scanner) (T, error)

// QueryOne returns the single row produced by stmt. A missing row surfaces
// as sql.ErrNoRows.
func QueryOne[T any](ctx context.Context, q Querier, stmt string, args []any, scan ScanFunc[T]) (T, error) {
	return scan(q.QueryRowContext(ctx, stmt, args...))
}

// QueryMany collects every row produced by stmt. The result is never nil.
func QueryMany[T any](ctx context.Context, q Querier, stmt string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// QueryPage counts the rows matched by b and then loads the requested page.
// The request is expected to be normalized already.
func QueryPage[T any](
	ctx context.Context,
	q Querier,
	b *query.Builder,
	page pagination.PageRequest,
	scan ScanFunc[T],
) (*pagination.PageResult[T], error) {
	countSQL, countArgs := b.BuildCount()

	var total int
	if err := q.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}

	var items []T
	if total > page.Offset() {
		pageSQL, pageArgs := b.BuildPage(page.Page, page.PageSize)

		var err error
		if items, err = QueryMany(ctx, q, pageSQL, pageArgs, scan); err != nil {
			return nil, fmt.Errorf("page: %w", err)
		}
	}

	result := pagination.NewPageResult(items, total, page)
	return &result, nil
}
