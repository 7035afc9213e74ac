// Package query builds parameterized PostgreSQL SELECTs over a single table
// whose columns are addressed by view field names.
package query

import (
	"fmt"
	"strings"
)

// ProjectionMap maps view field names (ApplicationID) to alias-qualified
// columns (a.application_id) in projection order.
type ProjectionMap struct {
	table   string
	alias   string
	columns map[string]string
	order   []string
}

// NewProjectionMap projects schema.table under alias.
func NewProjectionMap(schema, table, alias string) *ProjectionMap {
	return &ProjectionMap{
		table:   schema + "." + table,
		alias:   alias,
		columns: map[string]string{},
	}
}

// Project maps column to field. Projecting a field twice panics.
func (p *ProjectionMap) Project(column, field string) *ProjectionMap {
	if _, dup := p.columns[field]; dup {
		panic(fmt.Sprintf("query: field %s projected twice", field))
	}
	qualified := p.alias + "." + column
	p.columns[field] = qualified
	p.order = append(p.order, qualified)
	return p
}

// Table returns "schema.table alias".
func (p *ProjectionMap) Table() string {
	return p.table + " " + p.alias
}

// From is the FROM clause body.
func (p *ProjectionMap) From() string {
	return p.Table()
}

// Column returns the qualified column for field, or field itself when it
// is not projected. Only trusted names may take this path.
func (p *ProjectionMap) Column(field string) string {
	if col, ok := p.columns[field]; ok {
		return col
	}
	return field
}

// Lookup reports the qualified column for field and whether it is
// projected. Client-supplied names must go through Lookup.
func (p *ProjectionMap) Lookup(field string) (string, bool) {
	col, ok := p.columns[field]
	return col, ok
}

// Columns is the SELECT list in projection order.
func (p *ProjectionMap) Columns() string {
	return strings.Join(p.order, ", ")
}
