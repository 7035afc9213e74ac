package query

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// SortField is one ORDER BY term, named by projected field.
type SortField struct {
	Field      string
	Descending bool
}

// ParseSortFields reads "Reviewer,-OccurredAt" style input. A leading "-"
// marks a descending field. Empty input yields nil.
func ParseSortFields(s string) []SortField {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, desc := strings.CutPrefix(part, "-")
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

// Builder assembles SELECT statements over a ProjectionMap. Conditions are
// ANDed and bind their values to positional parameters in the order they
// are added.
type Builder struct {
	projection  *ProjectionMap
	where       []string
	args        []any
	order       []SortField
	defaultSort []SortField
}

func NewBuilder(projection *ProjectionMap, defaultSort ...SortField) *Builder {
	return &Builder{
		projection:  projection,
		defaultSort: defaultSort,
	}
}

// Build returns the unpaged SELECT.
func (b *Builder) Build() (string, []any) {
	return "SELECT " + b.projection.Columns() + " FROM " + b.projection.From() + b.whereClause() + b.orderClause(), b.bound()
}

// BuildCount returns SELECT COUNT(*) under the same conditions.
func (b *Builder) BuildCount() (string, []any) {
	return "SELECT COUNT(*) FROM " + b.projection.From() + b.whereClause(), b.bound()
}

// BuildPage returns the SELECT for one 1-based page.
func (b *Builder) BuildPage(page, pageSize int) (string, []any) {
	stmt, args := b.Build()
	return fmt.Sprintf("%s LIMIT %d OFFSET %d", stmt, pageSize, (page-1)*pageSize), args
}

// BuildSingle selects one row by key. Conditions already on the builder
// are not applied.
func (b *Builder) BuildSingle(keyField string, key any) (string, []any) {
	stmt := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = $1",
		b.projection.Columns(),
		b.projection.From(),
		b.projection.Column(keyField),
	)
	return stmt, []any{key}
}

// OrderByFields replaces the default sort. Fields the projection does not
// know are dropped when the statement is built.
func (b *Builder) OrderByFields(fields []SortField) *Builder {
	b.order = fields
	return b
}

// WhereEquals adds field = value unless value is nil.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	return b.compare(field, "=", value)
}

// WhereAfter adds an inclusive lower bound unless value is nil.
func (b *Builder) WhereAfter(field string, value any) *Builder {
	return b.compare(field, ">=", value)
}

// WhereBefore adds an exclusive upper bound unless value is nil.
func (b *Builder) WhereBefore(field string, value any) *Builder {
	return b.compare(field, "<", value)
}

// WhereIn adds field IN (...) for a non-empty value set.
func (b *Builder) WhereIn(field string, values []string) *Builder {
	if len(values) == 0 {
		return b
	}
	params := make([]string, len(values))
	for i, v := range values {
		params[i] = b.bind(v)
	}
	b.where = append(b.where, b.projection.Column(field)+" IN ("+strings.Join(params, ", ")+")")
	return b
}

// WhereContains adds a case-insensitive substring match. Nil or empty
// values are ignored.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	b.where = append(b.where, b.projection.Column(field)+" ILIKE "+b.bind(likePattern(*value)))
	return b
}

// WhereSearch matches search against any of fields. The pattern is bound
// once and shared by every alternative.
func (b *Builder) WhereSearch(search *string, fields ...string) *Builder {
	if search == nil || *search == "" || len(fields) == 0 {
		return b
	}

	param := b.bind(likePattern(*search))
	alts := make([]string, len(fields))
	for i, f := range fields {
		alts[i] = b.projection.Column(f) + " ILIKE " + param
	}
	b.where = append(b.where, "("+strings.Join(alts, " OR ")+")")
	return b
}

func (b *Builder) compare(field, op string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.where = append(b.where, b.projection.Column(field)+" "+op+" "+b.bind(value))
	return b
}

func (b *Builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *Builder) bound() []any {
	return slices.Clone(b.args)
}

func (b *Builder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

// orderClause falls back to the default sort when no requested field is
// projected.
func (b *Builder) orderClause() string {
	terms := b.orderTerms(b.order)
	if len(terms) == 0 {
		terms = b.orderTerms(b.defaultSort)
	}
	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (b *Builder) orderTerms(fields []SortField) []string {
	var terms []string
	for _, f := range fields {
		col, ok := b.projection.Lookup(f.Field)
		if !ok {
			continue
		}
		dir := " ASC"
		if f.Descending {
			dir = " DESC"
		}
		terms = append(terms, col+dir)
	}
	return terms
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern wraps s for a substring ILIKE, escaping its own wildcards.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func isNil(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
