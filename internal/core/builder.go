// File: internal/core/builder.go
package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/TechXTT/torm-session/pkg/session"
)

// ScanFunc maps the current row of rows into a T.
type ScanFunc[T any] func(rows *sql.Rows) (T, error)

// QueryBuilder is a generics-based fluent query builder. It only assembles
// SQL; execution goes through whatever session the caller is running in.
type QueryBuilder[T any] struct {
	table       string
	selectCols  []string
	whereOps    []string
	args        []interface{}
	joinClauses []string
	orderBy     string
	limit       int
	offset      int
}

func NewQueryBuilder[T any]() *QueryBuilder[T] {
	return &QueryBuilder[T]{}
}

func (qb *QueryBuilder[T]) From(table string) *QueryBuilder[T] {
	qb.table = table
	return qb
}

func (qb *QueryBuilder[T]) Select(cols ...string) *QueryBuilder[T] {
	qb.selectCols = cols
	return qb
}

func (qb *QueryBuilder[T]) Where(cond string, vals ...interface{}) *QueryBuilder[T] {
	qb.whereOps = append(qb.whereOps, cond)
	qb.args = append(qb.args, vals...)
	return qb
}

// Join adds a JOIN clause (e.g. "JOIN other_table ON ...")
func (qb *QueryBuilder[T]) Join(clause string) *QueryBuilder[T] {
	qb.joinClauses = append(qb.joinClauses, clause)
	return qb
}

// OrderBy sets the ORDER BY clause
func (qb *QueryBuilder[T]) OrderBy(order string) *QueryBuilder[T] {
	qb.orderBy = order
	return qb
}

// Limit sets the LIMIT clause
func (qb *QueryBuilder[T]) Limit(n int) *QueryBuilder[T] {
	qb.limit = n
	return qb
}

// Offset sets the OFFSET clause
func (qb *QueryBuilder[T]) Offset(n int) *QueryBuilder[T] {
	qb.offset = n
	return qb
}

// Build assembles the SQL query string and returns it with args
func (qb *QueryBuilder[T]) Build() (string, []interface{}) {
	return qb.build(qb.selectCols, true)
}

func (qb *QueryBuilder[T]) build(cols []string, paging bool) (string, []interface{}) {
	parts := []string{"SELECT"}
	if len(cols) > 0 {
		parts = append(parts, strings.Join(cols, ", "))
	} else {
		parts = append(parts, "*")
	}
	parts = append(parts, "FROM", qb.table)
	if len(qb.joinClauses) > 0 {
		parts = append(parts, strings.Join(qb.joinClauses, " "))
	}
	if len(qb.whereOps) > 0 {
		parts = append(parts, "WHERE", strings.Join(qb.whereOps, " AND "))
	}
	if paging {
		if qb.orderBy != "" {
			parts = append(parts, "ORDER BY", qb.orderBy)
		}
		if qb.limit > 0 {
			parts = append(parts, fmt.Sprintf("LIMIT %d", qb.limit))
		}
		if qb.offset > 0 {
			parts = append(parts, fmt.Sprintf("OFFSET %d", qb.offset))
		}
	}
	return strings.Join(parts, " "), qb.args
}

// All executes the built query on s and maps every row with scan.
func (qb *QueryBuilder[T]) All(ctx context.Context, s *session.Session, scan ScanFunc[T]) ([]T, error) {
	query, args := qb.Build()
	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// One fetches a single record into T
func (qb *QueryBuilder[T]) One(ctx context.Context, s *session.Session, scan ScanFunc[T]) (T, error) {
	qb.limit = 1
	items, err := qb.All(ctx, s, scan)
	if err != nil {
		var zero T
		return zero, err
	}
	if len(items) == 0 {
		var zero T
		return zero, sql.ErrNoRows
	}
	return items[0], nil
}

// Count returns the count of matching records. ORDER BY, LIMIT and OFFSET
// are ignored.
func (qb *QueryBuilder[T]) Count(ctx context.Context, s *session.Session) (int64, error) {
	query, args := qb.build([]string{"COUNT(*)"}, false)
	var count int64
	if err := s.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
