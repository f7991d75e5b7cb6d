// Package postgres implements the repositories on PostgreSQL through sqlx.
package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorconnect/storage/database"
)

const uniqueViolation = "23505"

type base struct {
	db  *sqlx.DB
	txr *database.Transactor
}

func (b base) ext(ctx context.Context) sqlx.ExtContext {
	return database.Ext(ctx, b.db)
}

// isUniqueViolation understands the errors of both lib/pq and pgx.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

// where accumulates AND-ed clauses written with `?` placeholders.
type where struct {
	clauses []string
	args    []interface{}
}

func (w *where) add(clause string, args ...interface{}) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

// build appends the WHERE clause then tail (GROUP BY, ORDER BY, ...) to query,
// expands slice args and rebinds to $N.
func (w *where) build(query string, tail ...string) (string, []interface{}, error) {
	if len(w.clauses) > 0 {
		query += " WHERE " + strings.Join(w.clauses, " AND ")
	}
	if len(tail) > 0 {
		query += " " + strings.Join(tail, " ")
	}
	q, args, err := sqlx.In(query, w.args...)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.DOLLAR, q), args, nil
}
