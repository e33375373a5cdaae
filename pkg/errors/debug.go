package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// pgFields is the subset of a Postgres error worth logging.
type pgFields struct {
	code, constraint, table, column, detail, message string
}

func postgresFields(err error) (pgFields, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFields{pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFields{string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message}, true
	}
	return pgFields{}, false
}

// LogFields flattens err into structured log fields: the message, the typed
// code and reason when present, the unwrap chain, and any Postgres
// diagnostics. Empty values are omitted.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}

	fields := map[string]any{"error": err.Error()}
	if te := As(err); te != nil {
		fields["error_code"] = string(te.Code())
		if te.Reason() != "" {
			fields["error_reason"] = string(te.Reason())
		}
	}

	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T: %v", e, e))
	}
	if len(chain) > 1 {
		fields["error_chain"] = chain
	}

	if pg, ok := postgresFields(err); ok {
		for key, value := range map[string]string{
			"pg_code":       pg.code,
			"pg_constraint": pg.constraint,
			"pg_table":      pg.table,
			"pg_column":     pg.column,
			"pg_detail":     pg.detail,
			"pg_message":    pg.message,
		} {
			if value != "" {
				fields[key] = value
			}
		}
	}
	return fields
}
