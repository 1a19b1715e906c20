package sql

import (
	"errors"
	"strings"

	"github.com/syssam/strata"
)

// errorCoder is implemented by database errors that carry textual error
// codes (pq.Error, pgx, modernc.org/sqlite).
type errorCoder interface {
	Code() string
}

// errorNumberer is implemented by database errors that carry numeric
// error codes (mysql.MySQLError).
type errorNumberer interface {
	Number() uint16
}

// sqlStateError is implemented by errors that expose SQLSTATE codes
// (pq.Error, pgx, some MySQL drivers).
type sqlStateError interface {
	SQLState() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlNotNull        = 1048
	mysqlDuplicateEntry = 1062
	mysqlFKParent       = 1451 // cannot delete or update a parent row
	mysqlFKChild        = 1452 // cannot add or update a child row
	mysqlCheckViolate   = 3819
)

// wrapConstraint converts driver-level constraint violations into the
// engine's typed ConstraintError; other errors pass through untouched.
func wrapConstraint(err error) error {
	if err == nil {
		return nil
	}
	if isConstraintError(err) {
		return strata.NewConstraintError(err.Error(), err)
	}
	return err
}

func isConstraintError(err error) bool {
	return isUniqueViolation(err) || isForeignKeyViolation(err) ||
		isNotNullViolation(err) || isCheckViolation(err)
}

func isUniqueViolation(err error) bool {
	if hasCode(err, pgUniqueViolation) || hasNumber(err, mysqlDuplicateEntry) {
		return true
	}
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL
		"violates unique constraint", // Postgres
		"UNIQUE constraint failed",   // SQLite
	)
}

func isForeignKeyViolation(err error) bool {
	if hasCode(err, pgForeignKeyViolation) || hasNumber(err, mysqlFKParent) || hasNumber(err, mysqlFKChild) {
		return true
	}
	return containsAny(err.Error(),
		"Error 1451",
		"Error 1452",
		"violates foreign key constraint",
		"FOREIGN KEY constraint failed",
	)
}

func isNotNullViolation(err error) bool {
	if hasCode(err, pgNotNullViolation) || hasNumber(err, mysqlNotNull) {
		return true
	}
	return containsAny(err.Error(),
		"Error 1048",
		"violates not-null constraint",
		"NOT NULL constraint failed",
	)
}

func isCheckViolation(err error) bool {
	if hasCode(err, pgCheckViolation) || hasNumber(err, mysqlCheckViolate) {
		return true
	}
	return containsAny(err.Error(),
		"Error 3819",
		"violates check constraint",
		"CHECK constraint failed",
	)
}

func hasCode(err error, code string) bool {
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == code {
		return true
	}
	if e, ok := asError[errorCoder](err); ok && e.Code() == code {
		return true
	}
	return false
}

func hasNumber(err error, num uint16) bool {
	e, ok := asError[errorNumberer](err)
	return ok && e.Number() == num
}

// asError extracts an error implementing T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
