package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	sqliteUniqueFailure  = "unique constraint failed"
	genericDuplicateHint = "duplicate key"
)

// isUniqueConstraintError reports whether err is a unique index violation,
// such as a second course with the same code or a second enrollment for
// the same student and course. NOT NULL, foreign key and CHECK failures
// are not matched.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	// The sqlite driver only exposes its failures as text.
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, sqliteUniqueFailure) || strings.Contains(lower, genericDuplicateHint)
}
