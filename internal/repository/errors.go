package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert collides with a unique index,
	// e.g. reusing a client id within the same report.
	ErrDuplicate = errors.New("duplicate record")
)

// isUniqueViolation classifies driver-specific unique-index errors. Postgres
// reports SQLSTATE 23505; the sqlite driver only gives us message text.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
