package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// IsDuplicateKey reports whether err is a unique-constraint violation.
// Used by the checkout saga to detect a lost idempotency race: the loser
// re-reads the winner's order instead of surfacing the constraint error.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == pgUniqueViolation
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}

	// sqlite (tests) reports constraint failures as plain strings.
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
