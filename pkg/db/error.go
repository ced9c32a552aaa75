package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}

// IsLockContentionErr reports whether the failure came from a lock wait that
// exceeded its budget rather than a broken query. Such failures are safe to
// retry.
func IsLockContentionErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()

	// PostgreSQL lock_timeout (55P03) and serialization failure (40001)
	if strings.Contains(msg, "could not obtain lock") ||
		strings.Contains(msg, "canceling statement due to lock timeout") ||
		strings.Contains(msg, "could not serialize access") {
		return true
	}

	// MySQL (1205 lock wait timeout, 1213 deadlock)
	if strings.Contains(msg, "Lock wait timeout exceeded") ||
		strings.Contains(msg, "Deadlock found") {
		return true
	}

	// SQLite
	if strings.Contains(msg, "database is locked") {
		return true
	}

	return false
}
