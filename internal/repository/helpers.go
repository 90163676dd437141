package repository

import (
	"database/sql"
	"errors"
	"time"
)

// HandleNotFound turns sql.ErrNoRows into a nil result so Find and Load calls
// can treat a missing row as absence rather than failure.
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Timestamps are stored as unix milliseconds so sqlite and postgres share one
// schema.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// truncateMillis drops precision the database cannot keep, so a created
// record equals what a later read returns.
func truncateMillis(t time.Time) time.Time {
	return fromMillis(toMillis(t))
}

// sqlite has no boolean column type.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
