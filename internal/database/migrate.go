package database

import (
	"context"
	"fmt"
)

// Schema statements are portable between sqlite and postgres: timestamps are
// unix milliseconds and booleans are integers.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		name          TEXT PRIMARY KEY,
		payload       TEXT NOT NULL,
		updated_at_ms BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS detections (
		id            TEXT PRIMARY KEY,
		kind          TEXT NOT NULL,
		finger_id     INTEGER NOT NULL DEFAULT 0,
		name          TEXT NOT NULL DEFAULT '',
		confidence    INTEGER NOT NULL DEFAULT 0,
		return_code   INTEGER NOT NULL DEFAULT 0,
		pairing_valid INTEGER NOT NULL DEFAULT 0,
		created_at_ms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_detections_created_at ON detections (created_at_ms)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		endpoint      TEXT PRIMARY KEY,
		p256dh        TEXT NOT NULL,
		auth          TEXT NOT NULL,
		created_at_ms BIGINT NOT NULL
	)`,
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
