package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SettingsRepository loads and saves named settings records. Load reports
// found=false for a record that was never saved.
type SettingsRepository interface {
	Load(ctx context.Context, name string, dest interface{}) (bool, error)
	Save(ctx context.Context, name string, value interface{}) error
	Delete(ctx context.Context, name string) error
}

type settingsRepo struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Load(ctx context.Context, name string, dest interface{}) (bool, error) {
	var payload string
	err := r.db.GetContext(ctx, &payload, r.db.Rebind(`
		SELECT payload FROM settings WHERE name = ?
	`), name)
	found, err := HandleNotFound(&payload, err)
	if err != nil {
		return false, err
	}
	if found == nil {
		return false, nil
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return false, fmt.Errorf("decode settings %q: %w", name, err)
	}
	return true, nil
}

func (r *settingsRepo) Save(ctx context.Context, name string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode settings %q: %w", name, err)
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO settings (name, payload, updated_at_ms)
		VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			payload = excluded.payload,
			updated_at_ms = excluded.updated_at_ms
	`), name, string(payload), toMillis(time.Now()))
	return err
}

func (r *settingsRepo) Delete(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM settings WHERE name = ?
	`), name)
	return err
}
