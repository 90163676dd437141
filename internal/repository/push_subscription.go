package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

type PushSubscriptionRepository interface {
	Upsert(ctx context.Context, sub model.PushSubscription) error
	FindAll(ctx context.Context) ([]model.PushSubscription, error)
	Delete(ctx context.Context, endpoint string) error
}

type pushSubscriptionRepo struct {
	db *sqlx.DB
}

func NewPushSubscriptionRepository(db *sqlx.DB) PushSubscriptionRepository {
	return &pushSubscriptionRepo{db: db}
}

type pushSubscriptionRow struct {
	model.PushSubscription
	CreatedAtMs int64 `db:"created_at_ms"`
}

func (r *pushSubscriptionRepo) Upsert(ctx context.Context, sub model.PushSubscription) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO push_subscriptions (endpoint, p256dh, auth, created_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth
	`), sub.Endpoint, sub.P256dh, sub.Auth, toMillis(time.Now()))
	return err
}

func (r *pushSubscriptionRepo) FindAll(ctx context.Context) ([]model.PushSubscription, error) {
	var rows []pushSubscriptionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT endpoint, p256dh, auth, created_at_ms
		FROM push_subscriptions
		ORDER BY created_at_ms
	`)
	if err != nil {
		return nil, err
	}

	subs := make([]model.PushSubscription, 0, len(rows))
	for _, row := range rows {
		sub := row.PushSubscription
		sub.CreatedAt = fromMillis(row.CreatedAtMs)
		subs = append(subs, sub)
	}
	return subs, nil
}

func (r *pushSubscriptionRepo) Delete(ctx context.Context, endpoint string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM push_subscriptions WHERE endpoint = ?
	`), endpoint)
	return err
}
