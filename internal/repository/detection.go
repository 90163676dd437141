package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

type DetectionRepository interface {
	Create(ctx context.Context, params model.CreateDetectionParams) (*model.Detection, error)
	FindRecent(ctx context.Context, limit, offset int) ([]model.Detection, error)
	Count(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type detectionRepo struct {
	db *sqlx.DB
}

func NewDetectionRepository(db *sqlx.DB) DetectionRepository {
	return &detectionRepo{db: db}
}

type detectionRow struct {
	model.Detection
	PairingValid int   `db:"pairing_valid"`
	CreatedAtMs  int64 `db:"created_at_ms"`
}

func (row detectionRow) toModel() model.Detection {
	d := row.Detection
	d.PairingValid = row.PairingValid != 0
	d.CreatedAt = fromMillis(row.CreatedAtMs)
	return d
}

func (r *detectionRepo) Create(ctx context.Context, params model.CreateDetectionParams) (*model.Detection, error) {
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	d := model.Detection{
		ID:           uuid.NewString(),
		Kind:         params.Kind,
		FingerID:     params.FingerID,
		Name:         params.Name,
		Confidence:   params.Confidence,
		ReturnCode:   params.ReturnCode,
		PairingValid: params.PairingValid,
		CreatedAt:    truncateMillis(createdAt),
	}

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO detections (id, kind, finger_id, name, confidence, return_code, pairing_valid, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`), d.ID, d.Kind, d.FingerID, d.Name, d.Confidence, d.ReturnCode, boolToInt(d.PairingValid), toMillis(d.CreatedAt))
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *detectionRepo) FindRecent(ctx context.Context, limit, offset int) ([]model.Detection, error) {
	var rows []detectionRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT id, kind, finger_id, name, confidence, return_code, pairing_valid, created_at_ms
		FROM detections
		ORDER BY created_at_ms DESC, id
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, err
	}

	detections := make([]model.Detection, 0, len(rows))
	for _, row := range rows {
		detections = append(detections, row.toModel())
	}
	return detections, nil
}

func (r *detectionRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM detections`)
	return count, err
}

func (r *detectionRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM detections WHERE created_at_ms < ?
	`), toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
