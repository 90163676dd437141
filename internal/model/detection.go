package model

import "time"

// Detection is an append-only record of a door event that reached a side
// effect (door opened, bell rung, or blocked by invalid pairing).
type Detection struct {
	ID           string        `db:"id" json:"id"`
	Kind         DetectionKind `db:"kind" json:"kind"`
	FingerID     int           `db:"finger_id" json:"fingerId"`
	Name         string        `db:"name" json:"name"`
	Confidence   int           `db:"confidence" json:"confidence"`
	ReturnCode   int           `db:"return_code" json:"returnCode"`
	PairingValid bool          `db:"-" json:"pairingValid"`
	CreatedAt    time.Time     `db:"-" json:"createdAt"`
}

type CreateDetectionParams struct {
	Kind         DetectionKind
	FingerID     int
	Name         string
	Confidence   int
	ReturnCode   int
	PairingValid bool
	CreatedAt    time.Time
}

type PushSubscription struct {
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	P256dh    string    `db:"p256dh" json:"p256dh"`
	Auth      string    `db:"auth" json:"auth"`
	CreatedAt time.Time `db:"-" json:"createdAt"`
}
