// Package sensor talks to the fingerprint sensor. The core only depends on
// the Driver interface; SerialDriver speaks to the sensor bridge over a
// serial line and Simulator stands in for it during development and tests.
package sensor

import (
	"context"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

// Driver is not safe for concurrent use by design of the hardware: callers
// serialize access through the mode state machine's maintenance handshake.
// Implementations still guard their link so a misbehaving caller cannot
// corrupt the wire.
type Driver interface {
	Connect(ctx context.Context) error
	Connected() bool

	Scan(ctx context.Context) model.ScanOutcome
	Enroll(ctx context.Context, slotID int, name string) model.EnrollResult
	IsFingerPresent(ctx context.Context) bool

	Fingerprints(ctx context.Context) ([]model.Fingerprint, error)
	DeleteFinger(ctx context.Context, id int) error
	RenameFinger(ctx context.Context, id int, name string) error
	DeleteAll(ctx context.Context) error

	// PairingCode returns "" when the code could not be read.
	PairingCode(ctx context.Context) string
	SetPairingCode(ctx context.Context, code string) error

	SetLEDRing(ctx context.Context, state model.LEDState) error
	Close() error
}
