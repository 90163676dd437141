package service

import (
	"context"
	"time"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

// Notifier is the rolling log and live broadcast consumed by the web layer.
// *notify.Sink satisfies it.
type Notifier interface {
	Append(ctx context.Context, message string)
	Warn(ctx context.Context, message string)
	BroadcastFingerprints(ctx context.Context, list []model.Fingerprint)
	BroadcastMode(ctx context.Context, mode model.OperatingMode)
}

// Publisher reports detections to the home-automation bus. Publishes are
// fire-and-forget.
type Publisher interface {
	PublishDetectedPerson(ctx context.Context, name string, confidence, id int)
	PublishUnknownPerson(ctx context.Context)
	ClearDetectedPerson(ctx context.Context)
	PublishRingRequest(ctx context.Context)
	PublishWifiSignal(ctx context.Context, dbm int)
}

// Ringer presses the physical doorbell.
type Ringer interface {
	Ring(ctx context.Context) error
}

// Alerter pushes a short alert to subscribed browsers without blocking.
type Alerter interface {
	Alert(ctx context.Context, title, body string)
}

// Clock abstracts time so settle delays and maintenance waits can be tested
// without sleeping.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock returns the wall clock.
func RealClock() Clock {
	return realClock{}
}
