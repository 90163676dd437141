package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/sse"
)

const timestampLayout = "2006-01-02 15:04:05"

// Broadcaster delivers live events to dashboards. *sse.Broker satisfies it.
type Broadcaster interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Sink is the rolling notification log plus its live broadcast.
// Appends are fire-and-forget: broadcast failures are only logged.
type Sink struct {
	buffer      *LogBuffer
	broadcaster Broadcaster
	now         func() time.Time
}

type Option func(*Sink)

func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

func NewSink(buffer *LogBuffer, broadcaster Broadcaster, opts ...Option) *Sink {
	s := &Sink{
		buffer:      buffer,
		broadcaster: broadcaster,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Append(ctx context.Context, message string) {
	log.Info().Str("notification", message).Msg("notify")
	s.append(ctx, message)
}

// Warn appends a security warning. It is logged at warn level.
func (s *Sink) Warn(ctx context.Context, message string) {
	log.Warn().Str("notification", message).Msg("notify")
	s.append(ctx, message)
}

func (s *Sink) append(ctx context.Context, message string) {
	line := "[" + s.now().UTC().Format(timestampLayout) + " UTC]: " + message
	s.buffer.Add(line)
	s.publish(ctx, sse.EventMessage, s.buffer.Snapshot())
}

func (s *Sink) BroadcastFingerprints(ctx context.Context, list []model.Fingerprint) {
	if list == nil {
		list = []model.Fingerprint{}
	}
	s.publish(ctx, sse.EventFingerlist, list)
}

func (s *Sink) BroadcastMode(ctx context.Context, mode model.OperatingMode) {
	s.publish(ctx, sse.EventMode, map[string]string{"mode": mode.String()})
}

// Lines returns the current log, newest first.
func (s *Sink) Lines() []string {
	return s.buffer.Snapshot()
}

func (s *Sink) publish(ctx context.Context, eventType string, data interface{}) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Publish(ctx, eventType, data); err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("failed to broadcast event")
	}
}
