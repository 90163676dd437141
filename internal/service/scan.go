package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/audit"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/metrics"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/repository"
)

const (
	msgNoFinger          = "No finger on sensor"
	msgSecurityMatch     = "Security issue! Match was not sent by MQTT because of invalid sensor pairing! This could potentially be an attack! If the sensor is new or has been replaced by you do a (re)pairing in settings page."
	alertTitleDoorbell   = "Doorbell"
	alertBodyRing        = "Someone is at the door."
	alertTitleSecurity   = "Security issue"
	alertBodySecurityHit = "A finger matched but the sensor pairing is invalid."
)

// PairingChecker is satisfied by *PairingGuard.
type PairingChecker interface {
	CheckPairingValid(ctx context.Context) bool
}

// ScanHandler turns scan outcomes into notifications and, on tag edges, into
// side effects: opening the door, ringing the bell, raising a security alert.
type ScanHandler struct {
	edges      *EdgeTracker
	guard      PairingChecker
	publisher  Publisher
	ringer     Ringer
	alerter    Alerter
	detections repository.DetectionRepository
	notifier   Notifier
	metrics    *metrics.Metrics
	clock      Clock
}

type ScanHandlerDeps struct {
	Policy     ErrorEdgePolicy
	Guard      PairingChecker
	Publisher  Publisher
	Ringer     Ringer
	Alerter    Alerter
	Detections repository.DetectionRepository
	Notifier   Notifier
	Metrics    *metrics.Metrics
	Clock      Clock
}

func NewScanHandler(deps ScanHandlerDeps) *ScanHandler {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	return &ScanHandler{
		edges:      NewEdgeTracker(deps.Policy),
		guard:      deps.Guard,
		publisher:  deps.Publisher,
		ringer:     deps.Ringer,
		alerter:    deps.Alerter,
		detections: deps.Detections,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		clock:      clock,
	}
}

// Handle processes one outcome and reports whether the loop should settle
// before the next poll.
func (h *ScanHandler) Handle(ctx context.Context, outcome model.ScanOutcome) bool {
	edge := h.edges.Observe(outcome.Tag)
	h.metrics.ObserveScan(outcome.Tag)

	switch outcome.Tag {
	case model.ScanNoFinger:
		if edge {
			h.notifier.Append(ctx, msgNoFinger)
			h.publisher.ClearDetectedPerson(ctx)
		}
		return false

	case model.ScanMatchFound:
		h.notifier.Append(ctx, fmt.Sprintf("Match Found: %d - %s with confidence of %d",
			outcome.FingerID, outcome.Name, outcome.Confidence))
		if edge {
			h.onMatch(ctx, outcome)
		}
		return true

	case model.ScanNoMatchFound:
		h.notifier.Append(ctx, fmt.Sprintf("No Match Found (Code %d)", outcome.ReturnCode))
		if edge {
			h.onNoMatch(ctx, outcome)
		}
		return true

	default:
		h.notifier.Append(ctx, fmt.Sprintf("ScanResult Error (Code %d)", outcome.ReturnCode))
		return false
	}
}

func (h *ScanHandler) onMatch(ctx context.Context, outcome model.ScanOutcome) {
	if h.guard.CheckPairingValid(ctx) {
		log.Info().
			Int("fingerId", outcome.FingerID).
			Str("name", outcome.Name).
			Int("confidence", outcome.Confidence).
			Msg("match found, opening door")
		h.publisher.PublishDetectedPerson(ctx, outcome.Name, outcome.Confidence, outcome.FingerID)
		h.metrics.DoorOpened()
		h.record(ctx, model.DetectionMatch, outcome, true)
		return
	}

	h.notifier.Warn(ctx, msgSecurityMatch)
	audit.Log(ctx, audit.Event{
		Type:     audit.EventSecurityViolation,
		FingerID: outcome.FingerID,
		Details:  map[string]interface{}{"confidence": outcome.Confidence},
	})
	h.metrics.SecurityViolation()
	h.record(ctx, model.DetectionSecurityViolation, outcome, false)
	h.alerter.Alert(ctx, alertTitleSecurity, alertBodySecurityHit)
}

func (h *ScanHandler) onNoMatch(ctx context.Context, outcome model.ScanOutcome) {
	log.Info().Int("returnCode", outcome.ReturnCode).Msg("unknown finger, ringing the bell")
	if err := h.ringer.Ring(ctx); err != nil {
		log.Error().Err(err).Msg("failed to ring doorbell")
	}
	h.publisher.PublishRingRequest(ctx)
	h.publisher.PublishUnknownPerson(ctx)
	h.metrics.BellRung()
	h.record(ctx, model.DetectionNoMatch, outcome, false)
	h.alerter.Alert(ctx, alertTitleDoorbell, alertBodyRing)
}

func (h *ScanHandler) record(ctx context.Context, kind model.DetectionKind, outcome model.ScanOutcome, pairingValid bool) {
	if h.detections == nil {
		return
	}
	_, err := h.detections.Create(ctx, model.CreateDetectionParams{
		Kind:         kind,
		FingerID:     outcome.FingerID,
		Name:         outcome.Name,
		Confidence:   outcome.Confidence,
		ReturnCode:   outcome.ReturnCode,
		PairingValid: pairingValid,
		CreatedAt:    h.clock.Now(),
	})
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("failed to record detection")
	}
}
