package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/audit"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/util"
)

const (
	msgPairingSuccess = "Pairing successful."
	msgPairingFailed  = "Pairing failed."
)

// PairingStore persists the pairing state. *SettingsManager satisfies it.
type PairingStore interface {
	PairingState() model.PairingState
	SavePairingState(ctx context.Context, state model.PairingState) error
	GenerateNewPairingCode() string
}

// PairingSensor is the pairing-code part of the sensor driver.
type PairingSensor interface {
	PairingCode(ctx context.Context) string
	SetPairingCode(ctx context.Context, code string) error
}

// PairingGuard verifies that the attached sensor is the one that was paired.
// A non-empty mismatching code latches the pairing invalid until Pair
// succeeds again. An empty code is treated as a read failure and does not
// latch.
type PairingGuard struct {
	store    PairingStore
	sensor   PairingSensor
	notifier Notifier

	mu sync.Mutex
	// latched mirrors the persisted invalidation so it holds even if
	// persisting it failed.
	latched bool
}

func NewPairingGuard(store PairingStore, sensor PairingSensor, notifier Notifier) *PairingGuard {
	return &PairingGuard{
		store:    store,
		sensor:   sensor,
		notifier: notifier,
	}
}

func (g *PairingGuard) CheckPairingValid(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.store.PairingState()
	if !state.Valid || g.latched {
		if state.IsFirstBoot() {
			log.Info().Msg("sensor was never paired, pairing automatically")
			return g.pairLocked(ctx)
		}
		audit.Log(ctx, audit.Event{
			Type:    audit.EventPairingRejected,
			Details: map[string]interface{}{"reason": "pairing invalidated previously"},
		})
		return false
	}

	actual := g.sensor.PairingCode(ctx)
	if util.ConstantTimeEqual(actual, state.PairingCode) {
		return true
	}

	if actual == "" {
		log.Warn().Msg("sensor pairing code could not be read")
		return false
	}

	g.latched = true
	if err := g.store.SavePairingState(ctx, model.PairingState{PairingCode: state.PairingCode, Valid: false}); err != nil {
		log.Error().Err(err).Msg("failed to persist pairing invalidation")
	}
	audit.Log(ctx, audit.Event{
		Type: audit.EventPairingInvalidated,
		Details: map[string]interface{}{
			"expected": util.MaskCode(state.PairingCode),
			"actual":   util.MaskCode(actual),
		},
	})
	return false
}

// Pair issues a new code, pushes it to the sensor and persists it. On any
// failure the stored state is left unchanged and the sensor is put back on
// the previous code, so a failed pairing never reads as a foreign sensor.
func (g *PairingGuard) Pair(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pairLocked(ctx)
}

func (g *PairingGuard) pairLocked(ctx context.Context) bool {
	previous := g.store.PairingState().PairingCode
	code := g.store.GenerateNewPairingCode()

	if err := g.sensor.SetPairingCode(ctx, code); err != nil {
		log.Error().Err(err).Msg("sensor rejected pairing code")
		g.pairingFailed(ctx, "sensor rejected code")
		return false
	}

	if err := g.store.SavePairingState(ctx, model.PairingState{PairingCode: code, Valid: true}); err != nil {
		log.Error().Err(err).Msg("failed to persist pairing code")
		g.restoreSensorCode(ctx, previous)
		g.pairingFailed(ctx, "persist failed")
		return false
	}

	g.latched = false
	audit.Log(ctx, audit.Event{
		Type:    audit.EventPairingSuccess,
		Details: map[string]interface{}{"code": util.MaskCode(code)},
	})
	g.notifier.Append(ctx, msgPairingSuccess)
	return true
}

// restoreSensorCode puts the previous code back on the sensor. With no
// previous code the next check pairs from scratch anyway.
func (g *PairingGuard) restoreSensorCode(ctx context.Context, previous string) {
	if previous == "" {
		return
	}
	if err := g.sensor.SetPairingCode(ctx, previous); err != nil {
		log.Error().Err(err).Msg("failed to restore previous sensor pairing code")
	}
}

func (g *PairingGuard) pairingFailed(ctx context.Context, reason string) {
	audit.Log(ctx, audit.Event{
		Type:    audit.EventPairingFailure,
		Details: map[string]interface{}{"reason": reason},
	})
	g.notifier.Append(ctx, msgPairingFailed)
}
