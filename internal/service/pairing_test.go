package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/sensor"
)

type pairingFixture struct {
	repo     *memorySettingsRepo
	settings *SettingsManager
	sim      *sensor.Simulator
	notifier *recordingNotifier
	guard    *PairingGuard
}

func newPairingFixture(t *testing.T) *pairingFixture {
	t.Helper()
	repo := newMemorySettingsRepo()
	settings := NewSettingsManager(repo)
	require.NoError(t, settings.Load(context.Background()))
	sim := sensor.NewSimulator()
	notifier := &recordingNotifier{}
	return &pairingFixture{
		repo:     repo,
		settings: settings,
		sim:      sim,
		notifier: notifier,
		guard:    NewPairingGuard(settings, sim, notifier),
	}
}

func TestPairingGuard_FirstBootPairsAutomatically(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()

	assert.True(t, f.guard.CheckPairingValid(ctx))

	state := f.settings.PairingState()
	assert.True(t, state.Valid)
	assert.NotEmpty(t, state.PairingCode)
	assert.Equal(t, state.PairingCode, f.sim.PairingCode(ctx))
	assert.Equal(t, []string{msgPairingSuccess}, f.notifier.Lines())
}

func TestPairingGuard_CheckIsIdempotent(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()
	require.True(t, f.guard.Pair(ctx))
	before := f.settings.PairingState()

	for i := 0; i < 3; i++ {
		assert.True(t, f.guard.CheckPairingValid(ctx))
	}

	assert.Equal(t, before, f.settings.PairingState())
	assert.Equal(t, before.PairingCode, f.sim.PairingCode(ctx))
	assert.Len(t, f.notifier.Lines(), 1)
}

func TestPairingGuard_MismatchLatches(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()
	require.True(t, f.guard.Pair(ctx))
	code := f.settings.PairingState().PairingCode

	f.sim.SetSensorPairingCode("ZZZZ-ZZZZ")
	assert.False(t, f.guard.CheckPairingValid(ctx))
	assert.False(t, f.settings.PairingState().Valid)

	// The original sensor coming back does not clear the latch.
	f.sim.SetSensorPairingCode(code)
	assert.False(t, f.guard.CheckPairingValid(ctx))

	require.True(t, f.guard.Pair(ctx))
	assert.True(t, f.guard.CheckPairingValid(ctx))
}

func TestPairingGuard_LatchSurvivesPersistFailure(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()
	require.True(t, f.guard.Pair(ctx))
	code := f.settings.PairingState().PairingCode

	f.repo.SetSaveErr(errors.New("disk full"))
	f.sim.SetSensorPairingCode("ZZZZ-ZZZZ")
	assert.False(t, f.guard.CheckPairingValid(ctx))

	f.sim.SetSensorPairingCode(code)
	assert.False(t, f.guard.CheckPairingValid(ctx))
}

func TestPairingGuard_EmptyCodeDoesNotLatch(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()
	require.True(t, f.guard.Pair(ctx))

	f.sim.SetPairingReadsEmpty(true)
	assert.False(t, f.guard.CheckPairingValid(ctx))
	assert.True(t, f.settings.PairingState().Valid)

	f.sim.SetPairingReadsEmpty(false)
	assert.True(t, f.guard.CheckPairingValid(ctx))
}

func TestPairingGuard_PairFailureLeavesStateUnchanged(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()
	require.True(t, f.guard.Pair(ctx))
	before := f.settings.PairingState()

	f.sim.SetPairingWriteFails(true)
	assert.False(t, f.guard.Pair(ctx))

	assert.Equal(t, before, f.settings.PairingState())
	assert.Equal(t, msgPairingFailed, f.notifier.Lines()[len(f.notifier.Lines())-1])
}

func TestPairingGuard_PersistFailureReportsFailed(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()

	f.repo.SetSaveErr(errors.New("disk full"))
	assert.False(t, f.guard.Pair(ctx))
	assert.Equal(t, []string{msgPairingFailed}, f.notifier.Lines())
	assert.False(t, f.settings.PairingState().Valid)
}

func TestPairingGuard_RepairPersistFailureKeepsSensorOnStoredCode(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()
	require.True(t, f.guard.Pair(ctx))
	stored := f.settings.PairingState().PairingCode

	f.repo.SetSaveErr(errors.New("disk full"))
	assert.False(t, f.guard.Pair(ctx))
	f.repo.SetSaveErr(nil)

	assert.Equal(t, stored, f.settings.PairingState().PairingCode)
	assert.Equal(t, stored, f.sim.PairingCode(ctx))

	assert.True(t, f.guard.CheckPairingValid(ctx))
	assert.True(t, f.guard.CheckPairingValid(ctx))
	assert.True(t, f.settings.PairingState().Valid)
}

func TestPairingGuard_FirstBootPersistFailureRetries(t *testing.T) {
	f := newPairingFixture(t)
	ctx := context.Background()

	f.repo.SetSaveErr(errors.New("disk full"))
	assert.False(t, f.guard.CheckPairingValid(ctx))
	f.repo.SetSaveErr(nil)

	assert.True(t, f.guard.CheckPairingValid(ctx))
	state := f.settings.PairingState()
	assert.True(t, state.Valid)
	assert.Equal(t, state.PairingCode, f.sim.PairingCode(ctx))
}
