package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/sensor"
)

type fingerprintFixture struct {
	svc      *FingerprintService
	sim      *sensor.Simulator
	lock     *fakeLock
	notifier *recordingNotifier
}

func newFingerprintFixture() *fingerprintFixture {
	sim := sensor.NewSimulator()
	sim.AddFinger(1, "Alice")
	sim.AddFinger(2, "Bob")
	lock := &fakeLock{}
	notifier := &recordingNotifier{}
	return &fingerprintFixture{
		svc:      NewFingerprintService(lock, sim, notifier, nil, time.Minute, time.Second),
		sim:      sim,
		lock:     lock,
		notifier: notifier,
	}
}

func TestFingerprintService_ListIsCached(t *testing.T) {
	f := newFingerprintFixture()
	ctx := context.Background()

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Fingerprint{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}}, list)

	list[0].Name = "mutated"
	again, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", again[0].Name)

	assert.Equal(t, 1, f.sim.AdminCalls())
	assert.Equal(t, 1, f.lock.acquired)
	assert.Equal(t, 1, f.lock.released)
}

func TestFingerprintService_DeleteUpdatesListAndBroadcasts(t *testing.T) {
	f := newFingerprintFixture()
	ctx := context.Background()

	require.NoError(t, f.svc.Delete(ctx, 1))

	require.Len(t, f.notifier.Fingerlists(), 1)
	assert.Equal(t, []model.Fingerprint{{ID: 2, Name: "Bob"}}, f.notifier.Fingerlists()[0])

	calls := f.sim.AdminCalls()
	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Fingerprint{{ID: 2, Name: "Bob"}}, list)
	assert.Equal(t, calls, f.sim.AdminCalls())
}

func TestFingerprintService_RejectsInvalidID(t *testing.T) {
	f := newFingerprintFixture()

	err := f.svc.Delete(context.Background(), 0)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	err = f.svc.Rename(context.Background(), 201, "x")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidInput))

	assert.Zero(t, f.lock.acquired)
}

func TestFingerprintService_MaintenanceTimeoutLeavesSensorUntouched(t *testing.T) {
	f := newFingerprintFixture()
	f.lock.err = apperrors.MaintenanceTimeout()

	err := f.svc.Delete(context.Background(), 1)

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMaintenanceTimeout))
	assert.Zero(t, f.sim.AdminCalls())
	assert.Empty(t, f.notifier.Fingerlists())
}

func TestFingerprintService_RenameCleansName(t *testing.T) {
	f := newFingerprintFixture()

	require.NoError(t, f.svc.Rename(context.Background(), 2, "  Robert\n"))

	lists := f.notifier.Fingerlists()
	require.Len(t, lists, 1)
	assert.Contains(t, lists[0], model.Fingerprint{ID: 2, Name: "Robert"})
}

func TestFingerprintService_DeleteAllFailure(t *testing.T) {
	f := newFingerprintFixture()
	f.sim.FailAdminCalls(true)

	err := f.svc.DeleteAll(context.Background())

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSensorCommunication))
	assert.Equal(t, []string{msgDeletingAll, msgFingerDBFailed}, f.notifier.Lines())
	assert.Equal(t, 1, f.lock.released)
}

func TestFingerprintService_UnderRealMaintenance(t *testing.T) {
	m := newMachineFixture(t, true)
	ctx := context.Background()
	m.sm.Boot(ctx)
	m.sim.AddFinger(4, "Dana")
	svc := NewFingerprintService(m.sm, m.sim, m.notifier, nil, time.Minute, time.Second)

	done := make(chan error, 1)
	go func() { done <- svc.Delete(ctx, 4) }()

	require.Eventually(t, func() bool {
		select {
		case err := <-done:
			require.NoError(t, err)
			return true
		default:
			m.sm.Tick(ctx)
			return false
		}
	}, 2*time.Second, time.Millisecond)

	m.sm.Tick(ctx)
	assert.Equal(t, model.ModeScan, m.sm.Mode())
	list, err := m.sim.Fingerprints(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
