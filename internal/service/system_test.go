package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/sensor"
)

type systemFixture struct {
	svc      *SystemService
	repo     *memorySettingsRepo
	settings *SettingsManager
	sim      *sensor.Simulator
	lock     *fakeLock
	guard    *stubGuard
	notifier *recordingNotifier
}

func newSystemFixture(t *testing.T) *systemFixture {
	t.Helper()
	ctx := context.Background()
	repo := newMemorySettingsRepo()
	settings := NewSettingsManager(repo)
	require.NoError(t, settings.SaveWifiSettings(ctx, model.WifiSettings{SSID: "home", Password: "secret"}))
	require.NoError(t, settings.SavePairingState(ctx, model.PairingState{PairingCode: "ABCD-EFGH", Valid: true}))

	sim := sensor.NewSimulator()
	sim.AddFinger(1, "Alice")
	lock := &fakeLock{}
	notifier := &recordingNotifier{}
	guard := &stubGuard{}
	fingerprints := NewFingerprintService(lock, sim, notifier, nil, time.Minute, time.Second)

	return &systemFixture{
		svc:      NewSystemService(settings, fingerprints, guard, lock, notifier, time.Second),
		repo:     repo,
		settings: settings,
		sim:      sim,
		lock:     lock,
		guard:    guard,
		notifier: notifier,
	}
}

func rebootRequested(s *SystemService) bool {
	select {
	case <-s.RebootRequested():
		return true
	default:
		return false
	}
}

func TestSystemService_FactoryReset(t *testing.T) {
	f := newSystemFixture(t)

	f.svc.FactoryReset(context.Background())

	list, err := f.sim.Fingerprints(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.False(t, f.repo.Has(model.SettingsRecordApp))
	assert.False(t, f.repo.Has(model.SettingsRecordWifi))
	assert.Equal(t, model.DefaultAppSettings(), f.settings.AppSettings())
	assert.True(t, rebootRequested(f.svc))
	assert.Equal(t, []string{msgFactoryReset, msgRebooting}, f.notifier.Lines())
}

func TestSystemService_FactoryResetReportsFailures(t *testing.T) {
	f := newSystemFixture(t)
	f.sim.FailAdminCalls(true)
	f.repo.deleteErr[model.SettingsRecordApp] = errors.New("locked")
	f.repo.deleteErr[model.SettingsRecordWifi] = errors.New("locked")

	f.svc.FactoryReset(context.Background())

	assert.Equal(t, []string{
		msgFactoryReset,
		msgFingerDBFailed,
		msgAppSettingsFailed,
		msgWifiFailed,
		msgRebooting,
	}, f.notifier.Lines())
	assert.True(t, rebootRequested(f.svc))
}

func TestSystemService_SaveWifiSettingsRequestsReboot(t *testing.T) {
	f := newSystemFixture(t)

	err := f.svc.SaveWifiSettings(context.Background(), model.WifiSettings{SSID: "office", Password: model.PasswordPlaceholder})
	require.NoError(t, err)

	assert.Equal(t, "secret", f.settings.WifiSettings().Password)
	assert.Equal(t, "office", f.settings.WifiSettings().SSID)
	assert.True(t, rebootRequested(f.svc))
}

func TestSystemService_SaveAppSettingsKeepsPairing(t *testing.T) {
	f := newSystemFixture(t)

	err := f.svc.SaveAppSettings(context.Background(), AppSettingsUpdate{NTPServer: "time.example", MQTTRootTopic: "door"})
	require.NoError(t, err)

	app := f.settings.AppSettings()
	assert.Equal(t, "time.example", app.NTPServer)
	assert.Equal(t, "door", app.MQTTRootTopic)
	assert.Equal(t, "ABCD-EFGH", app.SensorPairingCode)
	assert.True(t, app.SensorPairingValid)
	assert.True(t, rebootRequested(f.svc))
}

func TestSystemService_SaveFailureDoesNotReboot(t *testing.T) {
	f := newSystemFixture(t)
	f.repo.SetSaveErr(errors.New("read-only"))

	err := f.svc.SaveAppSettings(context.Background(), AppSettingsUpdate{NTPServer: "time.example"})

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDatabase))
	assert.False(t, rebootRequested(f.svc))
}

func TestSystemService_Repair(t *testing.T) {
	f := newSystemFixture(t)

	ok, err := f.svc.Repair(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, f.lock.acquired)
	assert.Equal(t, 1, f.lock.released)

	f.lock.err = apperrors.MaintenanceTimeout()
	_, err = f.svc.Repair(context.Background())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMaintenanceTimeout))
}

func TestSystemService_RequestRebootIsIdempotent(t *testing.T) {
	f := newSystemFixture(t)
	ctx := context.Background()

	f.svc.RequestReboot(ctx)
	f.svc.RequestReboot(ctx)

	assert.Equal(t, []string{msgRebooting}, f.notifier.Lines())
}
