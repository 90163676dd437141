package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/audit"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

const (
	msgFactoryReset      = "Factory reset initiated..."
	msgAppSettingsFailed = "App settings could not be deleted."
	msgWifiFailed        = "Wifi settings could not be deleted."
	msgRebooting         = "System is rebooting now..."
)

type SystemSettings interface {
	SaveWifiSettings(ctx context.Context, s model.WifiSettings) error
	AppSettings() model.AppSettings
	SaveAppSettings(ctx context.Context, s model.AppSettings) error
	DeleteAppSettings(ctx context.Context) error
	DeleteWifiSettings(ctx context.Context) error
}

type Pairer interface {
	Pair(ctx context.Context) bool
}

// AppSettingsUpdate holds the user-editable application settings.
type AppSettingsUpdate struct {
	NTPServer     string `json:"ntpServer"`
	MQTTRootTopic string `json:"mqttRootTopic"`
}

// SystemService handles device-wide operations that end in a reboot.
type SystemService struct {
	settings     SystemSettings
	fingerprints *FingerprintService
	pairer       Pairer
	lock         MaintenanceLock
	notifier     Notifier
	timeout      time.Duration

	rebootOnce sync.Once
	rebootCh   chan struct{}
}

func NewSystemService(settings SystemSettings, fingerprints *FingerprintService, pairer Pairer, lock MaintenanceLock, notifier Notifier, maintenanceTimeout time.Duration) *SystemService {
	return &SystemService{
		settings:     settings,
		fingerprints: fingerprints,
		pairer:       pairer,
		lock:         lock,
		notifier:     notifier,
		timeout:      maintenanceTimeout,
		rebootCh:     make(chan struct{}),
	}
}

// FactoryReset wipes fingerprints and both settings records, then requests a
// reboot. Individual failures are reported and do not stop the reset.
func (s *SystemService) FactoryReset(ctx context.Context) {
	s.notifier.Append(ctx, msgFactoryReset)

	if err := s.fingerprints.deleteAll(ctx); err != nil {
		log.Error().Err(err).Msg("factory reset: delete fingerprints")
		s.notifier.Append(ctx, msgFingerDBFailed)
	}
	if err := s.settings.DeleteAppSettings(ctx); err != nil {
		log.Error().Err(err).Msg("factory reset: delete app settings")
		s.notifier.Append(ctx, msgAppSettingsFailed)
	}
	if err := s.settings.DeleteWifiSettings(ctx); err != nil {
		log.Error().Err(err).Msg("factory reset: delete wifi settings")
		s.notifier.Append(ctx, msgWifiFailed)
	}

	audit.Log(ctx, audit.Event{Type: audit.EventFactoryReset})
	s.RequestReboot(ctx)
}

// Repair pairs the sensor again inside a maintenance window.
func (s *SystemService) Repair(ctx context.Context) (bool, error) {
	release, err := s.lock.AcquireMaintenance(ctx, s.timeout)
	if err != nil {
		return false, err
	}
	defer release()
	return s.pairer.Pair(ctx), nil
}

func (s *SystemService) SaveWifiSettings(ctx context.Context, w model.WifiSettings) error {
	if err := s.settings.SaveWifiSettings(ctx, w); err != nil {
		return err
	}
	audit.Log(ctx, audit.Event{
		Type:    audit.EventSettingsChange,
		Details: map[string]interface{}{"record": model.SettingsRecordWifi, "ssid": w.SSID},
	})
	s.RequestReboot(ctx)
	return nil
}

// SaveAppSettings applies update on top of the stored settings, keeping the
// pairing fields.
func (s *SystemService) SaveAppSettings(ctx context.Context, update AppSettingsUpdate) error {
	app := s.settings.AppSettings()
	app.NTPServer = update.NTPServer
	app.MQTTRootTopic = update.MQTTRootTopic
	if err := s.settings.SaveAppSettings(ctx, app); err != nil {
		return err
	}
	audit.Log(ctx, audit.Event{
		Type:    audit.EventSettingsChange,
		Details: map[string]interface{}{"record": model.SettingsRecordApp},
	})
	s.RequestReboot(ctx)
	return nil
}

// RequestReboot signals main to shut down. Only the first call has an effect.
func (s *SystemService) RequestReboot(ctx context.Context) {
	s.rebootOnce.Do(func() {
		s.notifier.Append(ctx, msgRebooting)
		audit.Log(ctx, audit.Event{Type: audit.EventReboot})
		close(s.rebootCh)
	})
}

func (s *SystemService) RebootRequested() <-chan struct{} {
	return s.rebootCh
}
