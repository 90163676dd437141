package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"github.com/rs/zerolog/log"

	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/repository"
)

const pairingCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SettingsManager keeps the WiFi and application settings in memory and
// writes every change through to the repository.
type SettingsManager struct {
	repo repository.SettingsRepository

	mu   sync.RWMutex
	wifi model.WifiSettings
	app  model.AppSettings
}

func NewSettingsManager(repo repository.SettingsRepository) *SettingsManager {
	return &SettingsManager{
		repo: repo,
		app:  model.DefaultAppSettings(),
	}
}

// Load reads both records. Missing records fall back to defaults.
func (m *SettingsManager) Load(ctx context.Context) error {
	var wifi model.WifiSettings
	if _, err := m.repo.Load(ctx, model.SettingsRecordWifi, &wifi); err != nil {
		return apperrors.Database(err)
	}

	app := model.DefaultAppSettings()
	if _, err := m.repo.Load(ctx, model.SettingsRecordApp, &app); err != nil {
		return apperrors.Database(err)
	}

	m.mu.Lock()
	m.wifi = wifi
	m.app = app.WithDefaults()
	m.mu.Unlock()

	log.Info().
		Bool("wifiConfigured", wifi.IsConfigured()).
		Bool("pairingValid", app.SensorPairingValid).
		Msg("settings loaded")
	return nil
}

func (m *SettingsManager) WifiSettings() model.WifiSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wifi
}

// SaveWifiSettings persists s. A password equal to the placeholder keeps the
// stored password.
func (m *SettingsManager) SaveWifiSettings(ctx context.Context, s model.WifiSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Password == model.PasswordPlaceholder {
		s.Password = m.wifi.Password
	}
	if err := m.repo.Save(ctx, model.SettingsRecordWifi, s); err != nil {
		return apperrors.Database(err)
	}
	m.wifi = s
	return nil
}

func (m *SettingsManager) IsWifiConfigured() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wifi.IsConfigured()
}

func (m *SettingsManager) DeleteWifiSettings(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Delete(ctx, model.SettingsRecordWifi); err != nil {
		return apperrors.Database(err)
	}
	m.wifi = model.WifiSettings{}
	return nil
}

func (m *SettingsManager) AppSettings() model.AppSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.app
}

func (m *SettingsManager) SaveAppSettings(ctx context.Context, s model.AppSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAppLocked(ctx, s.WithDefaults())
}

func (m *SettingsManager) DeleteAppSettings(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.repo.Delete(ctx, model.SettingsRecordApp); err != nil {
		return apperrors.Database(err)
	}
	m.app = model.DefaultAppSettings()
	return nil
}

func (m *SettingsManager) PairingState() model.PairingState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.app.Pairing()
}

// SavePairingState updates only the pairing fields of the app settings.
func (m *SettingsManager) SavePairingState(ctx context.Context, state model.PairingState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	app := m.app
	app.SensorPairingCode = state.PairingCode
	app.SensorPairingValid = state.Valid
	return m.saveAppLocked(ctx, app)
}

func (m *SettingsManager) saveAppLocked(ctx context.Context, app model.AppSettings) error {
	if err := m.repo.Save(ctx, model.SettingsRecordApp, app); err != nil {
		return apperrors.Database(err)
	}
	m.app = app
	return nil
}

// GenerateNewPairingCode returns a fresh XXXX-XXXX code. It does not store it.
func (m *SettingsManager) GenerateNewPairingCode() string {
	return generateRandomCode()
}

func generateRandomCode() string {
	chars := []byte(pairingCodeChars)
	part1 := make([]byte, 4)
	part2 := make([]byte, 4)

	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part1[i] = chars[n.Int64()]
	}
	for i := 0; i < 4; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		part2[i] = chars[n.Int64()]
	}

	return fmt.Sprintf("%s-%s", part1, part2)
}
