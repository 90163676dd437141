package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/config"
	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/service"
)

type ModeController interface {
	Mode() model.OperatingMode
	RequestEnroll(ctx context.Context, req model.EnrollmentRequest) error
}

type SystemController interface {
	FactoryReset(ctx context.Context)
	Repair(ctx context.Context) (bool, error)
	SaveWifiSettings(ctx context.Context, w model.WifiSettings) error
	SaveAppSettings(ctx context.Context, update service.AppSettingsUpdate) error
	RequestReboot(ctx context.Context)
}

type SettingsReader interface {
	WifiSettings() model.WifiSettings
	AppSettings() model.AppSettings
}

type LogSource interface {
	Lines() []string
}

// DeviceHandler serves status, enrollment, settings and the system actions
// that end in a reboot.
type DeviceHandler struct {
	modes    ModeController
	system   SystemController
	settings SettingsReader
	logs     LogSource
}

func NewDeviceHandler(modes ModeController, system SystemController, settings SettingsReader, logs LogSource) *DeviceHandler {
	return &DeviceHandler{
		modes:    modes,
		system:   system,
		settings: settings,
		logs:     logs,
	}
}

func (h *DeviceHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/status", h.Status)
	r.Post("/enroll", h.Enroll)
	r.Post("/pairing", h.Repair)
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.PutSettings)
	r.Get("/wifi", h.GetWifi)
	r.Put("/wifi", h.PutWifi)
	r.Post("/factory-reset", h.FactoryReset)
	r.Post("/reboot", h.Reboot)

	return r
}

type statusResponse struct {
	Mode           model.OperatingMode `json:"mode"`
	Lines          []string            `json:"lines"`
	Version        string              `json:"version"`
	Hostname       string              `json:"hostname"`
	WifiConfigured bool                `json:"wifiConfigured"`
	PairingValid   bool                `json:"pairingValid"`
}

func (h *DeviceHandler) Status(w http.ResponseWriter, r *http.Request) {
	wifi := h.settings.WifiSettings()
	lines := h.logs.Lines()
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Mode:           h.modes.Mode(),
		Lines:          lines,
		Version:        config.VersionInfo,
		Hostname:       wifi.Hostname,
		WifiConfigured: wifi.IsConfigured(),
		PairingValid:   h.settings.AppSettings().SensorPairingValid,
	})
}

func (h *DeviceHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req model.EnrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.modes.RequestEnroll(r.Context(), req); err != nil {
		writeError(w, err)
		return
	}
	writeAccepted(w)
}

func (h *DeviceHandler) Repair(w http.ResponseWriter, r *http.Request) {
	paired, err := h.system.Repair(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"paired": paired})
}

type appSettingsResponse struct {
	NTPServer          string `json:"ntpServer"`
	MQTTRootTopic      string `json:"mqttRootTopic"`
	SensorPairingValid bool   `json:"sensorPairingValid"`
}

func (h *DeviceHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	app := h.settings.AppSettings()
	writeJSON(w, http.StatusOK, appSettingsResponse{
		NTPServer:          app.NTPServer,
		MQTTRootTopic:      app.MQTTRootTopic,
		SensorPairingValid: app.SensorPairingValid,
	})
}

func (h *DeviceHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var update service.AppSettingsUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, err)
		return
	}
	update.NTPServer = strings.TrimSpace(update.NTPServer)
	update.MQTTRootTopic = strings.Trim(strings.TrimSpace(update.MQTTRootTopic), "/")
	if update.NTPServer == "" {
		writeError(w, apperrors.MissingRequired("ntpServer"))
		return
	}
	if update.MQTTRootTopic == "" {
		writeError(w, apperrors.MissingRequired("mqttRootTopic"))
		return
	}
	if strings.ContainsAny(update.MQTTRootTopic, "#+") {
		writeError(w, apperrors.InvalidInput("mqttRootTopic", "wildcards are not allowed"))
		return
	}

	if err := h.system.SaveAppSettings(r.Context(), update); err != nil {
		writeError(w, err)
		return
	}
	writeAccepted(w)
}

func (h *DeviceHandler) GetWifi(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.WifiSettings().Masked())
}

func (h *DeviceHandler) PutWifi(w http.ResponseWriter, r *http.Request) {
	var wifi model.WifiSettings
	if err := decodeJSON(r, &wifi); err != nil {
		writeError(w, err)
		return
	}
	wifi.SSID = strings.TrimSpace(wifi.SSID)
	wifi.Hostname = strings.TrimSpace(wifi.Hostname)
	if wifi.SSID == "" {
		writeError(w, apperrors.MissingRequired("ssid"))
		return
	}

	if err := h.system.SaveWifiSettings(r.Context(), wifi); err != nil {
		writeError(w, err)
		return
	}
	writeAccepted(w)
}

func (h *DeviceHandler) FactoryReset(w http.ResponseWriter, r *http.Request) {
	h.system.FactoryReset(r.Context())
	writeAccepted(w)
}

func (h *DeviceHandler) Reboot(w http.ResponseWriter, r *http.Request) {
	h.system.RequestReboot(r.Context())
	writeAccepted(w)
}
