package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/config"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	modes ModeController
	now   func() time.Time
}

func NewHealthHandler(db Pinger, modes ModeController) *HealthHandler {
	return &HealthHandler{db: db, modes: modes, now: time.Now}
}

type healthResponse struct {
	Status    string              `json:"status"`
	Mode      model.OperatingMode `json:"mode"`
	Database  string              `json:"database"`
	Timestamp int64               `json:"timestamp"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Mode:      h.modes.Mode(),
		Database:  "ok",
		Timestamp: h.now().UnixMilli(),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("health check: database ping failed")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
