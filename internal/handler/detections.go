package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/repository"
)

type DetectionHandler struct {
	detections repository.DetectionRepository
}

func NewDetectionHandler(detections repository.DetectionRepository) *DetectionHandler {
	return &DetectionHandler{detections: detections}
}

func (h *DetectionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}

func (h *DetectionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := ParsePagination(r)
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := h.detections.FindRecent(ctx, page.Limit, page.Offset)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	total, err := h.detections.Count(ctx)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if items == nil {
		items = []model.Detection{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}
