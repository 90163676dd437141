package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
)

type FingerprintAdmin interface {
	List(ctx context.Context) ([]model.Fingerprint, error)
	Delete(ctx context.Context, id int) error
	Rename(ctx context.Context, id int, name string) error
	DeleteAll(ctx context.Context) error
}

type FingerprintHandler struct {
	fingerprints FingerprintAdmin
}

func NewFingerprintHandler(fingerprints FingerprintAdmin) *FingerprintHandler {
	return &FingerprintHandler{fingerprints: fingerprints}
}

func (h *FingerprintHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Delete("/", h.DeleteAll)
	r.Delete("/{id}", h.Delete)
	r.Patch("/{id}", h.Rename)

	return r
}

func (h *FingerprintHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.fingerprints.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []model.Fingerprint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"fingerprints": list})
}

func (h *FingerprintHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := slotParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.fingerprints.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *FingerprintHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := slotParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req renameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.fingerprints.Rename(r.Context(), id, req.Name); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func (h *FingerprintHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.fingerprints.DeleteAll(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w)
}

func slotParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, apperrors.InvalidInput("id", "must be a number")
	}
	return id, nil
}
