package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/repository"
)

type VAPIDKeySource interface {
	PublicKey() string
}

// PushHandler manages browser push subscriptions for doorbell alerts. keys
// may be nil when push delivery is disabled.
type PushHandler struct {
	keys VAPIDKeySource
	subs repository.PushSubscriptionRepository
}

func NewPushHandler(keys VAPIDKeySource, subs repository.PushSubscriptionRepository) *PushHandler {
	return &PushHandler{keys: keys, subs: subs}
}

func (h *PushHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/vapid-key", h.VAPIDKey)
	r.Post("/subscriptions", h.Subscribe)
	r.Delete("/subscriptions", h.Unsubscribe)

	return r
}

func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	var key string
	if h.keys != nil {
		key = h.keys.PublicKey()
	}
	if key == "" {
		writeError(w, apperrors.NotFound("VAPID key"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"publicKey": key})
}

// subscriptionRequest mirrors the browser PushSubscription JSON.
type subscriptionRequest struct {
	Endpoint       string `json:"endpoint"`
	ExpirationTime *int64 `json:"expirationTime,omitempty"`
	Keys           struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := validateEndpoint(req.Endpoint); err != nil {
		writeError(w, err)
		return
	}
	if req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeError(w, apperrors.MissingRequired("keys"))
		return
	}

	sub := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.subs.Upsert(r.Context(), sub); err != nil {
		writeError(w, apperrors.Database(err))
		return
	}

	log.Info().Str("endpointHost", endpointHost(req.Endpoint)).Msg("push subscription stored")
	writeJSON(w, http.StatusCreated, map[string]bool{"ok": true})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req unsubscribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Endpoint == "" {
		writeError(w, apperrors.MissingRequired("endpoint"))
		return
	}
	if err := h.subs.Delete(r.Context(), req.Endpoint); err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	writeOK(w)
}

func validateEndpoint(endpoint string) error {
	if endpoint == "" {
		return apperrors.MissingRequired("endpoint")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return apperrors.InvalidInput("endpoint", "must be an https URL")
	}
	return nil
}

func endpointHost(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}
