package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/model"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/sse"
)

type EventSource interface {
	Subscribe() *sse.Client
	Unsubscribe(client *sse.Client)
}

// EventsHandler streams log lines, fingerprint lists and mode changes to the
// web UI.
type EventsHandler struct {
	broker    EventSource
	modes     ModeController
	logs      LogSource
	heartbeat time.Duration
}

func NewEventsHandler(broker EventSource, modes ModeController, logs LogSource) *EventsHandler {
	return &EventsHandler{
		broker:    broker,
		modes:     modes,
		logs:      logs,
		heartbeat: sse.HeartbeatInterval,
	}
}

type connectedEvent struct {
	Mode  model.OperatingMode `json:"mode"`
	Lines []string            `json:"lines"`
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe()
	defer h.broker.Unsubscribe(client)

	log.Debug().Str("remoteAddr", r.RemoteAddr).Msg("sse connection established")

	lines := h.logs.Lines()
	if lines == nil {
		lines = []string{}
	}
	if err := h.sendEvent(w, flusher, sse.EventConnected, connectedEvent{
		Mode:  h.modes.Mode(),
		Lines: lines,
	}); err != nil {
		return
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Debug().Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
