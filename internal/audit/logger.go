package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventPairingSuccess     EventType = "pairing_success"
	EventPairingFailure     EventType = "pairing_failure"
	EventPairingInvalidated EventType = "pairing_invalidated"
	EventPairingRejected    EventType = "pairing_rejected"
	EventSecurityViolation  EventType = "security_violation"
	EventFingerprintDelete  EventType = "fingerprint_delete"
	EventFingerprintRename  EventType = "fingerprint_rename"
	EventFingerprintEnroll  EventType = "fingerprint_enroll"
	EventFactoryReset       EventType = "factory_reset"
	EventSettingsChange     EventType = "settings_change"
	EventReboot             EventType = "reboot"
	EventAuthFailure        EventType = "auth_failure"
	EventCSRFFailure        EventType = "csrf_failure"
	EventRateLimitExceed    EventType = "rate_limit_exceeded"
)

type Event struct {
	Type      EventType
	FingerID  int
	IP        string
	UserAgent string
	Details   map[string]interface{}
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.FingerID != 0 {
		logger = logger.With().Int("finger_id", event.FingerID).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	var logEvent *zerolog.Event
	switch event.Type {
	case EventPairingInvalidated, EventPairingRejected, EventSecurityViolation:
		logEvent = logger.Warn()
	default:
		logEvent = logger.Info()
	}
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("security audit event")
}

func addField(e *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = getClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
