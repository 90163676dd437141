package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/audit"
	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/util"
)

const (
	AdminUsername = "admin"
	authRealm     = `Basic realm="FingerprintDoorbell", charset="UTF-8"`
)

// BasicAuthMiddleware protects the web API with a single bcrypt-hashed admin
// password. An empty hash disables it. Repeated failures from one IP are
// locked out for a minute.
type BasicAuthMiddleware struct {
	passwordHash string
	failures     *AuthFailureLimiter
}

func NewBasicAuthMiddleware(passwordHash string) *BasicAuthMiddleware {
	return &BasicAuthMiddleware{
		passwordHash: passwordHash,
		failures:     NewAuthFailureLimiter(),
	}
}

func (m *BasicAuthMiddleware) Enabled() bool {
	return m.passwordHash != ""
}

func (m *BasicAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientIP(r)
		if !m.failures.isAllowed(ip) {
			log.Warn().Str("ip", ip).Msg("auth locked out")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed, Details: map[string]interface{}{"reason": "auth lockout"}})
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		user, password, ok := r.BasicAuth()
		if !ok || !util.ConstantTimeEqual(user, AdminUsername) || !util.CheckPasswordHash(password, m.passwordHash) {
			m.failures.recordFailure(ip)
			if ok {
				audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
			}
			w.Header().Set("WWW-Authenticate", authRealm)
			writeError(w, apperrors.Unauthorized("Authentication required"))
			return
		}

		m.failures.reset(ip)
		next.ServeHTTP(w, r)
	})
}
