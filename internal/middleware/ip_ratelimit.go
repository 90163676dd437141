package middleware

import (
	"net"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/audit"
	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
)

type IPRateLimitMiddleware struct {
	limiter Limiter
	prefix  string
}

func NewIPRateLimitMiddleware(limiter Limiter, prefix string) *IPRateLimitMiddleware {
	return &IPRateLimitMiddleware{limiter: limiter, prefix: prefix}
}

func (m *IPRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		allowed, retryAfter := m.limiter.Allow(r.Context(), m.prefix+":"+ip)
		if !allowed {
			seconds := int(retryAfter.Seconds())
			if seconds < 1 {
				seconds = 1
			}
			log.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed})
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from RemoteAddr. chi's RealIP has already
// applied forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
