package middleware

import (
	"net/http"
	"time"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/audit"
	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
	"github.com/fingerprintdoorbell/doorbell-server-go/internal/util"
)

const (
	CSRFCookieName = "doorbell_csrf"
	CSRFHeaderName = "X-CSRF-Token"
	csrfCookieTTL  = 24 * time.Hour
)

// CSRFMiddleware guards the settings and system actions. Mutating requests
// must echo the csrf cookie in X-CSRF-Token; browsers that send fetch
// metadata are also refused when the request is cross-site. Safe requests get
// the current token in the response header so the UI never parses cookies.
type CSRFMiddleware struct {
	secureCookie bool
}

func NewCSRFMiddleware(secureCookie bool) *CSRFMiddleware {
	return &CSRFMiddleware{secureCookie: secureCookie}
}

func (m *CSRFMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := m.ensureToken(w, r)
		if err != nil {
			writeError(w, err)
			return
		}

		if isSafeMethod(r.Method) {
			w.Header().Set(CSRFHeaderName, token)
			next.ServeHTTP(w, r)
			return
		}

		if reason := csrfRejection(r, token); reason != "" {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventCSRFFailure,
				Details: map[string]interface{}{"path": r.URL.Path, "reason": reason},
			})
			writeError(w, apperrors.Forbidden("Missing or invalid CSRF token"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ensureToken returns the cookie token, issuing a new one when absent.
func (m *CSRFMiddleware) ensureToken(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", apperrors.Internal("Failed to generate security token").WithCause(err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(csrfCookieTTL.Seconds()),
		HttpOnly: false,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}

func csrfRejection(r *http.Request, token string) string {
	if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
		return "cross_site"
	}
	header := r.Header.Get(CSRFHeaderName)
	if header == "" {
		return "missing"
	}
	if !util.ConstantTimeEqual(token, header) {
		return "mismatch"
	}
	return ""
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
