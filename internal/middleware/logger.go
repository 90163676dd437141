package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestLogger logs one line per request. Health probes and the event
// stream log at debug.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			level := zerolog.InfoLevel
			switch {
			case ww.Status() >= http.StatusInternalServerError:
				level = zerolog.ErrorLevel
			case r.URL.Path == "/health" || r.URL.Path == "/metrics" || r.URL.Path == "/api/events":
				level = zerolog.DebugLevel
			}

			log.WithLevel(level).
				Str("requestId", chimiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Str("ip", r.RemoteAddr).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()

		next.ServeHTTP(ww, r)
	})
}
