// Package logging provides structured HTTP request logging middleware.
package logging

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/ethbinder/internal/middleware/realip"
)

// quietPaths are probed constantly by orchestrators and logged at debug level.
var quietPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// Middleware returns an HTTP middleware that logs one line per request with
// the chi request ID, the real client IP and the badge query. Server errors
// are logged at warn level.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				level := slog.LevelInfo
				switch {
				case quietPaths[r.URL.Path]:
					level = slog.LevelDebug
				case status >= http.StatusInternalServerError:
					level = slog.LevelWarn
				}

				logger.Log(r.Context(), level, "request",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"handle", r.URL.Query().Get("handle"),
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"client_ip", realip.GetClientIP(r),
					"referer", r.Referer(),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
