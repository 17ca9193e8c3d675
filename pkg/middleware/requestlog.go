package middleware

import (
	"net/http"
	"time"

	"shortlink/pkg/logging"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger mints a correlation ID for each request and logs method,
// path, status and duration on completion.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithCorrelationID(r.Context())
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info(ctx, "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds(),
				)
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		})
	}
}
