// Package middleware provides the HTTP middleware chain: trace IDs,
// security headers and session attribution.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/sentiq/sentiq-api/internal/api/shared"
	"github.com/sentiq/sentiq-api/internal/platform/logger"
)

// TraceMiddleware adds a trace ID to the request context. It should run
// early in the chain so all subsequent handlers see the trace ID.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())
		traceID := shared.GetTraceID(ctx)

		log := slog.With(slog.String("trace_id", traceID))
		log.Debug("request started",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote_addr", r.RemoteAddr))

		// Downstream handlers and stores pick this up through
		// logger.FromContextOrDefault so every log line carries the
		// trace ID.
		ctx = logger.WithLogger(ctx, log)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
