package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const TraceIDKey contextKey = "trace_id"

// TraceID tags every request with a fresh id, echoes it in X-Trace-ID and
// logs the finished request through logger.
func TraceID(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := uuid.New().String()
			w.Header().Set("X-Trace-ID", traceID)
			ctx := context.WithValue(r.Context(), TraceIDKey, traceID)

			start := time.Now()
			wrapped := newWrapResponseWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			logger.Info("request",
				"trace_id", traceID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.Status(),
				"duration", time.Since(start),
			)
		})
	}
}

func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(TraceIDKey).(string)
	return id
}
