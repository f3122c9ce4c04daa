package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const requestLogKey contextKey = "requestLog"

// requestLog collects fields that are only known after inner middleware
// has run, so the access log can still carry them.
type requestLog struct {
	identity string
}

func requestLogFrom(ctx context.Context) *requestLog {
	if entry, ok := ctx.Value(requestLogKey).(*requestLog); ok {
		return entry
	}
	return nil
}

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}

			entry := &requestLog{identity: "anonymous"}
			ctx := context.WithValue(r.Context(), requestLogKey, entry)

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"size", wrapped.size,
				"duration", duration.String(),
				"identity", entry.identity,
				"ip", getClientIP(r),
			)
		})
	}
}
