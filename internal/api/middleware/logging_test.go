package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/atelierhq/atelier/internal/auth"
)

func TestLogging_RecordsIdentityKind(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("authenticated request carries the resolved kind", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		resolver := &stubResolver{
			identity: auth.UserIdentity(uuid.New(), uuid.New(), "a@example.com", "owner"),
		}
		handler := Logging(logger)(Auth(resolver)(okHandler))

		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Contains(t, buf.String(), `"identity":"user"`)
	})

	t.Run("unauthenticated request logs as anonymous", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		handler := Logging(logger)(okHandler)

		req := httptest.NewRequest("GET", "/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Contains(t, buf.String(), `"identity":"anonymous"`)
		assert.Contains(t, buf.String(), `"status":200`)
	})
}
