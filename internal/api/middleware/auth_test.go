package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/internal/auth"
)

// stubResolver lets the middleware be tested without a database.
type stubResolver struct {
	identity *auth.Identity
	err      error
}

func (s *stubResolver) Resolve(ctx context.Context, creds auth.Credentials) (*auth.Identity, error) {
	return s.identity, s.err
}

func newStaffJWT(t *testing.T, jwtService *auth.JWTService, userID, companyID uuid.UUID) string {
	t.Helper()
	token, err := jwtService.GenerateUserToken(userID, companyID, "test@example.com", "owner")
	require.NoError(t, err)
	return token
}

func TestAuth_ValidToken_AuthorizationHeader(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour, 12*time.Hour)
	resolver := auth.NewUserResolver(jwtService, nil)

	userID := uuid.New()
	companyID := uuid.New()
	token := newStaffJWT(t, jwtService, userID, companyID)

	handler := Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r.Context())
		require.NotNil(t, identity)
		assert.True(t, identity.IsUser())
		assert.Equal(t, userID, identity.UserID)
		assert.Equal(t, companyID, identity.CompanyID)

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAuth_ValidToken_Cookie(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour, 12*time.Hour)
	resolver := auth.NewUserResolver(jwtService, nil)

	userID := uuid.New()
	token := newStaffJWT(t, jwtService, userID, uuid.New())

	handler := Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, userID, GetIdentity(r.Context()).UserID)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_NoCredentials(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour, 12*time.Hour)
	resolver := auth.NewUserResolver(jwtService, nil)

	handler := Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	}))

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unauthorized")
}

func TestAuth_ExpiredToken(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 1*time.Nanosecond, 12*time.Hour)
	resolver := auth.NewUserResolver(jwtService, nil)

	token := newStaffJWT(t, jwtService, uuid.New(), uuid.New())
	time.Sleep(10 * time.Millisecond)

	handler := Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for expired token")
	}))

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ClientSessionOnStaffResolver(t *testing.T) {
	jwtService := auth.NewJWTService("test-secret", 24*time.Hour, 12*time.Hour)
	resolver := auth.NewUserResolver(jwtService, nil)

	portalToken, err := jwtService.GenerateClientToken(uuid.New(), "client@example.com")
	require.NoError(t, err)

	handler := Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("a portal session must not open staff routes")
	}))

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: portalToken})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ResolverFault(t *testing.T) {
	resolver := &stubResolver{err: errors.New("connection refused")}

	handler := Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called on resolver fault")
	}))

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// A storage fault is a 500, not a 401: the caller was not refused
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name           string
		identity       *auth.Identity
		requiredRoles  []string
		expectedStatus int
	}{
		{
			name:           "owner_has_access",
			identity:       auth.UserIdentity(uuid.New(), uuid.New(), "a@example.com", "owner"),
			requiredRoles:  []string{"owner", "admin"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "admin_has_access",
			identity:       auth.UserIdentity(uuid.New(), uuid.New(), "a@example.com", "admin"),
			requiredRoles:  []string{"owner", "admin"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "member_denied",
			identity:       auth.UserIdentity(uuid.New(), uuid.New(), "a@example.com", "member"),
			requiredRoles:  []string{"owner", "admin"},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "client_always_denied",
			identity:       auth.ClientIdentity(uuid.New(), "c@example.com"),
			requiredRoles:  []string{"owner", "admin", "member"},
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(&stubResolver{identity: tt.identity})(
				RequireRole(tt.requiredRoles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})))

			req := httptest.NewRequest("GET", "/api/v1/admin", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestGetIdentity_NotInContext(t *testing.T) {
	assert.Nil(t, GetIdentity(context.Background()))
}
