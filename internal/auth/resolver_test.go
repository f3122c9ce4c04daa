package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/testutil"
)

func TestCredentialsFromRequest(t *testing.T) {
	t.Run("extracts session cookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "session-jwt"})

		creds := auth.CredentialsFromRequest(req)
		assert.Equal(t, "session-jwt", creds.SessionToken)
		assert.Empty(t, creds.BearerToken)
		assert.Empty(t, creds.PortalToken)
	})

	t.Run("extracts bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		req.Header.Set("Authorization", "Bearer opaque-or-jwt")

		creds := auth.CredentialsFromRequest(req)
		assert.Equal(t, "opaque-or-jwt", creds.BearerToken)
	})

	t.Run("falls back to X-Auth-Token header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/projects", nil)
		req.Header.Set("X-Auth-Token", "header-token")

		creds := auth.CredentialsFromRequest(req)
		assert.Equal(t, "header-token", creds.BearerToken)
	})

	t.Run("extracts portal cookie", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/portal/projects", nil)
		req.AddCookie(&http.Cookie{Name: "portal_token", Value: "portal-jwt"})

		creds := auth.CredentialsFromRequest(req)
		assert.Equal(t, "portal-jwt", creds.PortalToken)
	})

	t.Run("collects all credentials at once", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/portal/projects", nil)
		req.AddCookie(&http.Cookie{Name: "token", Value: "staff"})
		req.AddCookie(&http.Cookie{Name: "portal_token", Value: "portal"})
		req.Header.Set("Authorization", "Bearer bearer")

		creds := auth.CredentialsFromRequest(req)
		assert.Equal(t, "staff", creds.SessionToken)
		assert.Equal(t, "bearer", creds.BearerToken)
		assert.Equal(t, "portal", creds.PortalToken)
	})
}

func TestUserResolver_Resolve(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	jwtService := testutil.CreateTestJWTService()
	tokens := auth.NewApiTokenService(db)
	resolver := auth.NewUserResolver(jwtService, tokens)

	company := testutil.CreateTestCompany(t, db)
	user := testutil.CreateTestUser(t, db, company)
	ctx := testutil.TestContext(t)

	t.Run("no credentials is unauthenticated, not an error", func(t *testing.T) {
		identity, err := resolver.Resolve(ctx, auth.Credentials{})
		require.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("resolves session cookie JWT", func(t *testing.T) {
		token := testutil.GenerateTestToken(t, jwtService, user)

		identity, err := resolver.Resolve(ctx, auth.Credentials{SessionToken: token})
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.True(t, identity.IsUser())
		assert.Equal(t, user.ID, identity.UserID)
		assert.Equal(t, company.ID, identity.CompanyID)
	})

	t.Run("resolves bearer JWT", func(t *testing.T) {
		token := testutil.GenerateTestToken(t, jwtService, user)

		identity, err := resolver.Resolve(ctx, auth.Credentials{BearerToken: token})
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, user.ID, identity.UserID)
	})

	t.Run("resolves opaque API token as bearer", func(t *testing.T) {
		raw, _, err := tokens.Issue(ctx, user.ID, company.ID, "ci")
		require.NoError(t, err)

		identity, err := resolver.Resolve(ctx, auth.Credentials{BearerToken: raw})
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.True(t, identity.IsUser())
		assert.Equal(t, user.ID, identity.UserID)
		assert.Equal(t, user.Role, identity.Role)
	})

	t.Run("garbage bearer is unauthenticated", func(t *testing.T) {
		identity, err := resolver.Resolve(ctx, auth.Credentials{BearerToken: "garbage"})
		require.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("portal JWT never resolves as staff", func(t *testing.T) {
		client := testutil.CreateTestClient(t, db, company)
		portalToken := testutil.GenerateTestClientToken(t, jwtService, client)

		identity, err := resolver.Resolve(ctx, auth.Credentials{SessionToken: portalToken})
		require.NoError(t, err)
		assert.Nil(t, identity)

		identity, err = resolver.Resolve(ctx, auth.Credentials{BearerToken: portalToken})
		require.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("invalid session cookie falls through to bearer", func(t *testing.T) {
		token := testutil.GenerateTestToken(t, jwtService, user)

		identity, err := resolver.Resolve(ctx, auth.Credentials{
			SessionToken: "expired-or-garbage",
			BearerToken:  token,
		})
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, user.ID, identity.UserID)
	})
}

func TestUserResolver_RevokedToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	jwtService := testutil.CreateTestJWTService()
	tokens := auth.NewApiTokenService(db)
	resolver := auth.NewUserResolver(jwtService, tokens)

	company := testutil.CreateTestCompany(t, db)
	user := testutil.CreateTestUser(t, db, company)
	ctx := testutil.TestContext(t)

	raw, issued, err := tokens.Issue(ctx, user.ID, company.ID, "ci")
	require.NoError(t, err)

	// Works before revocation
	identity, err := resolver.Resolve(ctx, auth.Credentials{BearerToken: raw})
	require.NoError(t, err)
	require.NotNil(t, identity)

	require.NoError(t, tokens.Revoke(ctx, issued.ID, company.ID))

	// Unauthenticated after, still not an error
	identity, err = resolver.Resolve(ctx, auth.Credentials{BearerToken: raw})
	require.NoError(t, err)
	assert.Nil(t, identity)

	// Revoking again is a no-op
	require.NoError(t, tokens.Revoke(ctx, issued.ID, company.ID))
}

func TestApiTokenService_Revoke_OutOfScope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokens := auth.NewApiTokenService(db)
	ctx := testutil.TestContext(t)

	companyA := testutil.CreateTestCompany(t, db)
	companyB := testutil.CreateTestCompany(t, db)
	userA := testutil.CreateTestUser(t, db, companyA)

	_, issued, err := tokens.Issue(ctx, userA.ID, companyA.ID, "ci")
	require.NoError(t, err)

	// Another company cannot see the token, let alone revoke it
	err = tokens.Revoke(ctx, issued.ID, companyB.ID)
	assert.Equal(t, auth.ErrTokenNotFound, err)

	// The token is untouched for its owner
	listed, err := tokens.List(ctx, userA.ID, companyA.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Nil(t, listed[0].RevokedAt)
}

func TestApiTokenService_InactiveUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokens := auth.NewApiTokenService(db)
	ctx := testutil.TestContext(t)

	company := testutil.CreateTestCompany(t, db)
	user := testutil.CreateTestUser(t, db, company)

	raw, _, err := tokens.Issue(ctx, user.ID, company.ID, "ci")
	require.NoError(t, err)

	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	identity, err := tokens.Resolve(ctx, raw)
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestApiTokenService_DeletedCompany(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	tokens := auth.NewApiTokenService(db)
	ctx := testutil.TestContext(t)

	company := testutil.CreateTestCompany(t, db)
	user := testutil.CreateTestUser(t, db, company)

	raw, _, err := tokens.Issue(ctx, user.ID, company.ID, "ci")
	require.NoError(t, err)

	// Token works while the company lives.
	identity, err := tokens.Resolve(ctx, raw)
	require.NoError(t, err)
	require.NotNil(t, identity)

	// Soft-deleting the company kills every token issued under it,
	// even though the owning user row is untouched.
	require.NoError(t, db.Delete(company).Error)

	identity, err = tokens.Resolve(ctx, raw)
	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestClientResolver_Resolve(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	jwtService := testutil.CreateTestJWTService()
	resolver := auth.NewClientResolver(jwtService)

	company := testutil.CreateTestCompany(t, db)
	client := testutil.CreateTestClient(t, db, company)
	ctx := testutil.TestContext(t)

	t.Run("resolves portal session", func(t *testing.T) {
		token := testutil.GenerateTestClientToken(t, jwtService, client)

		identity, err := resolver.Resolve(ctx, auth.Credentials{PortalToken: token})
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.True(t, identity.IsClient())
		assert.Equal(t, client.ID, identity.ClientID)
	})

	t.Run("no portal cookie is unauthenticated", func(t *testing.T) {
		identity, err := resolver.Resolve(ctx, auth.Credentials{})
		require.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("staff JWT in portal cookie never resolves as client", func(t *testing.T) {
		user := testutil.CreateTestUser(t, db, company)
		staffToken := testutil.GenerateTestToken(t, jwtService, user)

		identity, err := resolver.Resolve(ctx, auth.Credentials{PortalToken: staffToken})
		require.NoError(t, err)
		assert.Nil(t, identity)
	})
}

func TestDualResolver_Precedence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	jwtService := testutil.CreateTestJWTService()
	tokens := auth.NewApiTokenService(db)
	resolver := auth.NewDualResolver(
		auth.NewUserResolver(jwtService, tokens),
		auth.NewClientResolver(jwtService),
	)

	company := testutil.CreateTestCompany(t, db)
	user := testutil.CreateTestUser(t, db, company)
	client := testutil.CreateTestClient(t, db, company)
	ctx := testutil.TestContext(t)

	staffToken := testutil.GenerateTestToken(t, jwtService, user)
	portalToken := testutil.GenerateTestClientToken(t, jwtService, client)

	t.Run("staff session wins when both are present", func(t *testing.T) {
		identity, err := resolver.Resolve(ctx, auth.Credentials{
			SessionToken: staffToken,
			PortalToken:  portalToken,
		})
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.True(t, identity.IsUser())
		assert.Equal(t, user.ID, identity.UserID)
	})

	t.Run("portal session alone resolves as client", func(t *testing.T) {
		identity, err := resolver.Resolve(ctx, auth.Credentials{PortalToken: portalToken})
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.True(t, identity.IsClient())
		assert.Equal(t, client.ID, identity.ClientID)
	})

	t.Run("invalid staff session falls through to client", func(t *testing.T) {
		identity, err := resolver.Resolve(ctx, auth.Credentials{
			SessionToken: "garbage",
			PortalToken:  portalToken,
		})
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.True(t, identity.IsClient())
	})

	t.Run("neither credential is unauthenticated", func(t *testing.T) {
		identity, err := resolver.Resolve(ctx, auth.Credentials{})
		require.NoError(t, err)
		assert.Nil(t, identity)
	})
}
