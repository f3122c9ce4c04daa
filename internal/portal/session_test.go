package portal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/atelier/internal/database/models"
	"github.com/atelierhq/atelier/internal/portal"
	"github.com/atelierhq/atelier/internal/testutil"
	"github.com/atelierhq/atelier/pkg/crypto"
)

func TestSessionStore_IssueAndValidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	store := portal.NewSessionStore(db, 15*time.Minute)
	ctx := testutil.TestContext(t)

	company := testutil.CreateTestCompany(t, db)
	client := testutil.CreateTestClient(t, db, company)

	raw, err := store.Issue(ctx, client.ID, client.Email)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	t.Run("only the digest is persisted", func(t *testing.T) {
		var row models.LoginToken
		require.NoError(t, db.Where("client_id = ?", client.ID).First(&row).Error)
		assert.NotEqual(t, raw, row.Digest)
		assert.Equal(t, crypto.DigestToken(raw), row.Digest)
	})

	t.Run("validate returns the owning client", func(t *testing.T) {
		clientID, err := store.Validate(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, client.ID, clientID)
	})

	t.Run("a validated token cannot be replayed", func(t *testing.T) {
		_, err := store.Validate(ctx, raw)
		assert.Equal(t, portal.ErrInvalidToken, err)
	})
}

func TestSessionStore_Validate_Unknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	store := portal.NewSessionStore(db, 15*time.Minute)
	ctx := testutil.TestContext(t)

	_, err := store.Validate(ctx, "never-issued")
	assert.Equal(t, portal.ErrInvalidToken, err)
}

func TestSessionStore_Validate_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	// Tokens expire immediately
	store := portal.NewSessionStore(db, -1*time.Minute)
	ctx := testutil.TestContext(t)

	company := testutil.CreateTestCompany(t, db)
	client := testutil.CreateTestClient(t, db, company)

	raw, err := store.Issue(ctx, client.ID, client.Email)
	require.NoError(t, err)

	_, err = store.Validate(ctx, raw)
	assert.Equal(t, portal.ErrInvalidToken, err)

	t.Run("expired token is not consumed", func(t *testing.T) {
		var row models.LoginToken
		require.NoError(t, db.Where("client_id = ?", client.ID).First(&row).Error)
		assert.Nil(t, row.ConsumedAt)
	})
}

func TestSessionStore_Revoke(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	store := portal.NewSessionStore(db, 15*time.Minute)
	ctx := testutil.TestContext(t)

	company := testutil.CreateTestCompany(t, db)
	client := testutil.CreateTestClient(t, db, company)

	raw, err := store.Issue(ctx, client.ID, client.Email)
	require.NoError(t, err)

	require.NoError(t, store.Revoke(ctx, raw))

	t.Run("revoked token no longer validates", func(t *testing.T) {
		_, err := store.Validate(ctx, raw)
		assert.Equal(t, portal.ErrInvalidToken, err)
	})

	t.Run("revoking again is a no-op", func(t *testing.T) {
		assert.NoError(t, store.Revoke(ctx, raw))
	})

	t.Run("revoking an unknown token is a no-op", func(t *testing.T) {
		assert.NoError(t, store.Revoke(ctx, "never-issued"))
	})
}

func TestSessionStore_TokensAreIndependent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	store := portal.NewSessionStore(db, 15*time.Minute)
	ctx := testutil.TestContext(t)

	company := testutil.CreateTestCompany(t, db)
	client := testutil.CreateTestClient(t, db, company)

	first, err := store.Issue(ctx, client.ID, client.Email)
	require.NoError(t, err)
	second, err := store.Issue(ctx, client.ID, client.Email)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Consuming one leaves the other valid
	_, err = store.Validate(ctx, first)
	require.NoError(t, err)

	clientID, err := store.Validate(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, client.ID, clientID)
}
