package identity_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser() *identity.User {
	return &identity.User{
		ID:        uuid.New(),
		Name:      "Jane Doe",
		Username:  "jane.doe",
		Email:     "jane@example.com",
		Confirmed: true,
		Credentials: identity.Credentials{
			Version: 3,
		},
	}
}

func TestTokenService_AccessRoundTrip(t *testing.T) {
	ts := identity.NewTokenService(testJWTConfig())
	user := testUser()

	token, err := ts.Generate(user, identity.KindAccess)
	require.NoError(t, err)

	claims, err := ts.Verify(token, identity.KindAccess)
	require.NoError(t, err)

	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Subject)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt, 5*time.Second)
}

func TestTokenService_KindIsolation(t *testing.T) {
	ts := identity.NewTokenService(testJWTConfig())
	user := testUser()

	t.Run("refresh token does not verify as confirmation", func(t *testing.T) {
		token, err := ts.Generate(user, identity.KindRefresh)
		require.NoError(t, err)

		_, err = ts.Verify(token, identity.KindConfirmation)
		require.Error(t, err)
	})

	t.Run("confirmation token does not verify as access", func(t *testing.T) {
		token, err := ts.Generate(user, identity.KindConfirmation)
		require.NoError(t, err)

		_, err = ts.Verify(token, identity.KindAccess)
		require.Error(t, err)
	})
}

func TestTokenService_VersionedClaims(t *testing.T) {
	ts := identity.NewTokenService(testJWTConfig())
	user := testUser()

	for _, kind := range []identity.TokenKind{identity.KindConfirmation, identity.KindResetPassword, identity.KindRefresh} {
		token, err := ts.Generate(user, kind)
		require.NoError(t, err)

		claims, err := ts.Verify(token, kind)
		require.NoError(t, err)
		assert.Equal(t, user.Credentials.Version, claims.Version, "kind %s", kind)
	}
}

func TestTokenService_RefreshTokenID(t *testing.T) {
	ts := identity.NewTokenService(testJWTConfig())
	user := testUser()

	t.Run("fresh id by default", func(t *testing.T) {
		one, err := ts.Generate(user, identity.KindRefresh)
		require.NoError(t, err)
		two, err := ts.Generate(user, identity.KindRefresh)
		require.NoError(t, err)

		c1, err := ts.Verify(one, identity.KindRefresh)
		require.NoError(t, err)
		c2, err := ts.Verify(two, identity.KindRefresh)
		require.NoError(t, err)

		assert.NotEmpty(t, c1.TokenID)
		assert.NotEqual(t, c1.TokenID, c2.TokenID)
	})

	t.Run("pinned id survives", func(t *testing.T) {
		id := uuid.NewString()
		token, err := ts.Generate(user, identity.KindRefresh, identity.WithTokenID(id))
		require.NoError(t, err)

		claims, err := ts.Verify(token, identity.KindRefresh)
		require.NoError(t, err)
		assert.Equal(t, id, claims.TokenID)
	})
}

func TestTokenService_Expiry(t *testing.T) {
	cfg := testJWTConfig()
	cfg.Refresh.TTL = -time.Minute
	ts := identity.NewTokenService(cfg)

	token, err := ts.Generate(testUser(), identity.KindRefresh)
	require.NoError(t, err)

	_, err = ts.Verify(token, identity.KindRefresh)
	assert.ErrorIs(t, err, identity.ErrTokenExpired)
}

func TestTokenService_Audience(t *testing.T) {
	ts := identity.NewTokenService(testJWTConfig())
	user := testUser()

	t.Run("subdomain audience accepted", func(t *testing.T) {
		token, err := ts.Generate(user, identity.KindAccess, identity.WithAudience("app.example.com"))
		require.NoError(t, err)

		_, err = ts.Verify(token, identity.KindAccess)
		assert.NoError(t, err)
	})

	t.Run("foreign audience rejected", func(t *testing.T) {
		token, err := ts.Generate(user, identity.KindAccess, identity.WithAudience("evil.org"))
		require.NoError(t, err)

		_, err = ts.Verify(token, identity.KindAccess)
		assert.ErrorIs(t, err, identity.ErrTokenMalformed)
	})

	t.Run("per request override", func(t *testing.T) {
		token, err := ts.Generate(user, identity.KindAccess, identity.WithAudience("tenant.io"))
		require.NoError(t, err)

		_, err = ts.Verify(token, identity.KindAccess, identity.WithAudience("tenant.io"))
		assert.NoError(t, err)
	})
}

func TestTokenService_GenerateAuthPair(t *testing.T) {
	ts := identity.NewTokenService(testJWTConfig())
	user := testUser()

	access, refresh, err := ts.GenerateAuthPair(user)
	require.NoError(t, err)

	accessClaims, err := ts.Verify(access, identity.KindAccess)
	require.NoError(t, err)
	refreshClaims, err := ts.Verify(refresh, identity.KindRefresh)
	require.NoError(t, err)

	assert.Equal(t, user.ID, accessClaims.UserID)
	assert.Equal(t, user.ID, refreshClaims.UserID)
	assert.NotEmpty(t, refreshClaims.TokenID)
}
