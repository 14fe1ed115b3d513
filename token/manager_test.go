package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/jrsteele09/gov-console/token"
	refreshrepofake "github.com/jrsteele09/gov-console/token/refresh/repofake"
	"github.com/jrsteele09/gov-console/users"
	fakeuserrepo "github.com/jrsteele09/gov-console/users/repofake"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	manager *token.Manager
	users   users.UserRepo
	user    *users.User
	now     time.Time
}

func (f *testFixture) Now() time.Time { return f.now }

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	f := &testFixture{
		users: fakeuserrepo.NewFakeUserRepo(),
		now:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	hash, err := users.HashPassword("Secret123")
	require.NoError(t, err)
	f.user = &users.User{
		UserID:       "25433067",
		Name:         "Jane Official",
		Email:        "jane@gov.example",
		Role:         users.RoleReviewer,
		PasswordHash: hash,
	}
	require.NoError(t, f.users.Upsert(f.user))

	f.manager, err = token.New(
		f.users,
		refreshrepofake.NewFakeRefreshTokenRepo(),
		token.NewHMACSigner("test-secret"),
		token.WithNowFunc(f.Now),
		token.WithTokenExpiry(time.Minute, time.Hour),
	)
	require.NoError(t, err)
	return f
}

func TestAuthenticate(t *testing.T) {
	f := setupTestFixture(t)

	grant, err := f.manager.Authenticate("25433067", "Secret123")
	require.NoError(t, err)
	require.NotEmpty(t, grant.AccessToken)
	require.NotEmpty(t, grant.RefreshToken)
	require.Equal(t, 60, grant.ExpiresIn)
	require.Equal(t, f.user.ID, grant.User.ID)

	claims, err := f.manager.Verify(grant.AccessToken)
	require.NoError(t, err)
	require.Equal(t, f.user.ID, claims.Subject)
	require.Equal(t, "25433067", claims.UserID)
	require.Equal(t, "Jane Official", claims.Name)
	require.Equal(t, "Reviewer", claims.Role)
	require.Equal(t, "jane@gov.example", claims.Email)
	require.Equal(t, f.now.Unix(), claims.IssuedAt.Unix())
	require.NotEmpty(t, claims.ID)

	stored, err := f.users.GetByUserID("25433067")
	require.NoError(t, err)
	require.Equal(t, f.now, stored.LastLogin)
}

func TestAuthenticateRejections(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.manager.Authenticate("25433067", "wrong")
	require.ErrorIs(t, err, interrors.ErrInvalidCredentials)

	_, err = f.manager.Authenticate("unknown", "Secret123")
	require.ErrorIs(t, err, interrors.ErrInvalidCredentials)

	require.NoError(t, f.users.SetBlocked("25433067", true))
	_, err = f.manager.Authenticate("25433067", "Secret123")
	require.ErrorIs(t, err, interrors.ErrUserBlocked)
}

func TestVerifyExpired(t *testing.T) {
	f := setupTestFixture(t)

	grant, err := f.manager.Authenticate("25433067", "Secret123")
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)
	_, err = f.manager.Verify(grant.AccessToken)
	require.ErrorIs(t, err, interrors.ErrInvalidToken)
}

func TestVerifyRejectsForeignTokens(t *testing.T) {
	f := setupTestFixture(t)

	other := token.NewHMACSigner("other-secret")
	forged, err := other.Sign(jwt.MapClaims{"sub": f.user.ID, "exp": f.now.Add(time.Hour).Unix()})
	require.NoError(t, err)

	_, err = f.manager.Verify(forged)
	require.ErrorIs(t, err, interrors.ErrInvalidToken)

	_, err = f.manager.Verify("")
	require.ErrorIs(t, err, interrors.ErrInvalidToken)

	_, err = f.manager.Verify("not.a.jwt")
	require.ErrorIs(t, err, interrors.ErrInvalidToken)
}

func TestVerifyUnknownSubject(t *testing.T) {
	f := setupTestFixture(t)

	grant, err := f.manager.Authenticate("25433067", "Secret123")
	require.NoError(t, err)
	require.NoError(t, f.users.Delete(f.user.ID))

	_, err = f.manager.Verify(grant.AccessToken)
	require.ErrorIs(t, err, interrors.ErrInvalidToken)
	require.Contains(t, err.Error(), "unknown subject "+f.user.ID)
}

func TestVerifyRequiresExpiry(t *testing.T) {
	f := setupTestFixture(t)

	noExpiry, err := token.NewHMACSigner("test-secret").Sign(jwt.MapClaims{"sub": f.user.ID})
	require.NoError(t, err)

	_, err = f.manager.Verify(noExpiry)
	require.ErrorIs(t, err, interrors.ErrInvalidToken)
}

func TestRefreshRotates(t *testing.T) {
	f := setupTestFixture(t)

	grant, err := f.manager.Authenticate("25433067", "Secret123")
	require.NoError(t, err)

	f.now = f.now.Add(30 * time.Second)
	renewed, err := f.manager.Refresh(grant.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, grant.AccessToken, renewed.AccessToken)
	require.NotEqual(t, grant.RefreshToken, renewed.RefreshToken)

	_, err = f.manager.Refresh(grant.RefreshToken)
	require.ErrorIs(t, err, interrors.ErrInvalidRefreshToken)

	_, err = f.manager.Refresh("")
	require.ErrorIs(t, err, interrors.ErrInvalidRefreshToken)
}

func TestRefreshExpired(t *testing.T) {
	f := setupTestFixture(t)

	grant, err := f.manager.Authenticate("25433067", "Secret123")
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Hour)
	_, err = f.manager.Refresh(grant.RefreshToken)
	require.ErrorIs(t, err, interrors.ErrRefreshTokenExpired)
}

func TestRefreshBlockedUser(t *testing.T) {
	f := setupTestFixture(t)

	grant, err := f.manager.Authenticate("25433067", "Secret123")
	require.NoError(t, err)

	require.NoError(t, f.users.SetBlocked("25433067", true))
	_, err = f.manager.Refresh(grant.RefreshToken)
	require.ErrorIs(t, err, interrors.ErrUserBlocked)
}

func TestLogoutRevokes(t *testing.T) {
	f := setupTestFixture(t)

	grant, err := f.manager.Authenticate("25433067", "Secret123")
	require.NoError(t, err)

	require.NoError(t, f.manager.Logout(grant.AccessToken))

	_, err = f.manager.Verify(grant.AccessToken)
	require.ErrorIs(t, err, interrors.ErrTokenRevoked)

	_, err = f.manager.Refresh(grant.RefreshToken)
	require.ErrorIs(t, err, interrors.ErrInvalidRefreshToken)
}

func TestLogoutAcceptsExpiredToken(t *testing.T) {
	f := setupTestFixture(t)

	grant, err := f.manager.Authenticate("25433067", "Secret123")
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	require.NoError(t, f.manager.Logout(grant.AccessToken))
	require.ErrorIs(t, f.manager.Logout("garbage"), interrors.ErrInvalidToken)
}

func TestRevokedCacheExpires(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cache := token.NewInMemoryRevokedTokenCache(func() time.Time { return now })

	require.NoError(t, cache.Add("a", now.Add(time.Minute)))
	require.True(t, cache.IsRevoked("a"))
	require.False(t, cache.IsRevoked("b"))

	now = now.Add(2 * time.Minute)
	require.False(t, cache.IsRevoked("a"))
	cache.Cleanup()
	require.False(t, cache.IsRevoked("a"))
}

func TestNewValidation(t *testing.T) {
	_, err := token.New(nil, refreshrepofake.NewFakeRefreshTokenRepo(), token.NewHMACSigner("s"))
	require.Error(t, err)
	_, err = token.New(fakeuserrepo.NewFakeUserRepo(), nil, token.NewHMACSigner("s"))
	require.Error(t, err)
	_, err = token.New(fakeuserrepo.NewFakeUserRepo(), refreshrepofake.NewFakeRefreshTokenRepo(), nil)
	require.Error(t, err)
}

func TestSignerRequiresSecret(t *testing.T) {
	_, err := token.NewHMACSigner("").Sign(jwt.MapClaims{"sub": "1"})
	require.Error(t, err)
}
