package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/jrsteele09/gov-console/token/refresh"
	"github.com/jrsteele09/gov-console/users"
	"github.com/pkg/errors"
)

const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 7 * 24 * time.Hour
)

// Grant is the result of a successful sign-in or renewal.
type Grant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds
	User         *users.User
}

// Claims are the verified contents of an access token.
type Claims struct {
	ID        string // jti
	Subject   string // users.User.ID
	UserID    string
	Name      string
	Role      string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager issues, verifies and revokes the registry API's access tokens.
// Refresh tokens are opaque and rotate on every use.
type Manager struct {
	signer             Signer
	userRepo           users.UserRepo
	refreshManager     *refresh.Manager
	revokedCache       RevokedTokenCache
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry time.Duration, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(userRepo users.UserRepo, refreshRepo refresh.Repo, signer Signer, options ...ManagerOption) (*Manager, error) {
	if userRepo == nil {
		return nil, errors.New("[token.New] user repo is required")
	}
	if refreshRepo == nil {
		return nil, errors.New("[token.New] refresh token repo is required")
	}
	if signer == nil {
		return nil, errors.New("[token.New] signer is required")
	}

	m := &Manager{
		userRepo: userRepo,
		signer:   signer,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry <= 0 {
		m.accessTokenExpiry = DefaultAccessTokenExpiry
	}
	if m.refreshTokenExpiry <= 0 {
		m.refreshTokenExpiry = DefaultRefreshTokenExpiry
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	if m.revokedCache == nil {
		m.revokedCache = NewInMemoryRevokedTokenCache(m.nowFunc)
	}
	m.refreshManager = refresh.NewManager(refreshRepo, m.refreshTokenExpiry, refresh.WithNowTime(m.nowFunc))
	return m, nil
}

// Authenticate checks a sign-in identifier and password and issues a grant.
func (m *Manager) Authenticate(userID, password string) (*Grant, error) {
	user, err := m.userRepo.GetByUserID(strings.TrimSpace(userID))
	if err != nil {
		if interrors.Is(err, interrors.ErrUserNotFound) {
			return nil, interrors.ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "[Manager.Authenticate] GetByUserID")
	}
	if !user.CheckPassword(password) {
		return nil, interrors.ErrInvalidCredentials
	}
	if user.Blocked {
		return nil, interrors.ErrUserBlocked
	}
	if err := m.userRepo.SetLastLogin(user.UserID, m.nowFunc()); err != nil {
		return nil, errors.Wrap(err, "[Manager.Authenticate] SetLastLogin")
	}
	return m.grant(user)
}

// Refresh consumes a refresh token and issues a new grant with a rotated
// refresh token.
func (m *Manager) Refresh(refreshToken string) (*Grant, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, interrors.ErrInvalidRefreshToken
	}
	userID, next, err := m.refreshManager.Rotate(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := m.userRepo.GetByID(userID)
	if err != nil {
		_ = m.refreshManager.Revoke(userID)
		return nil, errors.Wrap(err, "[Manager.Refresh] user not found for refresh token")
	}
	if user.Blocked {
		_ = m.refreshManager.Revoke(userID)
		return nil, interrors.ErrUserBlocked
	}

	accessToken, err := m.CreateAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &Grant{
		AccessToken:  accessToken,
		RefreshToken: next,
		ExpiresIn:    int(m.accessTokenExpiry.Seconds()),
		User:         user,
	}, nil
}

// Verify checks the signature, expiry and revocation of an access token.
func (m *Manager) Verify(rawToken string) (*Claims, error) {
	claims, err := m.parse(rawToken,
		jwt.WithTimeFunc(m.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.ID != "" && m.revokedCache.IsRevoked(claims.ID) {
		return nil, interrors.ErrTokenRevoked
	}
	if _, err := m.userRepo.GetByID(claims.Subject); err != nil {
		return nil, interrors.Wrapf(interrors.ErrInvalidToken, "[Manager.Verify] unknown subject %s", claims.Subject)
	}
	return claims, nil
}

// Logout revokes the access token and the refresh token of its owner. An
// expired access token is still accepted so that stale clients can sign out.
func (m *Manager) Logout(rawToken string) error {
	claims, err := m.parse(rawToken, jwt.WithoutClaimsValidation())
	if err != nil {
		return err
	}
	if claims.ID != "" {
		if err := m.revokedCache.Add(claims.ID, claims.ExpiresAt); err != nil {
			return errors.Wrap(err, "[Manager.Logout] revoke access token")
		}
	}
	m.revokedCache.Cleanup()
	return m.refreshManager.Revoke(claims.Subject)
}

func (m *Manager) grant(user *users.User) (*Grant, error) {
	accessToken, err := m.CreateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := m.refreshManager.Create(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.grant] create refresh token")
	}
	return &Grant{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(m.accessTokenExpiry.Seconds()),
		User:         user,
	}, nil
}

// CreateAccessToken signs an access token for user.
func (m *Manager) CreateAccessToken(user *users.User) (string, error) {
	now := m.nowFunc()
	claims := jwt.MapClaims{
		"sub":    user.ID,                             // Unique user ID
		"userId": user.UserID,                         // Sign-in identifier
		"name":   user.DisplayName(),                  // Display name
		"role":   string(user.Role),                   // Console role
		"iat":    now.Unix(),                          // Issued At
		"exp":    now.Add(m.accessTokenExpiry).Unix(), // Expiry
		"jti":    uuid.New().String(),                 // Unique token ID for revocation
	}
	if user.Email != "" {
		claims["email"] = user.Email
	}

	signed, err := m.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.CreateAccessToken] Sign")
	}
	return signed, nil
}

func (m *Manager) parse(rawToken string, opts ...jwt.ParserOption) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, interrors.ErrInvalidToken
	}

	opts = append(opts, jwt.WithValidMethods([]string{m.signer.GetSigningMethod().Alg()}))
	token, err := jwt.Parse(rawToken, m.signer.GetVerificationKey, opts...)
	if err != nil || !token.Valid {
		return nil, errors.Wrap(interrors.ErrInvalidToken, errorText(err))
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(interrors.ErrInvalidToken, "error extracting claims from token")
	}

	claims := &Claims{}
	claims.ID, _ = mc["jti"].(string)
	claims.Subject, _ = mc["sub"].(string)
	claims.UserID, _ = mc["userId"].(string)
	claims.Name, _ = mc["name"].(string)
	claims.Role, _ = mc["role"].(string)
	claims.Email, _ = mc["email"].(string)
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		claims.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	if claims.Subject == "" {
		return nil, errors.Wrap(interrors.ErrInvalidToken, "missing subject")
	}
	return claims, nil
}

func errorText(err error) string {
	if err == nil {
		return "token is not valid"
	}
	return err.Error()
}
