package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/pkg/errors"
)

// NowTimeFunc is the default clock of new managers.
var NowTimeFunc = time.Now

const (
	DefaultTokenLength = 32 // bytes, 256 bits
	DefaultExpiry      = 7 * 24 * time.Hour
)

// Manager handles refresh token creation, validation, and rotation. Each
// user holds at most one live refresh token.
type Manager struct {
	repo    Repo
	length  int
	expiry  time.Duration
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

// WithNowTime overrides the clock used for issue and expiry times.
func WithNowTime(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, expiry time.Duration, options ...ManagerOption) *Manager {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	m := &Manager{
		repo:    repo,
		length:  DefaultTokenLength,
		expiry:  expiry,
		nowFunc: NowTimeFunc,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Create generates a new refresh token for userID, replacing any previous one.
func (m *Manager) Create(userID string) (string, error) {
	if err := m.Revoke(userID); err != nil {
		return "", err
	}

	tokenBytes := make([]byte, m.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[Manager.Create] rand.Read")
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    m.nowFunc(),
	}); err != nil {
		return "", errors.Wrap(err, "[Manager.Create] store refresh token")
	}
	return tokenStr, nil
}

// Rotate consumes token and issues its replacement. An unknown or expired
// token is rejected and, when expired, removed.
func (m *Manager) Rotate(token string) (userID, next string, err error) {
	rt, err := m.repo.Get(token)
	if err != nil {
		return "", "", interrors.ErrInvalidRefreshToken
	}
	if m.IsExpired(rt) {
		_ = m.repo.Delete(token)
		return "", "", interrors.ErrRefreshTokenExpired
	}

	next, err = m.Create(rt.UserID)
	if err != nil {
		return "", "", err
	}
	return rt.UserID, next, nil
}

// Revoke removes the refresh token of userID, if any.
func (m *Manager) Revoke(userID string) error {
	existing, err := m.repo.GetByUserID(userID)
	if err != nil || existing == nil {
		return nil
	}
	if err := m.repo.Delete(existing.Token); err != nil {
		return errors.Wrap(err, "[Manager.Revoke] delete existing refresh token")
	}
	return nil
}

// IsExpired checks if a refresh token has outlived the configured expiry.
func (m *Manager) IsExpired(rt *StoredRefreshToken) bool {
	return m.nowFunc().Sub(rt.Iat) > m.expiry
}
