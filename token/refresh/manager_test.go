package refresh_test

import (
	"testing"
	"time"

	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/jrsteele09/gov-console/token/refresh"
	refreshrepofake "github.com/jrsteele09/gov-console/token/refresh/repofake"
	"github.com/stretchr/testify/require"
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func newClock() *clock {
	return &clock{now: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
}

func TestCreateReplacesPreviousToken(t *testing.T) {
	repo := refreshrepofake.NewFakeRefreshTokenRepo()
	m := refresh.NewManager(repo, time.Hour, refresh.WithNowTime(newClock().Now))

	first, err := m.Create("user-1")
	require.NoError(t, err)
	require.Len(t, first, 64)

	second, err := m.Create("user-1")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	_, err = repo.Get(first)
	require.Error(t, err)
	stored, err := repo.GetByUserID("user-1")
	require.NoError(t, err)
	require.Equal(t, second, stored.Token)
}

func TestRotate(t *testing.T) {
	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), time.Hour, refresh.WithNowTime(newClock().Now))

	token, err := m.Create("user-1")
	require.NoError(t, err)

	userID, next, err := m.Rotate(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", userID)
	require.NotEqual(t, token, next)

	// the consumed token cannot be replayed
	_, _, err = m.Rotate(token)
	require.ErrorIs(t, err, interrors.ErrInvalidRefreshToken)
}

func TestRotateExpired(t *testing.T) {
	c := newClock()
	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), time.Hour, refresh.WithNowTime(c.Now))

	token, err := m.Create("user-1")
	require.NoError(t, err)

	c.now = c.now.Add(2 * time.Hour)
	_, _, err = m.Rotate(token)
	require.ErrorIs(t, err, interrors.ErrRefreshTokenExpired)

	_, _, err = m.Rotate(token)
	require.ErrorIs(t, err, interrors.ErrInvalidRefreshToken)
}

func TestRevoke(t *testing.T) {
	m := refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), 0)

	token, err := m.Create("user-1")
	require.NoError(t, err)
	require.NoError(t, m.Revoke("user-1"))
	require.NoError(t, m.Revoke("user-1"))

	_, _, err = m.Rotate(token)
	require.ErrorIs(t, err, interrors.ErrInvalidRefreshToken)
}
