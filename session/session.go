// Package session defines the authenticated-principal record held by the
// console, the controller state built around it, and the typed failures of
// the credential exchange.
package session

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// User is the principal metadata returned by the registry backend.
type User struct {
	ID          string `json:"id"`               // Backend identifier of the principal
	LoginID     string `json:"userId,omitempty"` // Identifier typed on the sign-in form
	DisplayName string `json:"name,omitempty"`   // Human readable name
	Role        string `json:"role,omitempty"`   // Optional role name
	Email       string `json:"email,omitempty"`  // Optional contact address
}

// IsZero reports whether no user record is present.
func (u User) IsZero() bool {
	return u == User{}
}

// Session is the unit of authentication state. AccessToken and User are
// either both present or both absent.
type Session struct {
	AccessToken  string    // Opaque bearer credential
	RefreshToken string    // Opaque renewal credential, empty when not issued
	User         User      // Principal metadata
	IssuedAt     time.Time // Diagnostic only, expiry is enforced by the server
}

// Validate checks the token/user pairing invariant for a session that is
// about to become the current one.
func (s *Session) Validate() error {
	if s == nil {
		return errors.New("[Session.Validate] session is nil")
	}
	hasToken := strings.TrimSpace(s.AccessToken) != ""
	hasUser := strings.TrimSpace(s.User.ID) != ""
	if !hasToken {
		return errors.New("[Session.Validate] access token is required")
	}
	if !hasUser {
		return errors.New("[Session.Validate] user id is required")
	}
	if strings.TrimSpace(s.User.DisplayName) == "" {
		return errors.New("[Session.Validate] user display name is required")
	}
	return nil
}

// HasRefreshToken reports whether the session can be renewed.
func (s *Session) HasRefreshToken() bool {
	return s != nil && s.RefreshToken != ""
}

// Clone returns a copy that shares no state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Renewed merges the result of a renewal into the current session: the access
// token is replaced, the refresh token and user are replaced only when the
// renewal carried new ones.
func (s *Session) Renewed(next *Session) *Session {
	merged := s.Clone()
	if merged == nil {
		return next.Clone()
	}
	if next == nil {
		return merged
	}
	merged.AccessToken = next.AccessToken
	if next.RefreshToken != "" {
		merged.RefreshToken = next.RefreshToken
	}
	if !next.User.IsZero() {
		merged.User = next.User
	}
	if !next.IssuedAt.IsZero() {
		merged.IssuedAt = next.IssuedAt
	}
	return merged
}

// Equal compares the persisted fields of two sessions.
func (s *Session) Equal(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.AccessToken == other.AccessToken &&
		s.RefreshToken == other.RefreshToken &&
		s.User == other.User &&
		s.IssuedAt.Equal(other.IssuedAt)
}
