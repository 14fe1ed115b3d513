package controller

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/gov-console/session"
)

// CredentialPolicy is the local check applied before a login is sent.
type CredentialPolicy struct {
	MinUserIDLength   int
	MinPasswordLength int
}

// DefaultCredentialPolicy matches the sign-in form of the console.
var DefaultCredentialPolicy = CredentialPolicy{MinUserIDLength: 3, MinPasswordLength: 6}

// Check returns a KindInvalidCredentials error describing the first
// violation, or nil.
func (p CredentialPolicy) Check(userID, password string) error {
	userID = strings.TrimSpace(userID)
	switch {
	case userID == "":
		return session.NewAuthError(session.KindInvalidCredentials, "Please input your User ID", nil)
	case len([]rune(userID)) < p.MinUserIDLength:
		return session.NewAuthError(session.KindInvalidCredentials,
			fmt.Sprintf("User ID must be at least %d characters", p.MinUserIDLength), nil)
	case password == "":
		return session.NewAuthError(session.KindInvalidCredentials, "Please input your password", nil)
	case len([]rune(password)) < p.MinPasswordLength:
		return session.NewAuthError(session.KindInvalidCredentials,
			fmt.Sprintf("Password must be at least %d characters", p.MinPasswordLength), nil)
	}
	return nil
}
