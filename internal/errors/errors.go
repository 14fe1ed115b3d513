package errors

import (
	"errors"
	"fmt"
)

// Common error types for the console session subsystem
var (
	// Session state errors
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrLoginInProgress      = errors.New("login already in progress")
	ErrSessionExpired       = errors.New("session expired")
	ErrNotRenewable         = errors.New("session has no refresh token")

	// Storage errors
	ErrCorruptRecord = errors.New("corrupt session record")

	// Dev backend errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserBlocked         = errors.New("user is blocked")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenRevoked        = errors.New("token revoked")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// General errors
	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
