package session

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication failure.
type Kind int

const (
	// KindInvalidCredentials is user-correctable: the server rejected the
	// credentials or the input failed the local policy.
	KindInvalidCredentials Kind = iota + 1
	// KindNetwork is transient: no response or an unreadable one.
	KindNetwork
	// KindProtocolViolation means the server reported success but omitted a
	// required field.
	KindProtocolViolation
	// KindSessionExpired means the server no longer accepts the session.
	KindSessionExpired
	// KindForcedInvalidation is a system triggered teardown.
	KindForcedInvalidation
)

// Sentinels usable with errors.Is against an *AuthError.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNetwork            = errors.New("network failure")
	ErrProtocolViolation  = errors.New("protocol violation")
	ErrSessionExpired     = errors.New("session expired")
	ErrForcedInvalidation = errors.New("session invalidated")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidCredentials:
		return ErrInvalidCredentials
	case KindNetwork:
		return ErrNetwork
	case KindProtocolViolation:
		return ErrProtocolViolation
	case KindSessionExpired:
		return ErrSessionExpired
	case KindForcedInvalidation:
		return ErrForcedInvalidation
	}
	return nil
}

func (k Kind) String() string {
	if s := k.sentinel(); s != nil {
		return s.Error()
	}
	return "unknown"
}

// AuthError is the typed result of a failed login or renewal.
type AuthError struct {
	Kind    Kind
	Message string // Message suitable for the sign-in form
	Status  int    // HTTP status when one was received
	Err     error  // Underlying cause, if any
}

func NewAuthError(kind Kind, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Err: cause}
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels, so errors.Is(err, session.ErrNetwork) works
// through wrapping.
func (e *AuthError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf extracts the Kind of an error chain, or 0 when it holds no AuthError.
func KindOf(err error) Kind {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
