package session

// Status enumerates the controller states.
type Status int

const (
	// StatusUnknown is the initial state, before the store has been read.
	StatusUnknown Status = iota
	// StatusAuthenticated means a valid session is held.
	StatusAuthenticated
	// StatusUnauthenticated means there is no session.
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "unknown"
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	}
	return "invalid"
}

// State is a snapshot of the controller. Session is non-nil only when Status
// is StatusAuthenticated.
type State struct {
	Status  Status
	Session *Session
}

func Unknown() State {
	return State{Status: StatusUnknown}
}

func Unauthenticated() State {
	return State{Status: StatusUnauthenticated}
}

func Authenticated(s *Session) State {
	return State{Status: StatusAuthenticated, Session: s}
}

func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated && s.Session != nil
}

// Consistent reports whether the state respects the token/user pairing.
func (s State) Consistent() bool {
	switch s.Status {
	case StatusAuthenticated:
		return s.Session != nil && s.Session.Validate() == nil
	default:
		return s.Session == nil
	}
}
