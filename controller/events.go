package controller

import (
	"sync"

	"github.com/jrsteele09/gov-console/session"
)

// Cause names what triggered a transition.
type Cause string

const (
	CauseStartup            Cause = "startup"
	CauseLogin              Cause = "login"
	CauseRenewal            Cause = "renewal"
	CauseLogout             Cause = "logout"
	CauseForcedInvalidation Cause = "forced_invalidation"
	CauseSync               Cause = "sync"
)

// Event is delivered to subscribers after every transition.
type Event struct {
	State session.State
	Cause Cause
	Err   error // Failure behind the transition, if any
}

// Subscriber is called synchronously, while the transition is still being
// applied. It may read the controller but must not call Login, Logout,
// ForceInvalidate, Restore or Sync.
type Subscriber func(Event)

type subscription struct {
	id int
	fn Subscriber
}

type subscribers struct {
	lock   sync.Mutex
	nextID int
	list   []subscription
}

func (s *subscribers) add(fn Subscriber) func() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.nextID++
	id := s.nextID
	s.list = append(s.list, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subscribers) remove(id int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for i, sub := range s.list {
		if sub.id == id {
			s.list = append(s.list[:i:i], s.list[i+1:]...)
			return
		}
	}
}

func (s *subscribers) snapshot() []subscription {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]subscription(nil), s.list...)
}
