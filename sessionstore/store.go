// Package sessionstore persists the current console session as three named
// slots (access token, refresh token, user record) under a private namespace.
package sessionstore

import (
	"encoding/json"
	"time"

	"github.com/jrsteele09/gov-console/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultNamespace = "gov"

	accessTokenSlot  = "auth_token"
	refreshTokenSlot = "refresh_token"
	userSlot         = "user_data"
)

// Store is the persistence contract used by the session controller.
type Store interface {
	// Save writes the whole session or nothing.
	Save(s *session.Session) error
	// Load returns the persisted session. Missing, partial and malformed
	// records all report ok == false.
	Load() (s *session.Session, ok bool)
	// Clear removes every slot of the record.
	Clear() error
}

// userRecord is the JSON layout of the user slot.
type userRecord struct {
	session.User
	IssuedAt time.Time `json:"issued_at"`
}

// SlotStore implements Store over any Slots backend.
type SlotStore struct {
	slots     Slots
	namespace string
	logger    zerolog.Logger
}

var _ Store = (*SlotStore)(nil)

// Option configures a SlotStore.
type Option func(*SlotStore)

// WithNamespace sets the slot key prefix (default "gov").
func WithNamespace(namespace string) Option {
	return func(s *SlotStore) {
		s.namespace = namespace
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *SlotStore) {
		s.logger = logger
	}
}

// New creates a SlotStore on top of the given backend.
func New(slots Slots, options ...Option) (*SlotStore, error) {
	if slots == nil {
		return nil, errors.New("[sessionstore.New] slots backend is required")
	}
	s := &SlotStore{
		slots:     slots,
		namespace: DefaultNamespace,
		logger:    log.With().Str("component", "sessionstore").Logger(),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.namespace == "" {
		return nil, errors.New("[sessionstore.New] namespace is required")
	}
	return s, nil
}

// Key returns the fully qualified key of a slot, e.g. "gov_auth_token".
func (s *SlotStore) Key(slot string) string {
	return s.namespace + "_" + slot
}

func (s *SlotStore) allKeys() []string {
	return []string{s.Key(accessTokenSlot), s.Key(refreshTokenSlot), s.Key(userSlot)}
}

func (s *SlotStore) Save(sess *session.Session) error {
	if err := sess.Validate(); err != nil {
		return errors.Wrap(err, "[SlotStore.Save] invalid session")
	}

	userJSON, err := json.Marshal(userRecord{User: sess.User, IssuedAt: sess.IssuedAt})
	if err != nil {
		return errors.Wrap(err, "[SlotStore.Save] encode user")
	}

	puts := map[string]string{
		s.Key(accessTokenSlot): sess.AccessToken,
		s.Key(userSlot):        string(userJSON),
	}
	var deletes []string
	if sess.RefreshToken != "" {
		puts[s.Key(refreshTokenSlot)] = sess.RefreshToken
	} else {
		deletes = append(deletes, s.Key(refreshTokenSlot))
	}

	if batch, ok := s.slots.(BatchSlots); ok {
		if err := batch.Apply(puts, deletes); err != nil {
			s.clearAfterFailure(err)
			return errors.Wrap(err, "[SlotStore.Save] apply")
		}
		return nil
	}

	// Slot by slot; any failure leaves no record behind.
	for _, key := range s.allKeys() {
		if value, ok := puts[key]; ok {
			err = s.slots.Put(key, value)
		} else {
			err = s.slots.Delete(key)
		}
		if err != nil {
			s.clearAfterFailure(err)
			return errors.Wrapf(err, "[SlotStore.Save] write %s", key)
		}
	}
	return nil
}

func (s *SlotStore) Load() (*session.Session, bool) {
	values, err := s.snapshot()
	if err != nil {
		return s.discard("read slots", err)
	}
	token, hasToken := values[s.Key(accessTokenSlot)]
	rawUser, hasUser := values[s.Key(userSlot)]
	refresh, hasRefresh := values[s.Key(refreshTokenSlot)]

	if !hasToken && !hasUser {
		if hasRefresh {
			return s.discard("orphaned refresh token", nil)
		}
		return nil, false
	}
	if !hasToken || !hasUser {
		return s.discard("partial record", nil)
	}

	var rec userRecord
	if err := json.Unmarshal([]byte(rawUser), &rec); err != nil {
		return s.discard("decode user record", err)
	}

	sess := &session.Session{
		AccessToken:  token,
		RefreshToken: refresh,
		User:         rec.User,
		IssuedAt:     rec.IssuedAt,
	}
	if err := sess.Validate(); err != nil {
		return s.discard("invalid record", err)
	}
	return sess, true
}

// snapshot reads every slot of the record. Batch backends answer from a
// single read so that a concurrent save cannot mix two records.
func (s *SlotStore) snapshot() (map[string]string, error) {
	if batch, ok := s.slots.(BatchSlots); ok {
		return batch.GetAll(s.allKeys())
	}

	values := make(map[string]string, 3)
	for _, key := range s.allKeys() {
		v, ok, err := s.slots.Get(key)
		if err != nil {
			return nil, errors.Wrapf(err, "[SlotStore.snapshot] read %s", key)
		}
		if ok {
			values[key] = v
		}
	}
	return values, nil
}

func (s *SlotStore) Clear() error {
	if batch, ok := s.slots.(BatchSlots); ok {
		if err := batch.Apply(nil, s.allKeys()); err != nil {
			return errors.Wrap(err, "[SlotStore.Clear] apply")
		}
		return nil
	}

	var firstErr error
	for _, key := range s.allKeys() {
		if err := s.slots.Delete(key); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "[SlotStore.Clear] delete %s", key)
		}
	}
	return firstErr
}

// discard treats an unreadable record as absent and wipes it.
func (s *SlotStore) discard(reason string, cause error) (*session.Session, bool) {
	s.logger.Warn().Err(cause).Str("reason", reason).Msg("Discarding persisted session")
	if err := s.Clear(); err != nil {
		s.logger.Err(err).Msg("Failed to clear discarded session")
	}
	return nil, false
}

func (s *SlotStore) clearAfterFailure(cause error) {
	s.logger.Err(cause).Msg("Session write failed, clearing record")
	if err := s.Clear(); err != nil {
		s.logger.Err(err).Msg("Failed to clear partially written session")
	}
}
