// Package controller owns the console session state machine: it restores the
// persisted session, performs login and logout, applies background renewals
// and tears the session down when the server stops accepting it.
package controller

import (
	"context"
	"strings"
	"sync"

	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/jrsteele09/gov-console/refresh"
	"github.com/jrsteele09/gov-console/session"
	"github.com/jrsteele09/gov-console/sessionstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Exchange is the part of the credential exchange the controller drives
// directly. Renewal goes through the scheduler.
type Exchange interface {
	Login(ctx context.Context, userID, password string) (*session.Session, error)
	NotifyLogout(ctx context.Context, accessToken string)
}

// Scheduler starts the renewal task of an authenticated period.
type Scheduler interface {
	Start(sess *session.Session, handler refresh.Handler) *refresh.Task
}

// Controller is the single owner of the session state. Transitions are
// serialized; readers never block on a network call.
type Controller struct {
	store     sessionstore.Store
	exchange  Exchange
	scheduler Scheduler
	policy    CredentialPolicy
	logger    zerolog.Logger
	subs      subscribers

	// transition lock, held while a transition is applied
	lock      sync.Mutex
	loggingIn bool
	task      *refresh.Task
	epoch     uint64

	stateLock sync.RWMutex
	state     session.State
}

type Option func(*Controller)

func WithCredentialPolicy(p CredentialPolicy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// New creates a controller in the Unknown state. Call Restore to read the
// persisted session.
func New(store sessionstore.Store, exchange Exchange, scheduler Scheduler, options ...Option) (*Controller, error) {
	if store == nil {
		return nil, errors.New("[controller.New] store is required")
	}
	if exchange == nil {
		return nil, errors.New("[controller.New] exchange is required")
	}
	if scheduler == nil {
		return nil, errors.New("[controller.New] scheduler is required")
	}

	c := &Controller{
		store:     store,
		exchange:  exchange,
		scheduler: scheduler,
		policy:    DefaultCredentialPolicy,
		logger:    log.With().Str("component", "controller").Logger(),
		state:     session.Unknown(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Subscribe registers fn for every future transition and returns a function
// that removes it.
func (c *Controller) Subscribe(fn Subscriber) (unsubscribe func()) {
	return c.subs.add(fn)
}

// State returns a snapshot of the current state.
func (c *Controller) State() session.State {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()
	return session.State{Status: c.state.Status, Session: c.state.Session.Clone()}
}

// AccessToken returns the bearer credential of the current session, or "".
func (c *Controller) AccessToken() string {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()
	if !c.state.IsAuthenticated() {
		return ""
	}
	return c.state.Session.AccessToken
}

// CurrentUser returns the signed-in principal.
func (c *Controller) CurrentUser() (session.User, bool) {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()
	if !c.state.IsAuthenticated() {
		return session.User{}, false
	}
	return c.state.Session.User, true
}

// Restore leaves the Unknown state by reading the store. It has no effect once
// the state is known.
func (c *Controller) Restore() session.State {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.currentStatus() != session.StatusUnknown {
		return c.State()
	}

	if sess, ok := c.store.Load(); ok {
		c.logger.Info().Str("user", sess.User.ID).Msg("Restored persisted session")
		c.enterAuthenticatedLocked(sess, CauseStartup)
	} else {
		c.transitionLocked(session.Unauthenticated(), CauseStartup, nil)
	}
	return c.State()
}

// Login validates the credentials locally, exchanges them with the server and
// persists the resulting session. Only one login may be outstanding.
func (c *Controller) Login(ctx context.Context, userID, password string) error {
	userID = strings.TrimSpace(userID)

	c.lock.Lock()
	if c.currentStatus() == session.StatusAuthenticated {
		c.lock.Unlock()
		return interrors.ErrAlreadyAuthenticated
	}
	if c.loggingIn {
		c.lock.Unlock()
		return interrors.ErrLoginInProgress
	}
	if err := c.policy.Check(userID, password); err != nil {
		c.transitionLocked(session.Unauthenticated(), CauseLogin, err)
		c.lock.Unlock()
		return err
	}
	c.loggingIn = true
	epoch := c.epoch
	c.lock.Unlock()

	sess, err := c.exchange.Login(ctx, userID, password)

	c.lock.Lock()
	defer c.lock.Unlock()
	c.loggingIn = false

	if c.epoch != epoch {
		// A logout or an external session change landed while waiting.
		return errors.Wrap(interrors.ErrNotAuthenticated, "[Controller.Login] login superseded")
	}
	if err != nil {
		c.logger.Info().Err(err).Str("user_id", userID).Msg("Login failed")
		c.transitionLocked(session.Unauthenticated(), CauseLogin, err)
		return err
	}
	if err := sess.Validate(); err != nil {
		perr := session.NewAuthError(session.KindProtocolViolation, "incomplete session received from server", err)
		c.transitionLocked(session.Unauthenticated(), CauseLogin, perr)
		return perr
	}
	if err := c.store.Save(sess); err != nil {
		c.clearStoreLocked()
		c.transitionLocked(session.Unauthenticated(), CauseLogin, err)
		return errors.Wrap(err, "[Controller.Login] persist session")
	}

	c.logger.Info().Str("user", sess.User.ID).Msg("Login succeeded")
	c.enterAuthenticatedLocked(sess, CauseLogin)
	return nil
}

// Logout ends the session: the renewal task is stopped, the server is told
// (best effort) and the store is cleared. Calling it when not authenticated
// only makes sure the store is empty.
func (c *Controller) Logout(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	// any login still waiting on the server is discarded
	c.epoch++

	c.stateLock.RLock()
	current := c.state
	c.stateLock.RUnlock()

	if !current.IsAuthenticated() {
		err := c.clearStoreLocked()
		if current.Status == session.StatusUnknown {
			c.transitionLocked(session.Unauthenticated(), CauseLogout, nil)
		}
		return err
	}

	c.stopTaskLocked()
	c.exchange.NotifyLogout(ctx, current.Session.AccessToken)
	err := c.clearStoreLocked()
	c.transitionLocked(session.Unauthenticated(), CauseLogout, nil)
	c.logger.Info().Str("user", current.Session.User.ID).Msg("Logged out")
	return err
}

// ForceInvalidate tears the session down without telling the server, e.g.
// after a 401 from any API call. It is a no-op unless authenticated, apart
// from clearing the store.
func (c *Controller) ForceInvalidate(reason error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.currentStatus() != session.StatusAuthenticated {
		c.clearStoreLocked()
		return
	}
	c.logger.Warn().Err(reason).Msg("Session invalidated")
	c.invalidateLocked(CauseForcedInvalidation,
		session.NewAuthError(session.KindForcedInvalidation, "session invalidated", reason))
}

// Sync re-reads the store after it was changed outside this controller, for
// example by another console process.
func (c *Controller) Sync() {
	c.lock.Lock()
	defer c.lock.Unlock()

	sess, ok := c.store.Load()

	c.stateLock.RLock()
	current := c.state
	c.stateLock.RUnlock()

	switch {
	case ok && current.IsAuthenticated() && sess.Equal(current.Session):
		return
	case ok:
		c.logger.Info().Str("user", sess.User.ID).Msg("Adopting session written elsewhere")
		c.enterAuthenticatedLocked(sess, CauseSync)
	case current.IsAuthenticated():
		c.invalidateLocked(CauseSync,
			session.NewAuthError(session.KindForcedInvalidation, "session removed elsewhere", nil))
	case current.Status == session.StatusUnknown:
		c.transitionLocked(session.Unauthenticated(), CauseSync, nil)
	}
}

// RenewNow renews the current session immediately, sharing any renewal that
// is already running.
func (c *Controller) RenewNow(ctx context.Context) error {
	c.lock.Lock()
	task := c.task
	authenticated := c.currentStatus() == session.StatusAuthenticated
	c.lock.Unlock()

	if !authenticated {
		return interrors.ErrNotAuthenticated
	}
	if task == nil {
		return interrors.ErrNotRenewable
	}
	return task.RenewNow(ctx)
}

// Close stops background work and keeps the persisted session, for process
// shutdown.
func (c *Controller) Close() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.stopTaskLocked()
}

func (c *Controller) currentStatus() session.Status {
	c.stateLock.RLock()
	defer c.stateLock.RUnlock()
	return c.state.Status
}

func (c *Controller) enterAuthenticatedLocked(sess *session.Session, cause Cause) {
	c.stopTaskLocked()
	c.epoch++
	c.task = c.scheduler.Start(sess, &renewalHandler{controller: c, epoch: c.epoch})
	c.transitionLocked(session.Authenticated(sess.Clone()), cause, nil)
}

func (c *Controller) invalidateLocked(cause Cause, err error) {
	c.stopTaskLocked()
	c.epoch++
	c.clearStoreLocked()
	c.transitionLocked(session.Unauthenticated(), cause, err)
}

func (c *Controller) stopTaskLocked() {
	c.task.Stop()
	c.task = nil
}

func (c *Controller) clearStoreLocked() error {
	if err := c.store.Clear(); err != nil {
		c.logger.Err(err).Msg("Failed to clear session store")
		return errors.Wrap(err, "[Controller] clear store")
	}
	return nil
}

// transitionLocked publishes the new state and notifies subscribers in
// registration order.
func (c *Controller) transitionLocked(next session.State, cause Cause, err error) {
	c.stateLock.Lock()
	c.state = next
	c.stateLock.Unlock()

	event := Event{State: c.State(), Cause: cause, Err: err}
	for _, sub := range c.subs.snapshot() {
		sub.fn(event)
	}
}
