// Package refresh renews an authenticated session in the background.
package refresh

import (
	"context"
	"sync"
	"time"

	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/jrsteele09/gov-console/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const DefaultInterval = 30 * time.Minute

// Renewer trades a refresh token for a fresh session.
type Renewer interface {
	Renew(ctx context.Context, refreshToken string) (*session.Session, error)
}

// Handler receives the outcome of each renewal. Neither method is called
// after the task has been stopped and the in-flight call has noticed it.
type Handler interface {
	// Renewed is given the raw renewal result, to be merged into the current
	// session by the owner.
	Renewed(next *session.Session) error
	// RenewalFailed reports a failed renewal. The session should be treated
	// as over; the task does not retry.
	RenewalFailed(err error)
}

// Scheduler holds the renewal policy and starts one Task per authenticated
// period.
type Scheduler struct {
	interval time.Duration
	renewer  Renewer
	logger   zerolog.Logger
}

type Option func(*Scheduler)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func New(renewer Renewer, interval time.Duration, options ...Option) (*Scheduler, error) {
	if renewer == nil {
		return nil, errors.New("[refresh.New] renewer is required")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		interval: interval,
		renewer:  renewer,
		logger:   log.With().Str("component", "refresh").Logger(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Interval returns the time between background renewals.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start launches the renewal task for sess. It returns nil when the session
// carries no refresh token, since there is nothing to renew.
func (s *Scheduler) Start(sess *session.Session, handler Handler) *Task {
	if !sess.HasRefreshToken() || handler == nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		scheduler:    s,
		handler:      handler,
		ctx:          ctx,
		cancel:       cancel,
		refreshToken: sess.RefreshToken,
		done:         make(chan struct{}),
	}
	go t.run()
	return t
}

// Task is the renewal loop of one authenticated period. All methods are safe
// on a nil Task.
type Task struct {
	scheduler    *Scheduler
	handler      Handler
	ctx          context.Context
	cancel       context.CancelFunc
	group        singleflight.Group
	lock         sync.Mutex
	refreshToken string
	done         chan struct{}
}

// RenewNow renews immediately. Concurrent callers, including the timer, share
// a single network call and its result. ctx only bounds how long this caller
// waits; the call itself is cancelled by Stop.
func (t *Task) RenewNow(ctx context.Context) error {
	if t == nil {
		return interrors.ErrNotRenewable
	}
	ch := t.group.DoChan("renew", func() (any, error) {
		return nil, t.renew()
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the timer and any in-flight renewal. It does not wait for the
// goroutine to exit, so it may be called from a Handler; use Done for that.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.cancel()
}

// Done is closed once the background goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	if t == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return t.done
}

// Stopped reports whether Stop has been called.
func (t *Task) Stopped() bool {
	return t == nil || t.ctx.Err() != nil
}

func (t *Task) run() {
	defer close(t.done)

	ticker := time.NewTicker(t.scheduler.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			if err := t.RenewNow(t.ctx); err != nil && !errors.Is(err, context.Canceled) {
				t.scheduler.logger.Warn().Err(err).Msg("Background session renewal failed")
			}
		}
	}
}

func (t *Task) renew() error {
	if err := t.ctx.Err(); err != nil {
		return err
	}

	next, err := t.scheduler.renewer.Renew(t.ctx, t.currentRefreshToken())
	if stopped := t.ctx.Err(); stopped != nil {
		return stopped
	}
	if err != nil {
		t.handler.RenewalFailed(err)
		return err
	}
	if next == nil {
		err = session.NewAuthError(session.KindProtocolViolation, "empty renewal result", nil)
		t.handler.RenewalFailed(err)
		return err
	}

	if next.RefreshToken != "" {
		t.lock.Lock()
		t.refreshToken = next.RefreshToken
		t.lock.Unlock()
	}
	if err := t.handler.Renewed(next); err != nil {
		return errors.Wrap(err, "[Task.renew] apply renewal")
	}
	return nil
}

func (t *Task) currentRefreshToken() string {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.refreshToken
}
