package controller

import (
	"github.com/jrsteele09/gov-console/session"
	"github.com/pkg/errors"
)

var errStaleRenewal = errors.New("renewal belongs to an ended session")

// renewalHandler applies the results of one authenticated period's renewal
// task. Results arriving after that period ended are dropped.
type renewalHandler struct {
	controller *Controller
	epoch      uint64
}

func (h *renewalHandler) Renewed(next *session.Session) error {
	c := h.controller
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.epoch != h.epoch {
		return errStaleRenewal
	}

	current := c.State()
	if !current.IsAuthenticated() {
		return errStaleRenewal
	}

	merged := current.Session.Renewed(next)
	if err := merged.Validate(); err != nil {
		perr := session.NewAuthError(session.KindProtocolViolation, "incomplete session received from server", err)
		c.invalidateLocked(CauseRenewal, perr)
		return perr
	}
	if err := c.store.Save(merged); err != nil {
		c.invalidateLocked(CauseRenewal, err)
		return errors.Wrap(err, "[renewalHandler.Renewed] persist session")
	}

	c.logger.Debug().Str("user", merged.User.ID).Msg("Session renewed")
	c.transitionLocked(session.Authenticated(merged), CauseRenewal, nil)
	return nil
}

func (h *renewalHandler) RenewalFailed(err error) {
	c := h.controller
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.epoch != h.epoch || c.currentStatus() != session.StatusAuthenticated {
		return
	}
	c.logger.Warn().Err(err).Msg("Session renewal failed, signing out")
	c.invalidateLocked(CauseRenewal, err)
}
