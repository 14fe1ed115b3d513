// Package exchange performs the credential round trips of the console:
// login, logout notification and token renewal.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/gov-console/internal/utils"
	"github.com/jrsteele09/gov-console/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	OpLogin  = "login"
	OpRenew  = "renew"
	OpLogout = "logout"

	LoginPath   = "/gov/auth/login"
	LogoutPath  = "/gov/auth/logout"
	RefreshPath = "/gov/auth/refresh"

	RequestIDHeader = "X-Request-ID"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Observer is told about every exchange call, e.g. to record metrics.
type Observer func(op string, err error, elapsed time.Duration)

// NowTimeFunc is the clock used to stamp sessions.
type NowTimeFunc func() time.Time

// Client talks to the registry auth endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	observer   Observer
	logger     zerolog.Logger
	nowTime    NowTimeFunc
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithRateLimiter throttles login and renewal calls.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(cl *Client) {
		cl.limiter = l
	}
}

func WithObserver(o Observer) Option {
	return func(cl *Client) {
		cl.observer = o
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func WithNowTime(f NowTimeFunc) Option {
	return func(cl *Client) {
		cl.nowTime = f
	}
}

// PerMinute returns a limiter allowing n calls per minute with a burst of n.
func PerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

// New creates a Client for the API rooted at baseURL, e.g.
// "https://registry.example.com/api".
func New(baseURL string, options ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "[exchange.New] parse base url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("[exchange.New] unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("[exchange.New] base url host is required")
	}

	c := &Client{
		baseURL:    u.String(),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.With().Str("component", "exchange").Logger(),
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.httpClient == nil {
		return nil, errors.New("[exchange.New] http client is required")
	}
	return c, nil
}

// Login exchanges credentials for a session. Failures are *session.AuthError
// values; a response without an access token never yields a session.
func (c *Client) Login(ctx context.Context, userID, password string) (sess *session.Session, err error) {
	defer c.observe(OpLogin, c.nowTime(), &err)

	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, LoginPath, LoginRequest{UserID: userID, Password: password}, "", false)
	if err != nil {
		return nil, err
	}

	sess, err = c.toSession(resp)
	if err != nil {
		return nil, err
	}
	if sess.User.IsZero() {
		sess.User = session.User{ID: userID, LoginID: userID, DisplayName: userID}
	}
	return sess, nil
}

// Renew trades a refresh token for a new access token. The returned session
// may carry no user and no refresh token; callers merge it into the current
// one with Session.Renewed.
func (c *Client) Renew(ctx context.Context, refreshToken string) (sess *session.Session, err error) {
	defer c.observe(OpRenew, c.nowTime(), &err)

	if refreshToken == "" {
		return nil, session.NewAuthError(session.KindSessionExpired, "no refresh token", nil)
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, RefreshPath, RefreshRequest{RefreshToken: refreshToken}, "", true)
	if err != nil {
		return nil, err
	}
	return c.toSession(resp)
}

// NotifyLogout tells the server the session is over. It is best effort:
// failures are logged and otherwise ignored.
func (c *Client) NotifyLogout(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}

	var err error
	defer c.observe(OpLogout, c.nowTime(), &err)

	_, err = c.call(ctx, LogoutPath, nil, accessToken, false)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Logout notification failed, continuing with local cleanup")
	}
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return session.NewAuthError(session.KindNetwork, "too many attempts, try again later", err)
	}
	return nil
}

func (c *Client) observe(op string, start time.Time, err *error) {
	if c.observer != nil {
		c.observer(op, *err, c.nowTime().Sub(start))
	}
}

// call posts body and interprets the reply. Renewal changes how 401 and 403
// are classified.
func (c *Client) call(ctx context.Context, path string, body any, bearer string, renewal bool) (*Response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, session.NewAuthError(session.KindNetwork, "encode request", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, session.NewAuthError(session.KindNetwork, "build request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	logger := c.logger.With().Str("path", path).Str("request_id", requestID).Logger()

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Debug().Err(err).Msg("Auth request failed")
		return nil, session.NewAuthError(session.KindNetwork, "unable to reach the server", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, statusError(session.KindNetwork, "read response", httpResp.StatusCode, err)
	}
	logger.Debug().Int("status", httpResp.StatusCode).Msg("Auth response")

	var resp Response
	decodeErr := json.Unmarshal(raw, &resp)
	status := httpResp.StatusCode

	switch {
	case status >= 500:
		return nil, statusError(session.KindNetwork, fmt.Sprintf("server error (status %d)", status), status, nil)
	case status >= 400:
		kind := session.KindInvalidCredentials
		if renewal && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
			kind = session.KindSessionExpired
		}
		msg := utils.FirstNonEmpty(strings.TrimSpace(resp.Message), fmt.Sprintf("request failed with status %d", status))
		return nil, statusError(kind, msg, status, nil)
	case status < 200 || status >= 300:
		return nil, statusError(session.KindNetwork, fmt.Sprintf("unexpected status %d", status), status, nil)
	}

	if body == nil {
		// logout has no meaningful reply
		return &resp, nil
	}
	if decodeErr != nil {
		return nil, statusError(session.KindNetwork, "malformed response from server", status, decodeErr)
	}
	if resp.Success != nil && !*resp.Success {
		return nil, statusError(session.KindInvalidCredentials, utils.FirstNonEmpty(resp.Message, "login failed"), status, nil)
	}
	return &resp, nil
}

func statusError(kind session.Kind, msg string, status int, cause error) *session.AuthError {
	e := session.NewAuthError(kind, msg, cause)
	e.Status = status
	return e
}

func (c *Client) toSession(resp *Response) (*session.Session, error) {
	token := resp.accessToken()
	if token == "" {
		return nil, session.NewAuthError(session.KindProtocolViolation, "no authentication token received from server", nil)
	}

	sess := &session.Session{
		AccessToken:  token,
		RefreshToken: resp.refreshToken(),
		IssuedAt:     c.nowTime(),
	}

	claimUser, issuedAt, hasClaims := tokenClaims(token)
	if hasClaims && !issuedAt.IsZero() {
		sess.IssuedAt = issuedAt
	}

	if u := resp.user(); u != nil {
		sess.User = session.User{
			ID:          u.identity(),
			LoginID:     u.UserID.String(),
			DisplayName: utils.FirstNonEmpty(strings.TrimSpace(u.Name), u.UserID.String(), u.identity()),
			Role:        u.Role,
			Email:       u.Email,
		}
	} else if hasClaims {
		sess.User = claimUser
	}
	return sess, nil
}
