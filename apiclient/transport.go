package apiclient

import (
	"io"
	"net/http"
	"strings"

	interrors "github.com/jrsteele09/gov-console/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// Invalidator is told when the server stops accepting the session.
type Invalidator interface {
	ForceInvalidate(reason error)
}

// TokenSource yields the current access token, or "" when signed out.
type TokenSource interface {
	AccessToken() string
}

// InvalidatingTransport watches every response for 401 and 403 and tears the
// session down when it sees one. When Tokens is set, a rejection of a bearer
// token that has since been renewed or replaced is passed through untouched.
type InvalidatingTransport struct {
	Base        http.RoundTripper
	Invalidator Invalidator
	Tokens      TokenSource
}

func (t *InvalidatingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	if t.superseded(req) {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	reason := errors.Errorf("%s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
	if t.Invalidator != nil {
		t.Invalidator.ForceInvalidate(reason)
	}
	return nil, errors.Wrap(interrors.ErrSessionExpired, reason.Error())
}

// superseded reports whether req carried a bearer token other than the
// current one.
func (t *InvalidatingTransport) superseded(req *http.Request) bool {
	if t.Tokens == nil {
		return false
	}
	sent, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok || sent == "" {
		return false
	}
	return sent != t.Tokens.AccessToken()
}

// tokenSource adapts a TokenSource to oauth2 so that oauth2.Transport sets
// the bearer header.
type tokenSource struct {
	src TokenSource
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	token := s.src.AccessToken()
	if token == "" {
		return nil, interrors.ErrNotAuthenticated
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

// NewTransport stacks bearer authentication on top of invalidation
// detection.
func NewTransport(base http.RoundTripper, tokens TokenSource, invalidator Invalidator) http.RoundTripper {
	return &oauth2.Transport{
		Source: tokenSource{src: tokens},
		Base:   &InvalidatingTransport{Base: base, Invalidator: invalidator, Tokens: tokens},
	}
}
