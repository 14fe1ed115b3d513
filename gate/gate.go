// Package gate decides whether a console view is rendered or the user is
// sent elsewhere, based on the session state.
package gate

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/gov-console/internal/config"
	"github.com/jrsteele09/gov-console/session"
	"github.com/pkg/errors"
)

// ReturnParam carries the originally requested location to the sign-in view.
const ReturnParam = "from"

type Action int

const (
	// ActionLoading means the session state is not known yet.
	ActionLoading Action = iota
	ActionRender
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionLoading:
		return "loading"
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	}
	return "invalid"
}

// Decision is the outcome for one navigation. Location is set only for
// ActionRedirect.
type Decision struct {
	Action   Action
	Location string
}

type Gate struct {
	routes      Routes
	signInPath  string
	landingPath string
}

type Option func(*Gate)

func WithRoutes(r Routes) Option {
	return func(g *Gate) {
		g.routes = r
	}
}

func New(cfg config.RouteConfig, options ...Option) (*Gate, error) {
	if cfg == nil {
		return nil, errors.New("[gate.New] route config is required")
	}
	g := &Gate{
		routes:      DefaultRoutes(),
		signInPath:  cfg.GetSignInPath(),
		landingPath: cfg.GetLandingPath(),
	}
	for _, opt := range options {
		opt(g)
	}
	if !isLocalPath(g.signInPath) || !isLocalPath(g.landingPath) {
		return nil, errors.New("[gate.New] sign-in and landing paths must be local paths")
	}
	if g.routes == nil {
		return nil, errors.New("[gate.New] routes are required")
	}
	routes := make(Routes, len(g.routes)+1)
	for path, requires := range g.routes {
		routes[cleanPath(path)] = requires
	}
	// the sign-in view is always reachable without a session
	routes[cleanPath(g.signInPath)] = false
	g.routes = routes
	return g, nil
}

// Check decides for the requested location using the route table.
func (g *Gate) Check(state session.State, requested string) Decision {
	return g.Decide(state, g.routes.RequiresAuth(requested), requested)
}

// Decide applies the access rules to one view. requested is the location
// being visited, including its query.
func (g *Gate) Decide(state session.State, requiresAuth bool, requested string) Decision {
	switch {
	case state.Status == session.StatusUnknown:
		return Decision{Action: ActionLoading}
	case requiresAuth && !state.IsAuthenticated():
		return Decision{Action: ActionRedirect, Location: g.SignInLocation(requested)}
	case !requiresAuth && state.IsAuthenticated():
		return Decision{Action: ActionRedirect, Location: g.ReturnTarget(requested)}
	}
	return Decision{Action: ActionRender}
}

// SignInLocation is the sign-in path carrying requested as return-to value.
func (g *Gate) SignInLocation(requested string) string {
	if !isLocalPath(requested) || cleanPath(requested) == cleanPath(g.signInPath) {
		return g.signInPath
	}
	return g.signInPath + "?" + url.Values{ReturnParam: {requested}}.Encode()
}

// ReturnTarget returns where to go after signing in: the return-to value of
// signInLocation when it is a safe local path, else the landing path.
func (g *Gate) ReturnTarget(signInLocation string) string {
	u, err := url.Parse(signInLocation)
	if err != nil {
		return g.landingPath
	}
	from := u.Query().Get(ReturnParam)
	if !isLocalPath(from) || cleanPath(from) == cleanPath(g.signInPath) {
		return g.landingPath
	}
	return from
}

// isLocalPath rejects anything that could leave the console: absolute URLs,
// scheme-relative "//host" forms and backslash tricks.
func isLocalPath(p string) bool {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.ContainsAny(p, "\\\r\n") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
