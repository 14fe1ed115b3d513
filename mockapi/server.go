package mockapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/gov-console/metrics"
	"github.com/jrsteele09/gov-console/token"
	"github.com/jrsteele09/gov-console/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Server is a development stand-in for the registry API. It issues real
// signed tokens so that the console's session lifecycle can be exercised
// end to end.
type Server struct {
	env       string // Environment (e.g., "DEV", "PROD")
	basePath  string
	mux       *http.ServeMux
	routes    []string
	tokens    *token.Manager
	users     users.UserRepo
	companies []Company
	metrics   *metrics.HTTP
	logger    zerolog.Logger
}

type Option func(*Server)

// WithBasePath mounts every route under path, e.g. "/api".
func WithBasePath(path string) Option {
	return func(s *Server) {
		s.basePath = strings.TrimRight(path, "/")
	}
}

func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func WithHTTPMetrics(m *metrics.HTTP) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func WithCompanies(companies []Company) Option {
	return func(s *Server) {
		s.companies = companies
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(userRepo users.UserRepo, tokens *token.Manager, options ...Option) (*Server, error) {
	if userRepo == nil {
		return nil, errors.New("[mockapi.New] user repo is required")
	}
	if tokens == nil {
		return nil, errors.New("[mockapi.New] token manager is required")
	}

	s := &Server{
		mux:       http.NewServeMux(),
		tokens:    tokens,
		users:     userRepo,
		companies: DefaultPendingCompanies(),
		logger:    log.With().Str("component", "mockapi").Logger(),
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RegisterRouteFunc registers handler under "METHOD /path", prefixed with the
// base path.
func (s *Server) RegisterRouteFunc(method, route string, handler http.HandlerFunc) {
	pattern := method + " " + s.basePath + route
	s.routes = append(s.routes, pattern)

	var h http.Handler = handler
	if s.metrics != nil {
		h = s.metrics.Wrap(route, h)
	}
	s.mux.Handle(pattern, h)
}

// Routes lists the registered patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		s.logRoute(parts[0], parts[1])
	}
}

func (s *Server) logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	s.logger.Info().Msgf("[%s] %s", color+paddedMethod+ResetColor, path)
}
