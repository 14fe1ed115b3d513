package mockapi

import (
	"net/http"

	"github.com/jrsteele09/gov-console/exchange"
)

const (
	PendingRoute = "/gov/pending"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc(http.MethodPost, exchange.LoginPath, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc(http.MethodPost, exchange.RefreshPath, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc(http.MethodPost, exchange.LogoutPath, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc(http.MethodGet, PendingRoute, ChainMiddleware(s.PendingHandler(), s.APIMiddleware(s.RequireAuth())...))
}
