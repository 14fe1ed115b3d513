package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/gov-console/internal/config"
	"github.com/jrsteele09/gov-console/internal/logging"
	"github.com/jrsteele09/gov-console/metrics"
	"github.com/jrsteele09/gov-console/mockapi"
	"github.com/jrsteele09/gov-console/token"
	refreshrepofake "github.com/jrsteele09/gov-console/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/gov-console/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(os.Stderr, c.GetLogLevel(), c.GetEnv())
	displayAppname(c.GetAppName())

	handler, err := newHandler(c)
	if err != nil {
		return err
	}

	server := &http.Server{Addr: c.GetPort(), Handler: handler}
	failed := make(chan error, 1)
	go func() { failed <- listenAndServe(server) }()

	if err := waitForStopSignal(failed); err != nil {
		return err
	}
	return shutdown(server)
}

func newHandler(c config.Config) (http.Handler, error) {
	userRepo := fakeuserrepo.NewFakeUserRepo()
	if err := mockapi.SeedUsers(userRepo, mockapi.DefaultAccounts(), time.Now()); err != nil {
		return nil, err
	}

	tokens, err := token.New(userRepo, refreshrepofake.NewFakeRefreshTokenRepo(),
		token.NewHMACSigner(c.GetTokenSecret()),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
	)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics, err := metrics.NewHTTP(registry)
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(c.GetAPIBaseURL())
	if err != nil {
		return nil, fmt.Errorf("API_BASE_URL: %w", err)
	}

	api, err := mockapi.New(userRepo, tokens,
		mockapi.WithBasePath(base.Path),
		mockapi.WithEnv(c.GetEnv()),
		mockapi.WithHTTPMetrics(httpMetrics),
	)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(registry))
	mux.Handle("/", api)
	return mux, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal(failed <-chan error) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case <-stop:
		return nil
	case err := <-failed:
		return err
	}
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
