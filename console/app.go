// Package console wires the session subsystem into the command line client:
// the configured session store, the credential exchange, the renewal
// scheduler, the controller, the access gate and the authorized API client.
package console

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/jrsteele09/gov-console/apiclient"
	"github.com/jrsteele09/gov-console/controller"
	"github.com/jrsteele09/gov-console/exchange"
	"github.com/jrsteele09/gov-console/gate"
	"github.com/jrsteele09/gov-console/internal/config"
	"github.com/jrsteele09/gov-console/metrics"
	"github.com/jrsteele09/gov-console/refresh"
	"github.com/jrsteele09/gov-console/sessionstore"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	sessionFileName = "session.json"
	sessionDBName   = "session.db"
)

type App struct {
	config     config.Config
	slots      sessionstore.Slots
	filePath   string // session document, file backend only
	closers    []io.Closer
	httpClient *http.Client
	logger     zerolog.Logger

	Store      *sessionstore.SlotStore
	Exchange   *exchange.Client
	Controller *controller.Controller
	Gate       *gate.Gate
	API        *apiclient.Client
	Registry   *prometheus.Registry
}

type Option func(*App)

// WithSlots replaces the configured storage backend.
func WithSlots(slots sessionstore.Slots) Option {
	return func(a *App) {
		a.slots = slots
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(a *App) {
		a.httpClient = c
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// New builds the application and restores any persisted session.
func New(cfg config.Config, options ...Option) (app *App, err error) {
	if cfg == nil {
		return nil, errors.New("[console.New] config is required")
	}

	a := &App{
		config:   cfg,
		logger:   log.With().Str("component", "console").Logger(),
		Registry: prometheus.NewRegistry(),
	}
	for _, opt := range options {
		opt(a)
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.slots == nil {
		if a.slots, err = a.openSlots(); err != nil {
			return nil, err
		}
	}
	if cfg.GetStoreKey() != "" {
		key, err := sessionstore.ParseKey(cfg.GetStoreKey())
		if err != nil {
			return nil, errors.Wrap(err, "[console.New] STORE_KEY")
		}
		if a.slots, err = sessionstore.Seal(a.slots, key); err != nil {
			return nil, err
		}
	}

	a.Store, err = sessionstore.New(a.slots,
		sessionstore.WithNamespace(cfg.GetStoreNamespace()),
		sessionstore.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	sessionMetrics, err := metrics.NewSession(a.Registry)
	if err != nil {
		return nil, err
	}

	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: cfg.GetHTTPTimeout()}
	}
	exchangeOptions := []exchange.Option{
		exchange.WithHTTPClient(a.httpClient),
		exchange.WithObserver(sessionMetrics.ObserveExchange),
		exchange.WithLogger(a.logger),
	}
	if n := cfg.GetLoginRatePerMinute(); n > 0 {
		exchangeOptions = append(exchangeOptions, exchange.WithRateLimiter(exchange.PerMinute(n)))
	}
	if a.Exchange, err = exchange.New(cfg.GetAPIBaseURL(), exchangeOptions...); err != nil {
		return nil, err
	}

	scheduler, err := refresh.New(a.Exchange, cfg.GetRefreshInterval(), refresh.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	a.Controller, err = controller.New(a.Store, a.Exchange, scheduler,
		controller.WithCredentialPolicy(controller.CredentialPolicy{
			MinUserIDLength:   cfg.GetMinUserIDLength(),
			MinPasswordLength: cfg.GetMinPasswordLength(),
		}),
		controller.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	a.Controller.Subscribe(sessionMetrics.ObserveTransition)

	if a.Gate, err = gate.New(cfg); err != nil {
		return nil, err
	}

	// The API client shares the exchange's network transport and timeout.
	a.API, err = apiclient.New(cfg.GetAPIBaseURL(), a.Controller, a.Controller,
		apiclient.WithBaseTransport(a.httpClient.Transport),
		apiclient.WithTimeout(a.httpClient.Timeout),
		apiclient.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}

	a.Controller.Restore()
	return a, nil
}

func (a *App) openSlots() (sessionstore.Slots, error) {
	dir := a.config.GetStorePath()
	switch backend := a.config.GetStoreBackend(); backend {
	case config.StoreBackendFile:
		a.filePath = filepath.Join(dir, sessionFileName)
		return sessionstore.NewFileSlots(a.filePath)
	case config.StoreBackendSQLite:
		path := dir
		if filepath.Ext(path) == "" {
			path = filepath.Join(dir, sessionDBName)
		}
		db, err := sessionstore.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db)
		return db, nil
	case config.StoreBackendMemory:
		return sessionstore.NewMemorySlots(), nil
	default:
		return nil, errors.Errorf("[console.New] unknown store backend %q", backend)
	}
}

// Close stops background renewal and releases the store. The persisted
// session is kept for the next run.
func (a *App) Close() {
	if a.Controller != nil {
		a.Controller.Close()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Err(err).Msg("Failed to close session store")
		}
	}
	a.closers = nil
}
