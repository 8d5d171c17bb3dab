package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/circa10a/countdown/api"
	"github.com/circa10a/countdown/internal/server/database"
	"github.com/circa10a/countdown/internal/server/handlers"
	"github.com/circa10a/countdown/internal/server/middleware"
)

const (
	defaultLogLevel       = "info"
	defaultTickInterval   = time.Second
	defaultEventHistory   = 100
	defaultContactEmail   = "user@oss.com"
	defaultStorageBackend = database.BackendFile
)

// Server serves the countdown API and owns the timer worker.
type Server struct {
	Config

	ctx         context.Context
	cancel      context.CancelFunc
	mux         http.Handler
	logger      *slog.Logger
	middlewares []func(http.Handler) http.Handler
	store       database.Store
	workerDone  chan struct{}
	Worker      *Worker
	Events      *EventLog
}

// Config holds configuration for creating a Server.
type Config struct {
	AutoTLS           bool
	ContactEmail      string
	DemoMode          bool
	DemoResetInterval time.Duration
	Domains           []string
	EventHistory      int
	LogFormat         string
	LogLevel          string
	Metrics           bool
	Notifiers         []string
	NotifyMessage     string
	Port              int
	StorageBackend    string
	StorageDir        string
	TickInterval      time.Duration
	TLSCert           string
	TLSKey            string
	Validation        bool
}

// New returns a new server configured from cfg.
func New(cfg *Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		Config:     *cfg,
		ctx:        ctx,
		cancel:     cancel,
		workerDone: make(chan struct{}),
	}

	if server.LogLevel == "" {
		server.LogLevel = defaultLogLevel
	}

	if server.TickInterval == 0 {
		server.TickInterval = defaultTickInterval
	}

	if server.EventHistory == 0 {
		server.EventHistory = defaultEventHistory
	}

	if server.ContactEmail == "" {
		server.ContactEmail = defaultContactEmail
	}

	if server.StorageBackend == "" {
		server.StorageBackend = defaultStorageBackend
	}

	server.LogFormat = strings.ToLower(server.LogFormat)
	server.StorageBackend = strings.ToLower(server.StorageBackend)

	router := chi.NewRouter()
	// Route on the escaped path so timer names may contain any character
	router.Use(middleware.EscapedRoutePath)
	server.mux = router

	// Ensure configuration options are valid/compatible
	err := server.validate()
	if err != nil {
		cancel()
		return nil, err
	}

	// Logging
	logLevel, err := log.ParseLevel(server.LogLevel)
	if err != nil {
		cancel()
		return nil, err
	}

	logHandler := log.NewWithOptions(os.Stdout, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       getLogFormatter(server.LogFormat),
		Level:           logLevel,
	})
	server.logger = slog.New(logHandler)

	// Storage
	store, err := database.New(server.StorageBackend, server.StorageDir)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	err = store.Init()
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	server.store = store

	events, err := NewEventLog(server.EventHistory)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, err
	}
	server.Events = events

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Worker
	server.Worker = &Worker{
		Store:    store,
		Interval: server.TickInterval,
		Logger:   server.logger.With("component", "worker"),
		Events:   events,
		Metrics:  NewMetrics(registry),
	}

	if len(server.Notifiers) > 0 {
		server.Worker.Notifier = &ShoutrrrNotifier{
			URLs:    server.Notifiers,
			Message: server.NotifyMessage,
		}
	}

	go func() {
		server.Worker.Start(server.ctx)
		close(server.workerDone)
	}()

	if server.DemoMode {
		err = server.initDemoMode()
		if err != nil {
			server.Stop()
			return nil, err
		}
	}

	// Features
	if server.Metrics {
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server.middlewares = append(server.middlewares, middleware.Prometheus(registry))
	}

	// Default middlewares
	server.mux = middleware.Logging(server.logger, server.mux)
	server.middlewares = append(server.middlewares, middleware.RequestID, middleware.SecurityHeaders)

	// Add middlewares via http.Handler chaining
	for _, mw := range server.middlewares {
		server.mux = mw(server.mux)
	}

	// Routes
	// Health check
	healthHandler := &handlers.Health{
		Store: store,
	}
	router.Get("/health", healthHandler.GetHandleFunc)

	// Timers
	timerHandler := &handlers.Timer{
		Service: server.Worker,
		Events:  events,
		Logger:  server.logger.With("component", "api"),
	}
	v := validator.New()

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/timers", timerHandler.GetHandleFunc)
		r.With(middleware.BodyValidator[api.NewTimer](v)).Post("/timers", timerHandler.PostHandleFunc)
		r.Get("/timers/{name}", timerHandler.GetByNameHandleFunc)
		r.With(middleware.BodyValidator[api.LoopUpdate](v)).Put("/timers/{name}/loop", timerHandler.PutLoopHandleFunc)
		r.Delete("/timers/{name}", timerHandler.DeleteHandleFunc)
		r.Get("/events", timerHandler.EventsHandleFunc)
	})

	return server, nil
}

// Handler returns the server's HTTP handler with every middleware applied.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the listener of the server.
func (s *Server) Start() error {
	log := s.logger.With("component", "server")

	// Auto TLS will create listeners on port 80 and 443
	if s.AutoTLS {
		s.printBanner(":80, :443")
		log.Info("Starting server on :80 and :443")
		certmagic.DefaultACME.Agreed = true
		certmagic.DefaultACME.Email = s.ContactEmail
		return certmagic.HTTPS(s.Domains, s.mux)
	}

	// If no auto TLS, use specified server port
	// :{port}
	addr := fmt.Sprintf(":%d", s.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       5 * time.Second,
	}

	s.printBanner(addr)
	log.Info("Starting server on " + addr)

	// If custom cert and key provided, listen on specified server port via https
	if s.TLSCert != "" && s.TLSKey != "" {
		return httpServer.ListenAndServeTLS(s.TLSCert, s.TLSKey)
	}

	// No TLS requirements specified, listen on specified server port via http
	return httpServer.ListenAndServe()
}

// Stop stops the worker and releases the store.
func (s *Server) Stop() {
	s.logger.Info("shutting down server")
	s.cancel()
	<-s.workerDone

	err := s.store.Close()
	if err != nil {
		s.logger.Error("failed to close storage", "error", err)
	}
}

// validate validates the server configuration and checks for conflicting parameters.
func (s *Server) validate() error {
	if !s.Validation {
		return nil
	}

	if s.AutoTLS && (s.TLSCert != "" || s.TLSKey != "") {
		return errors.New("AutoTLS cannot be set along with TLS cert or TLS key")
	}

	if s.AutoTLS && len(s.Domains) == 0 {
		return errors.New("AutoTLS requires a domain to also be configured")
	}

	if s.TLSCert != "" && s.TLSKey == "" {
		return errors.New("TLS certificate is missing TLS key")
	}

	if s.TLSCert == "" && s.TLSKey != "" {
		return errors.New("TLS key is missing TLS certificate")
	}

	validLogFormats := []string{"json", "text", ""}
	if !slices.Contains(validLogFormats, s.LogFormat) {
		return fmt.Errorf("invalid log format. Valid log formats are: %v", validLogFormats)
	}

	if s.LogLevel != "" {
		_, err := log.ParseLevel(s.LogLevel)
		if err != nil {
			return err
		}
	}

	validBackends := []string{database.BackendFile, database.BackendSQLite, ""}
	if !slices.Contains(validBackends, s.StorageBackend) {
		return fmt.Errorf("invalid storage backend. Valid storage backends are: %v", validBackends[:2])
	}

	if s.TickInterval < 0 {
		return errors.New("tick interval must not be negative")
	}

	if s.EventHistory < 0 {
		return errors.New("event history must not be negative")
	}

	return validateNotifierURLs(s.Notifiers)
}

// getLogFormatter converts a log format string to usable log formatter
func getLogFormatter(logformat string) log.Formatter {
	switch logformat {
	case "json":
		return log.JSONFormatter
	}
	return log.TextFormatter
}
