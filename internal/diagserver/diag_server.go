/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package diagserver provides an HTTP server exposing Prometheus metrics, pprof endpoints
// and the current limiter state of a running process.
package diagserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acronis/go-sawtooth/limiter"
	"github.com/acronis/go-sawtooth/log"
	"github.com/acronis/go-sawtooth/restapi"
	"github.com/acronis/go-sawtooth/service"
)

// Endpoint paths.
const (
	MetricsPath = "/metrics"
	DebugPath   = "/debug"
	LimiterPath = "/limiter"
)

// Opts represents options for the DiagServer.
type Opts struct {
	// Gatherer is used for serving metrics. If nil, prometheus.DefaultGatherer is used.
	Gatherer prometheus.Gatherer

	// LimiterStats returns the state of the limiter served at /limiter. If nil, the endpoint is not registered.
	LimiterStats func() limiter.Stats
}

// DiagServer represents HTTP server for diagnostics.
// It implements service.Unit interface.
type DiagServer struct {
	URL            string
	HTTPServer     *http.Server
	httpServerDone chan struct{}
	Logger         log.FieldLogger
}

var _ service.Unit = (*DiagServer)(nil)

// New creates a new diagnostics HTTP server.
func New(cfg *Config, logger log.FieldLogger, opts Opts) *DiagServer {
	if logger == nil {
		logger = log.NewDisabledLogger()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Mount(DebugPath, chimiddleware.Profiler())
	if opts.LimiterStats != nil {
		router.Get(LimiterPath, func(rw http.ResponseWriter, r *http.Request) {
			restapi.RespondCodeAndJSON(rw, http.StatusOK, opts.LimiterStats(), logger)
		})
	}

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: time.Second * 5,
	}

	return &DiagServer{
		URL:            "http://" + httpServer.Addr,
		HTTPServer:     httpServer,
		httpServerDone: make(chan struct{}),
		Logger:         logger,
	}
}

// Start starts diagnostics HTTP server in a blocking way. Supposed this methods will be called in a separate goroutine.
// If a fatal error occurs, it's sent into passed fatalError channel and should be processed outside.
func (s *DiagServer) Start(fatalError chan<- error) {
	defer close(s.httpServerDone)

	logger := s.Logger.With(log.String("address", s.HTTPServer.Addr))

	logger.Info("starting diagnostics HTTP server...")
	if err := s.HTTPServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("diagnostics HTTP server closed")
			return
		}
		logger.Error("diagnostics HTTP server error", log.Error(err))
		fatalError <- err
	}
}

// Stop stops diagnostics HTTP server (always in no gracefully way).
func (s *DiagServer) Stop(gracefully bool) error {
	s.Logger.Info("closing diagnostics HTTP server...")
	if err := s.HTTPServer.Close(); err != nil {
		s.Logger.Error("diagnostics HTTP server closing error", log.Error(err))
		return err
	}
	<-s.httpServerDone // Wait closing of listener.
	return nil
}
