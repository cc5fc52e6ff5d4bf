package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/preston-bernstein/pacs-bridge/internal/config"
	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/forwarder"
	httpserver "github.com/preston-bernstein/pacs-bridge/internal/http"
	"github.com/preston-bernstein/pacs-bridge/internal/http/handlers"
	"github.com/preston-bernstein/pacs-bridge/internal/http/middleware"
	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
	"github.com/preston-bernstein/pacs-bridge/internal/poller"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

var metricsSetup = metrics.Setup

// Server owns the poll loops, the status server and the metrics server.
type Server struct {
	cfg           config.Config
	logger        *slog.Logger
	metrics       *metrics.Recorder
	httpServer    httpServer
	metricsServer httpServer
	poller        Poller
	metricsStop   func(context.Context) error
	closers       []closeFunc
}

// New wires the configured driver, forwarder, state store and mirror. Only
// an unusable driver configuration is an error; optional backends degrade
// with a warning.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	recorder, metricsSrv, metricsShutdown := buildMetrics(cfg, logger, nil)

	driver, err := newProviderFactory(logger, recorder).build(cfg)
	if err != nil {
		if metricsShutdown != nil {
			_ = metricsShutdown(ctx)
		}
		return nil, err
	}
	srv := newServerWithDriver(ctx, cfg, logger, driver, recorder)
	srv.metricsServer = metricsSrv
	srv.metricsStop = metricsShutdown
	return srv, nil
}

func newServerWithDriver(ctx context.Context, cfg config.Config, logger *slog.Logger, driver providers.Driver, recorder *metrics.Recorder) *Server {
	var closers []closeFunc
	store, closeStore := buildStateStore(ctx, cfg, logger)
	mirror, closeMirror := buildMirror(cfg, logger)
	for _, c := range []closeFunc{closeStore, closeMirror} {
		if c != nil {
			closers = append(closers, c)
		}
	}

	pacs := retry.New(&http.Client{Timeout: pacsTimeout}, cfg.RetryPolicy(), logger, recorder)
	opts := []forwarder.Option{forwarder.WithLogger(logger), forwarder.WithMetrics(recorder)}
	if mirror != nil {
		opts = append(opts, forwarder.WithMirror(mirror))
	}
	fwd := forwarder.New(forwarder.Config{
		BaseURL:            cfg.URLs.PACSServer,
		Token:              cfg.Credentials.PACSToken,
		CountResetInterval: cfg.Requests.Events.CountResetInterval.Duration(),
	}, pacs, opts...)

	plr := poller.New(driver, fwd, store, logger, recorder, pollerConfig(cfg))

	return &Server{
		cfg:        cfg,
		logger:     logger,
		metrics:    recorder,
		httpServer: buildHTTPServer(cfg, logger, recorder, plr, fwd),
		poller:     plr,
		closers:    closers,
	}
}

// newServerWithDeps is used for testing to inject custom components.
func newServerWithDeps(cfg config.Config, logger *slog.Logger, httpSrv httpServer, plr Poller) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpSrv,
		poller:     plr,
	}
}

func pollerConfig(cfg config.Config) poller.Config {
	ev := cfg.Requests.Events
	return poller.Config{
		Devices: events.Target{
			Kind:     events.KindDevices,
			URL:      cfg.URLs.Devices,
			Interval: cfg.Requests.Devices.PollingInterval.Duration(),
		},
		Events: events.Target{
			Kind:      events.KindEvents,
			URL:       cfg.URLs.Events,
			PageSize:  ev.PageSize,
			Interval:  ev.PollingInterval.Duration(),
			Streaming: ev.Streaming,
		},
	}
}

func buildHTTPServer(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder, plr Poller, counter handlers.Counter) httpServer {
	if logger == nil {
		logger = logging.NewLogger(logging.Config{})
	}
	var status handlers.StatusSource
	if plr != nil {
		status = plr
	}
	handler := handlers.NewHandler(cfg.Provider, status, counter, logger)
	router := httpserver.NewRouter(handler)
	wrapped := middleware.LoggingMiddleware(logger, recorder, router)

	return newStatusServer(cfg.Port, wrapped)
}

// Run starts the poller and HTTP server, then waits for context cancellation to shut down gracefully.
func (s *Server) Run(ctx context.Context, stop context.CancelFunc) {
	s.startMetrics()
	s.startServer(stop)
	s.poller.Start(ctx)

	<-ctx.Done()
	if s.logger != nil {
		s.logger.Info("shutdown signal received")
	}

	s.gracefulShutdown()
}

func (s *Server) startServer(stop context.CancelFunc) {
	launchServer("http", s.httpServer, s.logger, func(err error) {
		if stop != nil {
			stop()
		}
	})
}

func (s *Server) startMetrics() {
	if s.metricsServer == nil {
		return
	}
	launchServer("metrics", s.metricsServer, s.logger, nil)
}

func (s *Server) gracefulShutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.poller.Stop(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Error("failed to stop poller", "error", err)
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	if s.metricsStop != nil {
		if err := s.metricsStop(shutdownCtx); err != nil && s.logger != nil {
			s.logger.Warn("metrics shutdown failed", "error", err)
		}
	}

	// loops are stopped, so state and mirror connections can go
	var errs []error
	for _, closeFn := range s.closers {
		errs = append(errs, closeFn())
	}
	if err := errors.Join(errs...); err != nil && s.logger != nil {
		s.logger.Warn("closing backends failed", "error", err)
	}

	if s.logger != nil {
		s.logger.Info("shutdown complete")
	}
}

func buildMetrics(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*metrics.Recorder, httpServer, func(context.Context) error) {
	if recorder != nil {
		return recorder, nil, nil
	}

	recCfg := metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		Port:         cfg.Metrics.Port,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	}

	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		if logger != nil {
			logger.Warn("metrics setup failed, continuing without telemetry", "err", err)
		}
		return metrics.NewRecorder(), nil, nil
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		metricsSrv = newMetricsServer(recCfg.Port, mux)
	}

	return rec, metricsSrv, shutdown
}

func launchServer(name string, srv httpServer, logger *slog.Logger, onError func(error)) {
	go func() {
		if logger != nil {
			logger.Info("starting "+name+" server", slog.String("addr", srv.Addr()))
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if logger != nil {
				logger.Warn(name+" server failed", "error", err)
			}
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}
