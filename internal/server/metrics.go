package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/velikanov/calsec/internal/instrumentation"
)

const (
	// DefaultMetricsAddr is the default bind address for the metrics
	// server.
	DefaultMetricsAddr = ":9090"

	defaultMetricsReadTimeout  = 10 * time.Second
	defaultMetricsWriteTimeout = 10 * time.Second
	defaultMetricsIdleTimeout  = 60 * time.Second
)

// MetricsConfig holds the collaborators for the metrics server.
type MetricsConfig struct {
	// Addr is the bind address. Defaults to DefaultMetricsAddr.
	Addr string

	// Provider must be an enabled instrumentation provider whose metric
	// pipeline is backed by the prometheus exporter.
	Provider *instrumentation.Provider

	Logger *slog.Logger
}

// MetricsServer exposes the Prometheus scrape endpoint on its own
// listener, keeping operational metrics off the callback and tool ports.
type MetricsServer struct {
	addr       string
	logger     *slog.Logger
	httpServer *http.Server
}

// NewMetricsServer creates a metrics server from its configuration.
func NewMetricsServer(cfg MetricsConfig) (*MetricsServer, error) {
	if cfg.Provider == nil || !cfg.Provider.Enabled() {
		return nil, fmt.Errorf("an enabled instrumentation provider is required")
	}
	if !cfg.Provider.PrometheusEnabled() {
		return nil, fmt.Errorf("prometheus exporter is not configured")
	}

	addr := cfg.Addr
	if addr == "" {
		addr = DefaultMetricsAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MetricsServer{addr: addr, logger: logger}, nil
}

// Handler returns the HTTP handler serving the scrape endpoint. The OTel
// prometheus exporter registers with the default registry, which
// promhttp.Handler exposes.
func (s *MetricsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Start serves the scrape endpoint in a blocking manner. Call in a
// goroutine for non-blocking operation.
func (s *MetricsServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultMetricsReadTimeout,
		WriteTimeout:      defaultMetricsWriteTimeout,
		IdleTimeout:       defaultMetricsIdleTimeout,
	}

	s.logger.Info("starting metrics server", slog.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		s.logger.Info("shutting down metrics server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the bind address.
func (s *MetricsServer) Addr() string {
	return s.addr
}
