package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velikanov/calsec/internal/instrumentation"
)

func newTestProvider(t *testing.T, metricsExporter string) *instrumentation.Provider {
	t.Helper()

	ctx := context.Background()
	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "calsec",
		ServiceVersion:  "test",
		Enabled:         true,
		MetricsExporter: metricsExporter,
		TracingExporter: "none",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })
	return provider
}

func TestNewMetricsServerRequiresEnabledProvider(t *testing.T) {
	_, err := NewMetricsServer(MetricsConfig{Addr: ":9090"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enabled instrumentation provider")

	disabled, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		ServiceName:    "calsec",
		ServiceVersion: "test",
		Enabled:        false,
	})
	require.NoError(t, err)

	_, err = NewMetricsServer(MetricsConfig{Addr: ":9090", Provider: disabled})
	require.Error(t, err)
}

func TestNewMetricsServerRequiresPrometheusExporter(t *testing.T) {
	provider := newTestProvider(t, "stdout")

	_, err := NewMetricsServer(MetricsConfig{Provider: provider})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prometheus exporter")
}

func TestNewMetricsServerDefaultsAddr(t *testing.T) {
	provider := newTestProvider(t, "prometheus")

	srv, err := NewMetricsServer(MetricsConfig{Provider: provider})
	require.NoError(t, err)
	assert.Equal(t, DefaultMetricsAddr, srv.Addr())

	srv, err = NewMetricsServer(MetricsConfig{Addr: ":9191", Provider: provider})
	require.NoError(t, err)
	assert.Equal(t, ":9191", srv.Addr())
}

func TestMetricsHandlerServesScrapeEndpoint(t *testing.T) {
	provider := newTestProvider(t, "prometheus")

	srv, err := NewMetricsServer(MetricsConfig{Provider: provider})
	require.NoError(t, err)

	fixture := httptest.NewServer(srv.Handler())
	t.Cleanup(fixture.Close)

	resp, err := http.Get(fixture.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(fixture.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestMetricsServerShutdownWithoutStart(t *testing.T) {
	provider := newTestProvider(t, "prometheus")

	srv, err := NewMetricsServer(MetricsConfig{Provider: provider})
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))
}
