package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velikanov/calsec/internal/instrumentation"
)

func TestNotifierDeliversMessage(t *testing.T) {
	srv := newRecordingServer(t, `{"ok":true,"result":{}}`)
	client, err := NewClient("123:abc", WithBaseURL(srv.URL))
	require.NoError(t, err)

	n := NewNotifier(client, nil)
	n.Notify(42, "Authorization successful")

	assert.Equal(t, "/bot123:abc/sendMessage", srv.lastPath)
	assert.Equal(t, float64(42), srv.lastPayload["chat_id"])
	assert.Equal(t, "Authorization successful", srv.lastPayload["text"])
}

func TestNotifierSwallowsDeliveryFailure(t *testing.T) {
	srv := newRecordingServer(t, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	client, err := NewClient("123:abc", WithBaseURL(srv.URL))
	require.NoError(t, err)

	n := NewNotifier(client, nil)
	// Must not panic or propagate the API error.
	n.Notify(42, "Authorization successful")
}

func TestNotifierRecordsDeliveryOutcome(t *testing.T) {
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{
		ServiceName:     "calsec",
		ServiceVersion:  "test",
		Enabled:         true,
		MetricsExporter: "prometheus",
		TracingExporter: "none",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	srv := newRecordingServer(t, `{"ok":true,"result":{}}`)
	client, err := NewClient("123:abc", WithBaseURL(srv.URL))
	require.NoError(t, err)

	n := NewNotifier(client, nil)
	n.SetMetrics(provider.Metrics())

	// Delivered once, then failed once after the fixture goes away.
	n.Notify(42, "Authorization successful")
	srv.Close()
	n.Notify(42, "Authorization successful")
}

func TestNotifierSwallowsNetworkFailure(t *testing.T) {
	srv := newRecordingServer(t, `{"ok":true,"result":{}}`)
	client, err := NewClient("123:abc", WithBaseURL(srv.URL))
	require.NoError(t, err)
	srv.Close()

	n := NewNotifier(client, nil)
	n.Notify(42, "Authorization successful")
}
