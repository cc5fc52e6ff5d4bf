package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestSetupDisabledReturnsNoHandler(t *testing.T) {
	rec, handler, shutdown, err := Setup(context.Background(), TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.Nil(t, handler)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupEnabledExposesPrometheusSeries(t *testing.T) {
	rec, handler, shutdown, err := Setup(context.Background(), TelemetryConfig{Enabled: true})
	require.NoError(t, err)
	require.NotNil(t, handler)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	rec.RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	rec.RecordRequestAttempt("events", time.Millisecond, errors.New("boom"))
	rec.RecordCycle("events", time.Millisecond, nil)
	rec.RecordForward("events", 3, true)
	rec.RecordForward("events", 2, false)
	rec.RecordDropped("events", 1)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)

	text := string(body)
	for _, series := range []string{"retry_attempts_total", "forwarded_items_total", "poll_cycles_total", "normalize_dropped_total"} {
		assert.True(t, strings.Contains(text, series), "missing %s", series)
	}
}

func TestSetupPropagatesReaderErrors(t *testing.T) {
	orig := promReaderFactory
	t.Cleanup(func() { promReaderFactory = orig })
	promReaderFactory = func() (sdkmetric.Reader, http.Handler, error) {
		return nil, nil, errors.New("no exporter")
	}

	_, _, _, err := Setup(context.Background(), TelemetryConfig{Enabled: true})
	assert.Error(t, err)
}
