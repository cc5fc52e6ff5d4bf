package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
)

func TestClocks(t *testing.T) {
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, start, NowAt(start)())

	clock := NewManualClock(start)
	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start.Add(time.Minute), clock.Advance(time.Minute))
	assert.Equal(t, start.Add(time.Minute), clock.Now())
}

func TestServeHelpers(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	rr := Serve(handler, http.MethodPost, "/test", strings.NewReader("{}"))
	AssertStatus(t, rr, http.StatusCreated)
	var body map[string]bool
	DecodeJSON(t, rr, &body)
	assert.True(t, body["ok"])
}

func TestFakePACSRecordsBatches(t *testing.T) {
	pacs := NewFakePACS(t)

	body, err := json.Marshal(events.EventsPayload{Events: []events.Event{{DeviceID: "door", Timestamp: "2024-01-01T00:00:00Z"}}})
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, pacs.URL+"/webhooks", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer t")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer t", pacs.LastAuth())

	body, err = json.Marshal(events.DevicesPayload{Readers: []events.Device{{DeviceID: "door"}}})
	require.NoError(t, err)
	resp, err = http.Post(pacs.URL+"/devices", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	pacs.Status.Store(http.StatusBadGateway)
	resp, err = http.Post(pacs.URL+"/webhooks", "application/json", strings.NewReader(`{"events":[]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	assert.Len(t, pacs.Events(), 1)
	assert.Len(t, pacs.Devices(), 1)
	assert.Equal(t, 3, pacs.Hits())
	assert.Empty(t, pacs.LastAuth())
}

func TestStubHTTPServer(t *testing.T) {
	s := &StubHTTPServer{ListenErr: errors.New("boom"), ShutdownErr: errors.New("down")}
	assert.EqualError(t, s.ListenAndServe(), "boom")
	assert.EqualError(t, s.Shutdown(context.Background()), "down")
	assert.Equal(t, ":0", s.Addr())
	assert.NotNil(t, s.Handler())
	assert.Equal(t, 1, s.ListenCalls())
	assert.Equal(t, 1, s.ShutdownCalls())

	blocking := &StubHTTPServer{Unblock: make(chan struct{})}
	done := make(chan error, 1)
	go func() { done <- blocking.Shutdown(context.Background()) }()
	close(blocking.Unblock)
	assert.NoError(t, <-done)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	stuck := &StubHTTPServer{Unblock: make(chan struct{})}
	assert.ErrorIs(t, stuck.Shutdown(ctx), context.DeadlineExceeded)
}

func TestBufferLoggerCapturesDebug(t *testing.T) {
	logger, buf := NewBufferLogger()
	logger.Debug("debug line", "k", "v")
	assert.Contains(t, buf.String(), "k=v")
	assert.Positive(t, buf.Len())
}
