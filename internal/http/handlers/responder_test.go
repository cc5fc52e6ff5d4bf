package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/preston-bernstein/pacs-bridge/internal/http/middleware"
	"github.com/preston-bernstein/pacs-bridge/internal/testutil"
)

func TestWriteErrorUsesContextRequestID(t *testing.T) {
	logger, _ := testutil.NewBufferLogger()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	req.Header.Set("X-Request-ID", "abc123")

	h := middleware.LoggingMiddleware(logger, nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusServiceUnavailable, "events: no successful cycle yet", logger)
	}))
	rr := testutil.ServeRequest(h, req)

	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	var body errorResponse
	testutil.DecodeJSON(t, rr, &body)
	assert.Equal(t, "events: no successful cycle yet", body.Error)
	assert.Equal(t, "abc123", body.RequestID)
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestWriteErrorFallsBackToHeaderRequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("X-Request-ID", "header-id")

	writeError(rr, req, http.StatusTeapot, "boom", nil)

	var body errorResponse
	testutil.DecodeJSON(t, rr, &body)
	assert.Equal(t, "header-id", body.RequestID)
}

func TestWriteErrorOmitsMissingRequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/status", nil), http.StatusNotFound, "not found", nil)
	assert.NotContains(t, rr.Body.String(), "requestId")
}

func TestWriteJSONLogsEncodeError(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	rr := httptest.NewRecorder()

	writeJSON(rr, http.StatusOK, make(chan int), logger)

	assert.Equal(t, http.StatusOK, rr.Code, "status is written before encoding")
	assert.Contains(t, buf.String(), "failed to encode response")
	assert.Contains(t, buf.String(), "status_code=200")
}
