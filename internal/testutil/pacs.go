package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
)

// FakePACS is an httptest server that accepts /webhooks and /devices posts
// and records what it received. Set Status to make it reject requests.
type FakePACS struct {
	*httptest.Server
	Status atomic.Int32

	mu      sync.Mutex
	events  []events.Event
	devices []events.Device
	auth    []string
	hits    int
}

// NewFakePACS starts a FakePACS that is closed when the test ends.
func NewFakePACS(t *testing.T) *FakePACS {
	t.Helper()
	f := &FakePACS{}
	f.Status.Store(http.StatusOK)
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Close)
	return f
}

func (f *FakePACS) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits++
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	f.mu.Unlock()

	status := int(f.Status.Load())
	if status >= 300 {
		w.WriteHeader(status)
		return
	}

	switch r.URL.Path {
	case "/webhooks":
		var payload events.EventsPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.events = append(f.events, payload.Events...)
		f.mu.Unlock()
	case "/devices":
		var payload events.DevicesPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.devices = append(f.devices, payload.Readers...)
		f.mu.Unlock()
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(status)
}

// Events returns every event accepted so far.
func (f *FakePACS) Events() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

// Devices returns every device accepted so far.
func (f *FakePACS) Devices() []events.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Device(nil), f.devices...)
}

// Hits counts requests, accepted or not.
func (f *FakePACS) Hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

// LastAuth is the Authorization header of the most recent request.
func (f *FakePACS) LastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.auth) == 0 {
		return ""
	}
	return f.auth[len(f.auth)-1]
}
