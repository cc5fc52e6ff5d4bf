package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

const streamBody = `{"device_id":"door-1","timestamp":"2024-01-01T10:00:00Z","event_type":"Entry Unlocked","labels":["badge"]}

not json
{"events":[{"device_id":"door-2","timestamp":"2024-01-01T10:01:00Z"},{"device_id":"","timestamp":"2024-01-01T10:02:00Z"}]}
[{"device_id":"door-3","timestamp":"2024-01-01T10:03:00Z","actor_id":null}]
`

type vendor struct {
	logins atomic.Int32
	token  atomic.Value
}

func (v *vendor) currentToken() string {
	return v.token.Load().(string)
}

func (v *vendor) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "bridge" || creds["password"] != "pw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		v.logins.Add(1)
		_, _ = fmt.Fprintf(w, `{"access_token":%q,"expires_in":3600}`, v.currentToken())
	})
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+v.currentToken() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, streamBody)
	})
	mux.HandleFunc("/devices", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"readers":[{"device_id":"door-1","device_name":"Front"}]}`)
	})
	upgrader := websocket.Upgrader{}
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for _, line := range strings.Split(strings.TrimSpace(streamBody), "\n") {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(line))
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		time.Sleep(50 * time.Millisecond)
	})
	return mux
}

func newDriver(t *testing.T, cfg Config) (*Driver, *vendor, *httptest.Server) {
	t.Helper()
	v := &vendor{}
	v.token.Store("tok-1")
	srv := httptest.NewServer(v.handler(t))
	t.Cleanup(srv.Close)
	if cfg.URL == "" {
		cfg.URL = srv.URL + "/events"
	} else {
		cfg.URL = srv.URL + cfg.URL
	}
	cfg.AuthURL = srv.URL + "/auth"
	cfg.Username, cfg.Password = "bridge", "pw"
	req := retry.New(srv.Client(), retry.Policy{Start: time.Millisecond, Multiplier: 2, MaxAttempts: 1}, nil, nil)
	d, err := New(cfg, req, nil, metrics.NewRecorder())
	require.NoError(t, err)
	return d, v, srv
}

func drain(t *testing.T, d *Driver, rs providers.RecordStream) ([]string, int) {
	t.Helper()
	var devices []string
	failures := 0
	for {
		rec, err := rs.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return devices, failures
		}
		require.NoError(t, err)
		evs, err := d.DecodeRecord(rec)
		if err != nil {
			failures++
			continue
		}
		for _, ev := range evs {
			devices = append(devices, ev.DeviceID)
		}
	}
}

func TestHTTPStreamYieldsRecords(t *testing.T) {
	d, v, _ := newDriver(t, Config{})

	rs, err := d.OpenStream(context.Background())
	require.NoError(t, err)
	defer rs.Close()

	devices, failures := drain(t, d, rs)
	assert.Equal(t, []string{"door-1", "door-2", "door-3"}, devices)
	assert.Equal(t, 1, failures)
	assert.EqualValues(t, 1, v.logins.Load())
}

func TestTokenIsCachedAcrossReconnects(t *testing.T) {
	d, v, _ := newDriver(t, Config{})
	for i := 0; i < 3; i++ {
		rs, err := d.OpenStream(context.Background())
		require.NoError(t, err)
		_ = rs.Close()
	}
	assert.EqualValues(t, 1, v.logins.Load())
}

func TestUnauthorizedStreamInvalidatesToken(t *testing.T) {
	d, v, _ := newDriver(t, Config{})
	rs, err := d.OpenStream(context.Background())
	require.NoError(t, err)
	_ = rs.Close()

	v.token.Store("tok-2")
	_, err = d.OpenStream(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, retry.StatusCode(err))

	rs, err = d.OpenStream(context.Background())
	require.NoError(t, err)
	_ = rs.Close()
	assert.EqualValues(t, 2, v.logins.Load())
}

func TestWebsocketStreamYieldsRecords(t *testing.T) {
	d, _, _ := newDriver(t, Config{URL: "/ws", Transport: TransportWebsocket})

	rs, err := d.OpenStream(context.Background())
	require.NoError(t, err)
	defer rs.Close()

	devices, failures := drain(t, d, rs)
	assert.Equal(t, []string{"door-1", "door-2", "door-3"}, devices)
	assert.Equal(t, 1, failures)
}

func TestStreamNextObservesCancellation(t *testing.T) {
	d, _, _ := newDriver(t, Config{})
	rs, err := d.OpenStream(context.Background())
	require.NoError(t, err)
	defer rs.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rs.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchDevices(t *testing.T) {
	d, _, srv := newDriver(t, Config{})
	d.cfg.DevicesURL = srv.URL + "/devices"

	devices, err := d.FetchDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "Front", devices[0].DeviceName)
}

func TestFetchDevicesUnavailableWithoutURL(t *testing.T) {
	d, _, _ := newDriver(t, Config{})
	var toggle providers.DeviceToggle = d
	assert.False(t, toggle.DevicesEnabled())

	d.cfg.DevicesURL = "http://pacs.invalid/devices"
	assert.True(t, d.DevicesEnabled())
	d.cfg.DevicesURL = ""

	_, err := d.FetchDevices(context.Background())
	assert.ErrorIs(t, err, providers.ErrProviderUnavailable)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil)
	assert.Error(t, err)
	_, err = New(Config{URL: "http://x", Transport: "carrier-pigeon"}, nil, nil, nil)
	assert.Error(t, err)
	d, err := New(Config{URL: "http://x"}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TransportHTTP, d.cfg.Transport)
	assert.Equal(t, "stream", d.Name())
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "ws://host/a", websocketURL("http://host/a"))
	assert.Equal(t, "wss://host/a", websocketURL("https://host/a"))
	assert.Equal(t, "ws://host/a", websocketURL("ws://host/a"))
}
