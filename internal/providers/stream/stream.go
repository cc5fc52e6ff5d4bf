// Package stream reads canonical PACS events pushed by a vendor over a
// long-lived HTTP response or websocket.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
	"github.com/preston-bernstein/pacs-bridge/internal/normalize"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

const providerName = "stream"

const (
	TransportHTTP      = "http"
	TransportWebsocket = "websocket"
)

type Config struct {
	URL       string
	AuthURL   string
	Username  string
	Password  string
	Transport string
	TokenTTL  time.Duration
	// DevicesURL, when set, is polled for a JSON list of devices.
	DevicesURL string
}

// Driver streams events and, optionally, polls a device listing.
type Driver struct {
	cfg        Config
	requester  providers.Requester
	tokens     *tokenCache
	dialer     *websocket.Dialer
	logger     *slog.Logger
	normalizer *normalize.Normalizer[events.Event]
}

func New(cfg Config, requester providers.Requester, logger *slog.Logger, recorder *metrics.Recorder) (*Driver, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%s: events url is required", providerName)
	}
	switch cfg.Transport {
	case "":
		cfg.Transport = TransportHTTP
	case TransportHTTP, TransportWebsocket:
	default:
		return nil, fmt.Errorf("%s: unsupported transport %q", providerName, cfg.Transport)
	}
	return &Driver{
		cfg:        cfg,
		requester:  requester,
		tokens:     newTokenCache(cfg.AuthURL, cfg.Username, cfg.Password, cfg.TokenTTL, requester),
		dialer:     websocket.DefaultDialer,
		logger:     logger,
		normalizer: normalize.New[events.Event](normalize.Identity{}, string(events.KindEvents), logger, recorder),
	}, nil
}

func (d *Driver) Name() string {
	return providerName
}

// DecodeRecord parses one streamed record and drops events missing required
// fields.
func (d *Driver) DecodeRecord(record []byte) ([]events.Event, error) {
	decoded, err := decodeRecord(record)
	if err != nil || len(decoded) == 0 {
		return nil, err
	}
	return d.normalizer.Normalize(context.Background(), decoded), nil
}

// OpenStream connects with the configured transport.
func (d *Driver) OpenStream(ctx context.Context) (providers.RecordStream, error) {
	token, err := d.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", providerName, err)
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	var rs providers.RecordStream
	if d.cfg.Transport == TransportWebsocket {
		rs, err = d.openWebsocket(ctx, header)
	} else {
		rs, err = d.openHTTP(ctx, header)
	}
	if err != nil {
		if retry.StatusCode(err) == http.StatusUnauthorized {
			d.tokens.Invalidate()
		}
		return nil, fmt.Errorf("%s: open stream: %w", providerName, err)
	}
	providers.LogWithProvider(ctx, d.logger, slog.LevelInfo, providerName, "stream opened", slog.String("transport", d.cfg.Transport))
	return rs, nil
}

// DevicesEnabled reports whether a device listing is configured. Without
// one the driver is events-only.
func (d *Driver) DevicesEnabled() bool {
	return d.cfg.DevicesURL != ""
}

// FetchDevices reads a JSON array of devices from DevicesURL.
func (d *Driver) FetchDevices(ctx context.Context) ([]events.Device, error) {
	if d.cfg.DevicesURL == "" {
		return nil, providers.ErrProviderUnavailable
	}
	token, err := d.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", providerName, err)
	}
	header := http.Header{}
	header.Set("Accept", "application/json")
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	resp, err := d.requester.Do(ctx, http.MethodGet, d.cfg.DevicesURL, retry.Options{Header: header, Target: providerName})
	if err != nil {
		if retry.StatusCode(err) == http.StatusUnauthorized {
			d.tokens.Invalidate()
		}
		return nil, providers.ClassifyError(providerName, err)
	}
	defer resp.Body.Close()
	return decodeDevices(resp.Body)
}

func (d *Driver) openHTTP(ctx context.Context, header http.Header) (providers.RecordStream, error) {
	header.Set("Accept", "application/x-ndjson, application/json")
	resp, err := d.requester.Do(ctx, http.MethodGet, d.cfg.URL, retry.Options{Header: header, Target: providerName})
	if err != nil {
		return nil, err
	}
	return &lineStream{body: resp.Body, reader: bufio.NewReader(resp.Body)}, nil
}

func (d *Driver) openWebsocket(ctx context.Context, header http.Header) (providers.RecordStream, error) {
	conn, resp, err := d.dialer.DialContext(ctx, websocketURL(d.cfg.URL), header)
	if err != nil {
		if resp != nil {
			return nil, &retry.StatusError{URL: d.cfg.URL, StatusCode: resp.StatusCode}
		}
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	return &wsStream{conn: conn, stop: stop}, nil
}

func websocketURL(raw string) string {
	switch {
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	default:
		return raw
	}
}

// lineStream splits a streamed HTTP body on newlines.
type lineStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
}

func (s *lineStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	line, err := s.reader.ReadBytes('\n')
	if len(line) > 0 {
		return bytes.TrimRight(line, "\r\n"), nil
	}
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, err
}

func (s *lineStream) Close() error {
	return s.body.Close()
}

// wsStream yields one websocket message per record.
type wsStream struct {
	conn *websocket.Conn
	stop func() bool
}

func (s *wsStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, msg, err := s.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, io.EOF
		}
		return nil, err
	}
	return msg, nil
}

func (s *wsStream) Close() error {
	s.stop()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := s.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

var (
	_ providers.Driver        = (*Driver)(nil)
	_ providers.EventStreamer = (*Driver)(nil)
	_ providers.DeviceFetcher = (*Driver)(nil)
)
