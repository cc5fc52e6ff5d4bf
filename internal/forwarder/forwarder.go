// Package forwarder pushes canonical events and devices to the PACS
// ingestion API.
package forwarder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
	"github.com/preston-bernstein/pacs-bridge/internal/timeutil"
)

const (
	webhooksPath = "/webhooks"
	devicesPath  = "/devices"

	defaultCountResetInterval = 24 * time.Hour
	pacsTarget                = "pacs"
)

// Requester is the backoff-aware HTTP caller used for every PACS request.
type Requester interface {
	Do(ctx context.Context, method, rawURL string, opts retry.Options) (*http.Response, error)
}

// Mirror receives batches the PACS API accepted.
type Mirror interface {
	Publish(ctx context.Context, kind events.Kind, payload any) error
}

// ResponseCheck decides whether a 2xx PACS response counts as accepted.
type ResponseCheck func(resp *http.Response) bool

type Config struct {
	BaseURL            string
	Token              string
	CountResetInterval time.Duration
	Check              ResponseCheck
}

// Forwarder posts batches and keeps a running count of forwarded events.
type Forwarder struct {
	cfg       Config
	requester Requester
	mirror    Mirror
	logger    *slog.Logger
	metrics   *metrics.Recorder

	count     atomic.Int64
	resetMu   sync.Mutex
	lastReset time.Time
}

type Option func(*Forwarder)

func WithMirror(m Mirror) Option {
	return func(f *Forwarder) { f.mirror = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Forwarder) { f.logger = logger }
}

func WithMetrics(recorder *metrics.Recorder) Option {
	return func(f *Forwarder) { f.metrics = recorder }
}

func New(cfg Config, requester Requester, opts ...Option) *Forwarder {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.CountResetInterval <= 0 {
		cfg.CountResetInterval = defaultCountResetInterval
	}
	f := &Forwarder{cfg: cfg, requester: requester}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ForwardEvents posts one batch to the webhooks endpoint. The counter grows
// by len(batch) only when the PACS API accepts it.
func (f *Forwarder) ForwardEvents(ctx context.Context, batch []events.Event) bool {
	if len(batch) == 0 {
		return false
	}
	payload := events.EventsPayload{Events: batch}
	ok := f.post(ctx, string(events.KindEvents), f.cfg.BaseURL+webhooksPath, payload, len(batch))
	if !ok {
		return false
	}
	total := f.count.Add(int64(len(batch)))
	logging.Info(logging.FromContext(ctx, f.logger), "forwarded events",
		slog.Int(logging.FieldCount, len(batch)),
		slog.Int64("total", total),
	)
	f.publish(ctx, events.KindEvents, payload)
	return true
}

// ForwardDevices posts the reader list. It never changes the event counter.
func (f *Forwarder) ForwardDevices(ctx context.Context, devices []events.Device) bool {
	if len(devices) == 0 {
		return false
	}
	payload := events.DevicesPayload{Readers: devices}
	ok := f.post(ctx, string(events.KindDevices), f.cfg.BaseURL+devicesPath, payload, len(devices))
	if !ok {
		return false
	}
	logging.Info(logging.FromContext(ctx, f.logger), "forwarded devices", slog.Int(logging.FieldCount, len(devices)))
	f.publish(ctx, events.KindDevices, payload)
	return true
}

// Count returns events forwarded since the last reset.
func (f *Forwarder) Count() int64 {
	return f.count.Load()
}

// MaybeReset zeroes the counter once the reset interval has elapsed and
// reports whether it did.
func (f *Forwarder) MaybeReset(now time.Time) bool {
	f.resetMu.Lock()
	defer f.resetMu.Unlock()
	if !timeutil.IntervalElapsed(f.lastReset, f.cfg.CountResetInterval, now) {
		return false
	}
	first := f.lastReset.IsZero()
	f.lastReset = now
	prev := f.count.Swap(0)
	if !first {
		logging.Info(f.logger, "resetting forwarded event count",
			slog.Int64(logging.FieldCount, prev),
			slog.Duration("interval", f.cfg.CountResetInterval),
		)
	}
	return true
}

func (f *Forwarder) post(ctx context.Context, kind, url string, payload any, n int) bool {
	logger := logging.FromContext(ctx, f.logger)
	body, err := json.Marshal(payload)
	if err != nil {
		logging.Error(logger, "encode pacs payload", err, slog.String(logging.FieldTarget, kind))
		f.metrics.RecordForward(kind, n, false)
		return false
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if f.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+f.cfg.Token)
	}

	resp, err := f.requester.Do(ctx, http.MethodPost, url, retry.Options{Header: header, Body: body, Target: pacsTarget})
	if err != nil {
		logging.Error(logger, "pacs request failed", err,
			slog.String(logging.FieldTarget, kind),
			slog.String(logging.FieldURL, url),
			slog.Int(logging.FieldStatusCode, retry.StatusCode(err)),
			slog.Int(logging.FieldCount, n),
		)
		f.metrics.RecordForward(kind, n, false)
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if f.cfg.Check != nil && !f.cfg.Check(resp) {
		logging.Warn(logger, "pacs response rejected",
			slog.String(logging.FieldTarget, kind),
			slog.String(logging.FieldURL, url),
			slog.Int(logging.FieldStatusCode, resp.StatusCode),
		)
		f.metrics.RecordForward(kind, n, false)
		return false
	}
	f.metrics.RecordForward(kind, n, true)
	return true
}

func (f *Forwarder) publish(ctx context.Context, kind events.Kind, payload any) {
	if f.mirror == nil {
		return
	}
	if err := f.mirror.Publish(ctx, kind, payload); err != nil {
		logging.Warn(logging.FromContext(ctx, f.logger), "mirror publish failed",
			slog.String(logging.FieldTarget, string(kind)),
			"error", err,
		)
	}
}
