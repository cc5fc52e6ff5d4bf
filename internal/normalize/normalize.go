// Package normalize converts vendor records into canonical PACS events.
package normalize

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
)

// ErrMissingRequired marks a converted event without device id or timestamp.
var ErrMissingRequired = errors.New("event missing device_id or timestamp")

// Adapter converts one vendor record of type T.
type Adapter[T any] interface {
	Convert(item T) (events.Event, error)
}

// AdapterFunc lets a plain function act as an Adapter.
type AdapterFunc[T any] func(item T) (events.Event, error)

func (f AdapterFunc[T]) Convert(item T) (events.Event, error) {
	return f(item)
}

// Normalizer runs an adapter over a batch, dropping records that cannot be
// converted.
type Normalizer[T any] struct {
	adapter Adapter[T]
	target  string
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func New[T any](adapter Adapter[T], target string, logger *slog.Logger, recorder *metrics.Recorder) *Normalizer[T] {
	return &Normalizer[T]{adapter: adapter, target: target, logger: logger, metrics: recorder}
}

// Normalize returns the converted events in input order. Failed records are
// logged and counted, never fatal.
func (n *Normalizer[T]) Normalize(ctx context.Context, items []T) []events.Event {
	logger := logging.FromContext(ctx, n.logger)
	out := make([]events.Event, 0, len(items))
	dropped := 0
	for i, item := range items {
		ev, err := n.adapter.Convert(item)
		if err == nil && !ev.Valid() {
			err = ErrMissingRequired
		}
		if err != nil {
			dropped++
			logging.Warn(logger, "dropping record",
				slog.String(logging.FieldTarget, n.target),
				slog.Int("index", i),
				"error", err,
			)
			continue
		}
		out = append(out, ev)
	}
	if dropped > 0 {
		n.metrics.RecordDropped(n.target, dropped)
	}
	return out
}

// Normalize is the one-shot form of Normalizer.Normalize.
func Normalize[T any](ctx context.Context, adapter Adapter[T], items []T) []events.Event {
	return New(adapter, "", nil, nil).Normalize(ctx, items)
}

// Identity passes canonical events through unchanged.
type Identity struct{}

func (Identity) Convert(ev events.Event) (events.Event, error) {
	return ev, nil
}

// StatusMap maps vendor statuses to canonical event types.
type StatusMap map[string]string

// EventType returns the mapped type, or "" when the status is unknown.
func (m StatusMap) EventType(status string) string {
	return m[strings.TrimSpace(status)]
}

// Labels keeps the non-empty fields in the order given.
func Labels(fields ...string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
