package poller

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/state"
)

// streamLoop keeps one connection open at a time. When a stream ends or
// fails it waits the events interval and reconnects.
func (p *Poller) streamLoop(ctx context.Context) {
	target := p.cfg.Events
	snap := p.loadState(ctx, target)
	p.publish(target.Kind, snap, false)

	for {
		snap = p.runStream(ctx, target, snap)
		if ctx.Err() != nil {
			return
		}
		logging.Info(p.logger, "reconnecting stream after delay",
			slog.String(logging.FieldTarget, target.Name()),
			slog.Duration("delay", target.Interval),
		)
		stop := p.watchResets(ctx)
		err := p.sleep(ctx, target.Interval)
		stop()
		if err != nil {
			return
		}
	}
}

func (p *Poller) runStream(ctx context.Context, target events.Target, snap state.Snapshot) state.Snapshot {
	streamer := p.driver.(providers.EventStreamer)
	start := time.Now()
	ctx, logger := p.cycleContext(ctx, target)
	snap.LastAttempt = p.gate.Now()

	rs, err := streamer.OpenStream(ctx)
	if err != nil {
		p.metrics.RecordCycle(target.Name(), time.Since(start), err)
		if ctx.Err() == nil {
			logging.Error(logger, "could not open event stream", err, slog.String(logging.FieldURL, target.URL))
		}
		snap = recordFailure(snap, err)
		p.saveState(ctx, target, snap)
		p.publish(target.Kind, snap, false)
		return snap
	}
	defer func() { _ = rs.Close() }()
	stop := p.watchResets(ctx)
	defer stop()

	snap = recordSuccess(snap, p.gate.Now())
	p.publish(target.Kind, snap, true)
	logging.Info(logger, "reading event stream")

	var forwarded, skipped int
	for {
		record, err := rs.Next(ctx)
		now := p.gate.Now()
		p.forwarder.MaybeReset(now)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
				logging.Info(logger, "event stream ended", slog.Int(logging.FieldCount, forwarded), slog.Int("skipped", skipped))
			} else if ctx.Err() == nil {
				logging.Error(logger, "event stream failed", err, slog.Int(logging.FieldCount, forwarded))
				snap = recordFailure(snap, err)
			}
			p.metrics.RecordCycle(target.Name(), time.Since(start), err)
			p.saveState(ctx, target, snap)
			p.publish(target.Kind, snap, false)
			return snap
		}

		if len(bytes.TrimSpace(record)) == 0 {
			continue
		}

		evs, err := streamer.DecodeRecord(record)
		if err != nil {
			skipped++
			p.metrics.RecordDropped(target.Name(), 1)
			logging.Warn(logger, "skipping unreadable stream record", "error", err, slog.Int("bytes", len(record)))
			continue
		}
		if len(evs) == 0 {
			continue
		}
		if p.forwarder.ForwardEvents(ctx, evs) {
			forwarded += len(evs)
			snap = recordSuccess(snap, now)
		} else {
			snap = recordFailure(snap, errForwardRejected)
		}
		snap.Watermark = now
		p.publish(target.Kind, snap, true)
	}
}

// watchResets checks the forwarded-count reset every resetTick until stop is
// called, so a quiet stream still resets on schedule.
func (p *Poller) watchResets(ctx context.Context) (stop func()) {
	if p.resetTick <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(p.resetTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.forwarder.MaybeReset(p.gate.Now())
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
