package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
	"github.com/preston-bernstein/pacs-bridge/internal/state"
)

var (
	errForwardRejected        = errors.New("pacs rejected events batch")
	errDevicesForwardRejected = errors.New("pacs rejected devices")
)

func (p *Poller) devicesLoop(ctx context.Context) {
	p.pollLoop(ctx, p.cfg.Devices, p.devicesCycle)
}

func (p *Poller) eventsLoop(ctx context.Context) {
	p.pollLoop(ctx, p.cfg.Events, p.eventsCycle)
}

// pollLoop owns the target's state for its lifetime. Cycles never overlap
// because they run inline on this goroutine.
func (p *Poller) pollLoop(ctx context.Context, target events.Target, cycle func(context.Context, state.Snapshot) (state.Snapshot, error)) {
	snap := p.loadState(ctx, target)
	p.publish(target.Kind, snap, false)

	for {
		if p.gate.ShouldRun(snap.LastAttempt, target.Interval) {
			snap = p.runCycle(ctx, target, snap, cycle)
			if ctx.Err() != nil {
				return
			}
		}
		if err := p.sleep(ctx, p.gate.Remaining(snap.LastAttempt, target.Interval)); err != nil {
			return
		}
	}
}

func (p *Poller) runCycle(ctx context.Context, target events.Target, snap state.Snapshot, cycle func(context.Context, state.Snapshot) (state.Snapshot, error)) state.Snapshot {
	start := time.Now()
	ctx, logger := p.cycleContext(ctx, target)

	next, err := cycle(ctx, snap)
	p.metrics.RecordCycle(target.Name(), time.Since(start), err)
	if err != nil {
		if ctx.Err() == nil {
			logging.Error(logger, "cycle failed", err,
				slog.String(logging.FieldURL, target.URL),
				slog.Int(logging.FieldStatusCode, retry.StatusCode(err)),
				slog.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()),
			)
		}
		next = recordFailure(next, err)
	} else {
		next = recordSuccess(next, p.gate.Now())
	}
	next.LastAttempt = p.gate.Now()

	p.saveState(ctx, target, next)
	p.publish(target.Kind, next, false)
	return next
}

func (p *Poller) devicesCycle(ctx context.Context, snap state.Snapshot) (state.Snapshot, error) {
	fetcher := p.driver.(providers.DeviceFetcher)
	devices, err := fetcher.FetchDevices(ctx)
	if err != nil {
		return snap, err
	}
	if len(devices) == 0 {
		logging.Warn(logging.FromContext(ctx, p.logger), "no devices to forward")
		return snap, nil
	}
	if !p.forwarder.ForwardDevices(ctx, devices) {
		return snap, errDevicesForwardRejected
	}
	return snap, nil
}

// eventsCycle fetches the window since the last watermark and forwards
// whatever came back. Delivery is at most once: the watermark moves to the
// window end after every completed cycle, including partial fetches and
// rejected batches. Only a shutdown that interrupts a fetch before anything
// arrived leaves it in place.
func (p *Poller) eventsCycle(ctx context.Context, snap state.Snapshot) (state.Snapshot, error) {
	fetcher := p.driver.(providers.EventFetcher)
	now := p.gate.Now()
	p.forwarder.MaybeReset(now)

	window := providers.Window{Start: snap.Watermark, End: now}
	if window.Start.IsZero() {
		window.Start = now.Add(-p.cfg.Events.Interval)
		logging.Info(logging.FromContext(ctx, p.logger), "first events fetch",
			slog.Time("from", window.Start),
			slog.Time("to", window.End),
		)
	}

	evs, fetchErr := fetcher.FetchEvents(ctx, window)
	if fetchErr != nil && len(evs) == 0 && ctx.Err() != nil {
		return snap, fetchErr
	}
	snap.Watermark = window.End

	logger := logging.FromContext(ctx, p.logger)
	if fetchErr != nil && len(evs) > 0 {
		logging.Warn(logger, "window fetched partially, unfetched events are skipped",
			slog.Int(logging.FieldCount, len(evs)),
			slog.Time("from", window.Start),
			slog.Time("to", window.End),
		)
	}
	if len(evs) > 0 && !p.forwarder.ForwardEvents(ctx, evs) {
		logging.Warn(logger, "events batch not accepted, dropping", slog.Int(logging.FieldCount, len(evs)))
		if fetchErr != nil {
			return snap, fetchErr
		}
		return snap, errForwardRejected
	}
	if fetchErr != nil {
		return snap, fetchErr
	}
	if len(evs) == 0 {
		logging.Info(logger, "no events to forward")
	}
	return snap, nil
}

func (p *Poller) cycleContext(ctx context.Context, target events.Target) (context.Context, *slog.Logger) {
	logger := p.logger
	if logger == nil {
		return ctx, nil
	}
	logger = logger.With(
		slog.String(logging.FieldTarget, target.Name()),
		slog.String(logging.FieldCycleID, uuid.NewString()),
	)
	return logging.WithLogger(ctx, logger), logger
}

func (p *Poller) loadState(ctx context.Context, target events.Target) state.Snapshot {
	snap, err := p.store.Load(ctx, target.Name())
	if err != nil {
		logging.Warn(p.logger, "could not load poll state, starting fresh",
			slog.String(logging.FieldTarget, target.Name()),
			"error", err,
		)
		return state.Snapshot{}
	}
	if !snap.LastAttempt.IsZero() {
		logging.Info(p.logger, "resuming poll state",
			slog.String(logging.FieldTarget, target.Name()),
			slog.Time("last_attempt", snap.LastAttempt),
			slog.Time("watermark", snap.Watermark),
		)
	}
	return snap
}

func (p *Poller) saveState(ctx context.Context, target events.Target, snap state.Snapshot) {
	// a cancelled cycle still records its progress
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.store.Save(saveCtx, target.Name(), snap); err != nil {
		logging.Warn(p.logger, "could not save poll state",
			slog.String(logging.FieldTarget, target.Name()),
			"error", err,
		)
	}
}
