// Package poller schedules device and event collection for one driver and
// hands the results to the forwarder.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/logging"
	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/state"
	"github.com/preston-bernstein/pacs-bridge/internal/timeutil"
)

const (
	defaultDevicesInterval = 2 * time.Hour
	defaultEventsInterval  = 10 * time.Second
	// defaultResetTick bounds how late a count reset can run while a stream
	// is quiet or reconnecting.
	defaultResetTick = time.Minute
)

// Forwarder delivers batches to the PACS API.
type Forwarder interface {
	ForwardEvents(ctx context.Context, batch []events.Event) bool
	ForwardDevices(ctx context.Context, devices []events.Device) bool
	MaybeReset(now time.Time) bool
}

type Config struct {
	Devices events.Target
	Events  events.Target
}

// Poller runs a devices loop and an events loop, each in its own goroutine
// with its own cancellable context.
type Poller struct {
	driver    providers.Driver
	forwarder Forwarder
	store     state.Store
	logger    *slog.Logger
	metrics   *metrics.Recorder
	cfg       Config
	gate      timeutil.Gate
	sleep     func(ctx context.Context, d time.Duration) error
	resetTick time.Duration

	startMu sync.Mutex
	started bool
	cancels map[events.Kind]context.CancelFunc
	wg      sync.WaitGroup

	stopOnce sync.Once

	statusMu sync.RWMutex
	status   map[events.Kind]Status
}

// New constructs a Poller with sane defaults. A nil store keeps state in
// memory only.
func New(driver providers.Driver, forwarder Forwarder, store state.Store, logger *slog.Logger, recorder *metrics.Recorder, cfg Config) *Poller {
	cfg.Devices.Kind = events.KindDevices
	cfg.Events.Kind = events.KindEvents
	if cfg.Devices.Interval <= 0 {
		cfg.Devices.Interval = defaultDevicesInterval
	}
	if cfg.Events.Interval <= 0 {
		cfg.Events.Interval = defaultEventsInterval
	}
	if store == nil {
		store = state.NewMemoryStore()
	}
	p := &Poller{
		driver:    driver,
		forwarder: forwarder,
		store:     store,
		logger:    logger,
		metrics:   recorder,
		cfg:       cfg,
		gate:      timeutil.NewGate(time.Now),
		sleep:     sleepContext,
		resetTick: defaultResetTick,
		cancels:   make(map[events.Kind]context.CancelFunc),
		status:    make(map[events.Kind]Status),
	}
	p.status[events.KindDevices] = Status{Target: string(events.KindDevices), Enabled: p.devicesEnabled()}
	p.status[events.KindEvents] = Status{Target: string(events.KindEvents), Enabled: p.eventsEnabled(), Streaming: p.streaming()}
	return p
}

// Start launches the enabled loops. Calling it twice is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.startMu.Lock()
	defer p.startMu.Unlock()
	if p.started {
		return
	}
	p.started = true

	if p.devicesEnabled() {
		p.launch(ctx, events.KindDevices, p.devicesLoop)
	} else {
		logging.Info(p.logger, "devices not configured for driver, devices loop disabled", slog.String(logging.FieldProvider, p.driver.Name()))
	}
	switch {
	case p.streaming():
		p.launch(ctx, events.KindEvents, p.streamLoop)
	case p.eventsEnabled():
		p.launch(ctx, events.KindEvents, p.eventsLoop)
	default:
		logging.Warn(p.logger, "driver provides no events", slog.String(logging.FieldProvider, p.driver.Name()))
	}
}

func (p *Poller) launch(parent context.Context, kind events.Kind, loop func(context.Context)) {
	ctx, cancel := context.WithCancel(parent)
	p.cancels[kind] = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logging.Info(p.logger, "loop started", slog.String(logging.FieldTarget, string(kind)))
		loop(ctx)
		logging.Info(p.logger, "loop stopped", slog.String(logging.FieldTarget, string(kind)))
	}()
}

// StopTarget cancels a single loop and leaves the other running.
func (p *Poller) StopTarget(kind events.Kind) {
	p.startMu.Lock()
	cancel := p.cancels[kind]
	p.startMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Stop cancels both loops and waits for them to exit or ctx to expire.
func (p *Poller) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		p.startMu.Lock()
		for _, cancel := range p.cancels {
			cancel()
		}
		p.startMu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Driver exposes the underlying driver (primarily for cleanup in callers).
func (p *Poller) Driver() providers.Driver {
	return p.driver
}

func (p *Poller) devicesEnabled() bool {
	if _, ok := p.driver.(providers.DeviceFetcher); !ok {
		return false
	}
	if toggle, ok := p.driver.(providers.DeviceToggle); ok {
		return toggle.DevicesEnabled()
	}
	return true
}

func (p *Poller) eventsEnabled() bool {
	if _, ok := p.driver.(providers.EventFetcher); ok {
		return true
	}
	return p.streaming()
}

func (p *Poller) streaming() bool {
	if !p.cfg.Events.Streaming {
		return false
	}
	_, ok := p.driver.(providers.EventStreamer)
	return ok
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
