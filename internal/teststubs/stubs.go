package teststubs

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
)

// StubDriver is a test double for a polling driver.
type StubDriver struct {
	Events  []events.Event
	Devices []events.Device
	Err     error
	Calls   atomic.Int32
	Notify  chan struct{}

	mu      sync.Mutex
	windows []providers.Window
}

func (s *StubDriver) Name() string { return "stub" }

// FetchEvents returns configured events and error while tracking calls.
func (s *StubDriver) FetchEvents(ctx context.Context, w providers.Window) ([]events.Event, error) {
	_ = ctx
	s.mu.Lock()
	s.windows = append(s.windows, w)
	s.mu.Unlock()
	s.notify()
	s.Calls.Add(1)
	return s.Events, s.Err
}

// FetchDevices returns configured devices and error while tracking calls.
func (s *StubDriver) FetchDevices(ctx context.Context) ([]events.Device, error) {
	_ = ctx
	s.notify()
	s.Calls.Add(1)
	return s.Devices, s.Err
}

// Windows returns every window FetchEvents was called with.
func (s *StubDriver) Windows() []providers.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]providers.Window, len(s.windows))
	copy(out, s.windows)
	return out
}

func (s *StubDriver) notify() {
	if s.Notify != nil {
		select {
		case <-s.Notify:
		default:
			close(s.Notify)
		}
	}
}

// StubStreamer replays Records on every OpenStream call. With Hold set the
// stream stays open after the last record until ctx is cancelled.
type StubStreamer struct {
	Records [][]byte
	Hold    bool
	OpenErr error
	Decode  func([]byte) ([]events.Event, error)
	Opens   atomic.Int32
}

func (s *StubStreamer) Name() string { return "stub-stream" }

func (s *StubStreamer) OpenStream(ctx context.Context) (providers.RecordStream, error) {
	_ = ctx
	s.Opens.Add(1)
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	return &sliceStream{records: s.Records, hold: s.Hold}, nil
}

func (s *StubStreamer) DecodeRecord(record []byte) ([]events.Event, error) {
	return s.Decode(record)
}

type sliceStream struct {
	records [][]byte
	pos     int
	hold    bool
}

func (s *sliceStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.records) {
		if s.hold {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}

func (s *sliceStream) Close() error { return nil }

// StubForwarder records batches and reports OK for each.
type StubForwarder struct {
	OK bool

	mu      sync.Mutex
	batches [][]events.Event
	devices [][]events.Device
	resets  []time.Time
	count   int64
}

func (f *StubForwarder) ForwardEvents(ctx context.Context, batch []events.Event) bool {
	_ = ctx
	if len(batch) == 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	if f.OK {
		f.count += int64(len(batch))
	}
	return f.OK
}

func (f *StubForwarder) ForwardDevices(ctx context.Context, devices []events.Device) bool {
	_ = ctx
	if len(devices) == 0 {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = append(f.devices, devices)
	return f.OK
}

func (f *StubForwarder) MaybeReset(now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, now)
	return false
}

func (f *StubForwarder) Count() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *StubForwarder) Batches() [][]events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]events.Event(nil), f.batches...)
}

func (f *StubForwarder) DeviceBatches() [][]events.Device {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]events.Device(nil), f.devices...)
}

func (f *StubForwarder) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.resets)
}
