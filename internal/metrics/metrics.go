package metrics

import (
	"sync"
	"time"
)

type targetStats struct {
	requestAttempts int
	requestErrors   int
	cycles          int
	cycleErrors     int
	forwarded       int
	forwardFailures int
	dropped         int
	lastLatency     time.Duration
}

// Recorder captures lightweight, in-memory metrics about outbound requests and
// poll cycles, keyed by target name, and mirrors them to OpenTelemetry when
// instruments are configured.
type Recorder struct {
	mu    sync.Mutex
	stats map[string]*targetStats
	otel  *otelInstruments
}

func NewRecorder() *Recorder {
	return newRecorder(nil)
}

func newRecorder(otel *otelInstruments) *Recorder {
	return &Recorder{
		stats: make(map[string]*targetStats),
		otel:  otel,
	}
}

// RecordRequestAttempt counts one HTTP attempt made by the backoff requester.
func (r *Recorder) RecordRequestAttempt(target string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.update(target, func(s *targetStats) {
		s.requestAttempts++
		s.lastLatency = duration
		if err != nil {
			s.requestErrors++
		}
	})
	if r.otel != nil {
		r.otel.recordRequestAttempt(target, duration, err)
	}
}

// RecordCycle tracks one fetch-normalize-forward pass for a target.
func (r *Recorder) RecordCycle(target string, duration time.Duration, err error) {
	if r == nil {
		return
	}
	r.update(target, func(s *targetStats) {
		s.cycles++
		if err != nil {
			s.cycleErrors++
		}
	})
	if r.otel != nil {
		r.otel.recordCycle(target, duration, err)
	}
}

// RecordForward tracks the outcome of forwarding a batch of n items.
func (r *Recorder) RecordForward(target string, n int, ok bool) {
	if r == nil {
		return
	}
	r.update(target, func(s *targetStats) {
		if ok {
			s.forwarded += n
		} else {
			s.forwardFailures++
		}
	})
	if r.otel != nil {
		r.otel.recordForward(target, n, ok)
	}
}

// RecordDropped counts vendor records discarded during normalization.
func (r *Recorder) RecordDropped(target string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.update(target, func(s *targetStats) { s.dropped += n })
	if r.otel != nil {
		r.otel.recordDropped(target, n)
	}
}

// RecordHTTPRequest tracks basic HTTP metrics for the status server.
func (r *Recorder) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if r == nil || r.otel == nil {
		return
	}
	r.otel.recordHTTPRequest(method, path, status, duration)
}

// Snapshot is a copy of the current stats for a target.
type Snapshot struct {
	RequestAttempts int
	RequestErrors   int
	Cycles          int
	CycleErrors     int
	Forwarded       int
	ForwardFailures int
	Dropped         int
	LastLatency     time.Duration
}

// Snapshot returns a copy of the current stats for the target.
func (r *Recorder) Snapshot(target string) Snapshot {
	if r == nil {
		return Snapshot{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[target]
	if !ok || s == nil {
		return Snapshot{}
	}
	return Snapshot{
		RequestAttempts: s.requestAttempts,
		RequestErrors:   s.requestErrors,
		Cycles:          s.cycles,
		CycleErrors:     s.cycleErrors,
		Forwarded:       s.forwarded,
		ForwardFailures: s.forwardFailures,
		Dropped:         s.dropped,
		LastLatency:     s.lastLatency,
	}
}

func (r *Recorder) update(target string, fn func(*targetStats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stats[target]
	if !ok {
		s = &targetStats{}
		r.stats[target] = s
	}
	fn(s)
}
