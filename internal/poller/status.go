package poller

import (
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/state"
)

const readyFailureThreshold = 3

// Status describes the recent health of one loop.
type Status struct {
	Target              string    `json:"target"`
	Enabled             bool      `json:"enabled"`
	Streaming           bool      `json:"streaming"`
	Connected           bool      `json:"connected"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	Watermark           time.Time `json:"watermark"`
}

// IsReady reports whether the loop has had a recent success and is not
// failing repeatedly. Disabled loops never block readiness.
func (s Status) IsReady() bool {
	if !s.Enabled {
		return true
	}
	if s.LastSuccess.IsZero() {
		return false
	}
	return s.ConsecutiveFailures < readyFailureThreshold
}

// Status returns a copy of the loop's published state.
func (p *Poller) Status(kind events.Kind) Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status[kind]
}

// Statuses returns both loops' states keyed by target name.
func (p *Poller) Statuses() map[string]Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	out := make(map[string]Status, len(p.status))
	for kind, st := range p.status {
		out[string(kind)] = st
	}
	return out
}

// Ready reports whether every enabled loop is ready.
func (p *Poller) Ready() bool {
	for _, st := range p.Statuses() {
		if !st.IsReady() {
			return false
		}
	}
	return true
}

func (p *Poller) publish(kind events.Kind, snap state.Snapshot, connected bool) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	st := p.status[kind]
	st.ConsecutiveFailures = snap.ConsecutiveFailures
	st.LastError = snap.LastError
	st.LastAttempt = snap.LastAttempt
	st.LastSuccess = snap.LastSuccess
	st.Watermark = snap.Watermark
	st.Connected = connected
	p.status[kind] = st
}

func recordSuccess(snap state.Snapshot, at time.Time) state.Snapshot {
	snap.ConsecutiveFailures = 0
	snap.LastError = ""
	snap.LastSuccess = at
	return snap
}

func recordFailure(snap state.Snapshot, err error) state.Snapshot {
	snap.ConsecutiveFailures++
	if err != nil {
		snap.LastError = err.Error()
	}
	return snap
}
