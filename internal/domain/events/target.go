package events

import "time"

// Kind identifies which remote resource a target polls.
type Kind string

const (
	KindEvents  Kind = "events"
	KindDevices Kind = "devices"
)

// Target describes a remote resource to poll. It is built once from
// configuration and never mutated.
type Target struct {
	Kind      Kind
	URL       string
	PageSize  int
	Interval  time.Duration
	Streaming bool
}

// Name returns a stable identifier used in logs, metrics and state keys.
func (t Target) Name() string {
	return string(t.Kind)
}
