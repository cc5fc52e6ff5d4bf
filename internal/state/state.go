// Package state persists per-target poll progress across restarts.
package state

import (
	"context"
	"time"
)

// Snapshot is the persisted progress of one poll target.
type Snapshot struct {
	LastAttempt         time.Time `json:"last_attempt"`
	LastSuccess         time.Time `json:"last_success"`
	Watermark           time.Time `json:"watermark"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// Store loads and saves snapshots by target name. A target never saved
// loads as the zero Snapshot.
type Store interface {
	Load(ctx context.Context, target string) (Snapshot, error)
	Save(ctx context.Context, target string, snap Snapshot) error
}
