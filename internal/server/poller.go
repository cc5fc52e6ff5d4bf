package server

import (
	"context"

	"github.com/preston-bernstein/pacs-bridge/internal/poller"
)

// Poller defines the minimal poller behavior needed by the server.
type Poller interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
	Statuses() map[string]poller.Status
	Ready() bool
}
