package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

// Driver is a vendor integration. The scheduler discovers what it can do by
// asserting the capability interfaces below.
type Driver interface {
	Name() string
}

// Window is the vendor time range a fetch covers. Both bounds are sent to the
// vendor as given.
type Window struct {
	Start time.Time
	End   time.Time
}

// EventFetcher returns the events recorded inside the window. On failure it
// may still return the events gathered before the error.
type EventFetcher interface {
	FetchEvents(ctx context.Context, w Window) ([]events.Event, error)
}

// DeviceFetcher lists the vendor's readers/doors/stations.
type DeviceFetcher interface {
	FetchDevices(ctx context.Context) ([]events.Device, error)
}

// DeviceToggle is implemented by drivers whose device listing depends on
// configuration. A false result disables the devices loop.
type DeviceToggle interface {
	DevicesEnabled() bool
}

// RecordStream yields raw records from a long-lived connection. Next returns
// io.EOF when the vendor closes the stream.
type RecordStream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// EventStreamer pushes events over a long-lived connection instead of being
// polled.
type EventStreamer interface {
	OpenStream(ctx context.Context) (RecordStream, error)
	DecodeRecord(record []byte) ([]events.Event, error)
}

// Requester is the backoff-aware HTTP caller shared by drivers.
type Requester interface {
	Do(ctx context.Context, method, rawURL string, opts retry.Options) (*http.Response, error)
}
