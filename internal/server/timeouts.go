package server

import "time"

// Status surface.
const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
)

// Outbound clients. Streaming vendors get no client timeout because the
// connection is expected to stay open.
const (
	vendorTimeout = 30 * time.Second
	pacsTimeout   = 30 * time.Second
)

// shutdownTimeout remains a var for tests to override.
var shutdownTimeout = 10 * time.Second
