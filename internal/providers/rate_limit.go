package providers

import (
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

// rateLimitedDoer holds every vendor HTTP call until the limiter grants a
// token, keeping drivers under upstream quotas.
type rateLimitedDoer struct {
	next    retry.Doer
	limiter *rate.Limiter
	name    string
	logger  *slog.Logger
}

// NewRateLimited wraps next so calls proceed at most perSecond times a
// second with the given burst. A non-positive rate disables limiting.
func NewRateLimited(next retry.Doer, name string, perSecond float64, burst int, logger *slog.Logger) retry.Doer {
	if next == nil {
		next = http.DefaultClient
	}
	if perSecond <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedDoer{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		name:    name,
		logger:  logger,
	}
}

func (d *rateLimitedDoer) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := d.limiter.Wait(ctx); err != nil {
		LogWithProvider(ctx, d.logger, slog.LevelWarn, d.name, "rate-limited request canceled", "error", err)
		return nil, err
	}
	return d.next.Do(req)
}
