package server

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/preston-bernstein/pacs-bridge/internal/config"
	"github.com/preston-bernstein/pacs-bridge/internal/metrics"
	"github.com/preston-bernstein/pacs-bridge/internal/providers"
	"github.com/preston-bernstein/pacs-bridge/internal/providers/abcfitness"
	"github.com/preston-bernstein/pacs-bridge/internal/providers/fixture"
	"github.com/preston-bernstein/pacs-bridge/internal/providers/stream"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
)

// providerFactory assembles the configured driver with the shared vendor
// wrappers (rate limit + retry).
type providerFactory struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func newProviderFactory(logger *slog.Logger, metrics *metrics.Recorder) providerFactory {
	return providerFactory{logger: logger, metrics: metrics}
}

func (f providerFactory) build(cfg config.Config) (providers.Driver, error) {
	switch cfg.Provider {
	case config.ProviderFixture, "":
		return fixture.New(), nil
	case config.ProviderABCFitness:
		loc, err := cfg.Location()
		if err != nil && f.logger != nil {
			f.logger.Error("invalid events timezone, using UTC", "error", err)
		}
		ev := cfg.Requests.Events
		return abcfitness.NewClient(abcfitness.Config{
			AppID:          cfg.Credentials.AppID,
			AppKey:         cfg.Credentials.AppKey,
			ClubID:         cfg.Credentials.ClubID,
			EventsURL:      orDefault(cfg.URLs.Events, abcfitness.DefaultEventsURL),
			DevicesURL:     cfg.URLs.Devices,
			MembersURL:     orDefault(cfg.URLs.Members, abcfitness.DefaultMembersURL),
			PageSize:       ev.PageSize,
			MemberPageSize: cfg.Requests.Members.PageSize,
			MaxPages:       ev.MaxPages,
			GetMemberInfo:  ev.GetMemberInfo,
			Location:       loc,
		}, f.requester(cfg, vendorTimeout), f.logger, f.metrics), nil
	case config.ProviderStream:
		// stream reads stay open indefinitely, so no client timeout
		return stream.New(stream.Config{
			URL:        cfg.URLs.Events,
			AuthURL:    cfg.URLs.Auth,
			DevicesURL: cfg.URLs.Devices,
			Username:   cfg.Credentials.Username,
			Password:   cfg.Credentials.Password,
			Transport:  cfg.Requests.Events.Transport,
			TokenTTL:   cfg.Requests.Events.TokenTTL.Duration(),
		}, f.requester(cfg, 0), f.logger, f.metrics)
	default:
		return nil, fmt.Errorf("%w: %q", providers.ErrUnknownProvider, cfg.Provider)
	}
}

// requester builds the vendor-side retrying requester. A zero timeout means
// none.
func (f providerFactory) requester(cfg config.Config, timeout time.Duration) *retry.Requester {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.URLs.SkipSSLVerification {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		if f.logger != nil {
			f.logger.Warn("TLS verification disabled for vendor requests")
		}
	}
	client := &http.Client{Transport: transport, Timeout: timeout}
	rl := cfg.Requests.RateLimit
	doer := providers.NewRateLimited(client, cfg.Provider, rl.PerSecond, rl.Burst, f.logger)
	return retry.New(doer, cfg.RetryPolicy(), f.logger, f.metrics)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
