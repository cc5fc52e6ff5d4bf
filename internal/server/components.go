package server

import (
	"context"
	"log/slog"

	"github.com/preston-bernstein/pacs-bridge/internal/config"
	"github.com/preston-bernstein/pacs-bridge/internal/forwarder"
	"github.com/preston-bernstein/pacs-bridge/internal/mirror"
	"github.com/preston-bernstein/pacs-bridge/internal/state"
)

// closeFunc releases a connection opened during wiring.
type closeFunc func() error

var (
	redisConnect = state.NewRedisStore
	natsConnect  = mirror.Connect
)

// buildStateStore returns the configured store. A backend that cannot be
// opened falls back to memory so the bridge still runs.
func buildStateStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (state.Store, closeFunc) {
	switch cfg.State.Backend {
	case config.StateRedis:
		return buildRedisStore(ctx, cfg, logger)
	case config.StateFile:
		store, err := state.NewFileStore(cfg.State.Dir)
		if err != nil {
			if logger != nil {
				logger.Warn("file state store unavailable, keeping state in memory", "error", err, slog.String("dir", cfg.State.Dir))
			}
			return state.NewMemoryStore(), nil
		}
		return store, nil
	default:
		return state.NewMemoryStore(), nil
	}
}

func buildRedisStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (state.Store, closeFunc) {
	store, err := redisConnect(ctx, state.RedisConfig{
		Addr:      cfg.State.RedisAddr,
		Password:  cfg.State.RedisPassword,
		DB:        cfg.State.RedisDB,
		KeyPrefix: cfg.State.KeyPrefix,
	})
	if err != nil {
		if logger != nil {
			logger.Warn("redis state store unavailable, keeping state in memory", "error", err, slog.String("addr", cfg.State.RedisAddr))
		}
		return state.NewMemoryStore(), nil
	}
	if logger != nil {
		logger.Info("poll state stored in redis", slog.String("addr", cfg.State.RedisAddr))
	}
	return store, store.Close
}

// buildMirror connects to NATS when a URL is configured. A nil mirror is
// valid and disables publishing.
func buildMirror(cfg config.Config, logger *slog.Logger) (forwarder.Mirror, closeFunc) {
	if cfg.Mirror.URL == "" {
		return nil, nil
	}
	m, err := natsConnect(mirror.Config{
		URL:     cfg.Mirror.URL,
		Subject: cfg.Mirror.Subject,
		Source:  cfg.Provider,
		Name:    cfg.Metrics.ServiceName,
	}, logger)
	if err != nil {
		if logger != nil {
			logger.Warn("event mirror disabled", "error", err)
		}
		return nil, nil
	}
	return m, func() error {
		m.Close()
		return nil
	}
}
