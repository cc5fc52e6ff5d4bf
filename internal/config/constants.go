package config

import "time"

const (
	envPort         = "PORT"
	envProvider     = "PROVIDER"
	envLogLevel     = "LOG_LEVEL"
	envLogFormat    = "LOG_FORMAT"
	envPACSURL      = "PACS_SERVER_URL"
	envPACSToken    = "PACS_API_TOKEN"
	envMetricsPort  = "METRICS_PORT"
	envMetricsOn    = "METRICS_ENABLED"
	envOtelEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelService  = "OTEL_SERVICE_NAME"
	envOtelInsecure = "OTEL_EXPORTER_OTLP_INSECURE"
	envRedisAddr    = "REDIS_ADDR"
	envRedisPass    = "REDIS_PASSWORD"
	envRedisDB      = "REDIS_DB"
	envNATSURL      = "NATS_URL"
	envStateDir     = "STATE_DIR"

	ProviderABCFitness = "abc_fitness"
	ProviderStream     = "stream"
	ProviderFixture    = "fixture"

	StateMemory = "memory"
	StateRedis  = "redis"
	StateFile   = "file"

	defaultPort        = "4000"
	defaultProvider    = ProviderFixture
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultMetricsPort = "9090"
	defaultServiceName = "pacs-bridge"

	defaultDevicesInterval    = 2 * time.Hour
	defaultEventsInterval     = 10 * time.Second
	defaultCountResetInterval = 24 * time.Hour
	defaultBackoffStart       = 2 * time.Second
	defaultBackoffMultiplier  = 2.0
	defaultBackoffLimit       = 3
	defaultMirrorSubject      = "pacsbridge"
)
