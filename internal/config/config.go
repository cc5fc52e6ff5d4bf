// Package config loads the bridge configuration from a YAML file with
// ${VAR} / ${VAR:-default} expansion and a small set of environment
// overrides.
//
//	provider: abc_fitness
//	urls:
//	  pacs_server: https://pacs.example.com/api
//	credentials:
//	  pacs_api_token: ${PACS_API_TOKEN}
//	  app_id: ${ABC_APP_ID}
//	  app_key: ${ABC_APP_KEY}
//	  club_id: "1234"
//	requests:
//	  events:
//	    polling_interval: 12h
//	    timezone_name: America/Chicago
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/preston-bernstein/pacs-bridge/internal/providers/abcfitness"
	"github.com/preston-bernstein/pacs-bridge/internal/retry"
	"github.com/preston-bernstein/pacs-bridge/internal/timeutil"
)

// Config holds runtime configuration for the bridge. It is built once at
// startup and passed by value.
type Config struct {
	Port        string        `yaml:"port"`
	Provider    string        `yaml:"provider"`
	Log         LogConfig     `yaml:"log"`
	Credentials Credentials   `yaml:"credentials"`
	URLs        URLs          `yaml:"urls"`
	Requests    Requests      `yaml:"requests"`
	Metrics     MetricsConfig `yaml:"metrics"`
	State       StateConfig   `yaml:"state"`
	Mirror      MirrorConfig  `yaml:"mirror"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Credentials covers both the PACS token and the vendor secrets. Which
// vendor fields matter depends on the provider.
type Credentials struct {
	PACSToken string `yaml:"pacs_api_token"`
	AppID     string `yaml:"app_id"`
	AppKey    string `yaml:"app_key"`
	ClubID    string `yaml:"club_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type URLs struct {
	Auth       string `yaml:"auth"`
	Devices    string `yaml:"devices"`
	Events     string `yaml:"events"`
	Members    string `yaml:"members"`
	PACSServer string `yaml:"pacs_server"`
	// SkipSSLVerification disables TLS verification for vendor calls only.
	SkipSSLVerification bool `yaml:"skip_ssl_verification"`
}

type Requests struct {
	Devices   DevicesRequest  `yaml:"devices"`
	Events    EventsRequest   `yaml:"events"`
	Members   MembersRequest  `yaml:"members"`
	PACS      PACSRequest     `yaml:"pacs"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type DevicesRequest struct {
	PollingInterval Duration `yaml:"polling_interval"`
}

type EventsRequest struct {
	Streaming          bool     `yaml:"streaming"`
	PollingInterval    Duration `yaml:"polling_interval"`
	CountResetInterval Duration `yaml:"count_reset_interval"`
	PageSize           int      `yaml:"page_size"`
	MaxPages           int      `yaml:"max_pages"`
	TimezoneOffset     string   `yaml:"timezone_offset"`
	TimezoneName       string   `yaml:"timezone_name"`
	GetMemberInfo      bool     `yaml:"get_member_info"`
	// Transport selects the stream transport: "http" or "websocket".
	Transport string   `yaml:"transport"`
	TokenTTL  Duration `yaml:"token_ttl"`
}

type MembersRequest struct {
	PageSize int `yaml:"page_size"`
}

type PACSRequest struct {
	BackoffStart      Duration `yaml:"backoff_start"`
	BackoffMultiplier float64  `yaml:"backoff_multiplier"`
	BackoffLimit      int      `yaml:"backoff_limit"`
}

// RateLimitConfig caps vendor requests per second. Zero disables limiting.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type StateConfig struct {
	Backend       string `yaml:"backend"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
	Dir           string `yaml:"dir"`
}

// MirrorConfig enables publishing forwarded batches to NATS when URL is set.
type MirrorConfig struct {
	URL     string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port:     defaultPort,
		Provider: defaultProvider,
		Log:      LogConfig{Level: defaultLogLevel, Format: defaultLogFormat},
		Requests: Requests{
			Devices: DevicesRequest{PollingInterval: Duration(defaultDevicesInterval)},
			Events: EventsRequest{
				CountResetInterval: Duration(defaultCountResetInterval),
			},
			PACS: PACSRequest{
				BackoffStart:      Duration(defaultBackoffStart),
				BackoffMultiplier: defaultBackoffMultiplier,
				BackoffLimit:      defaultBackoffLimit,
			},
		},
		Metrics: defaultMetrics(),
		Mirror:  MirrorConfig{Subject: defaultMirrorSubject},
	}
}

// Load reads path (when non-empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		cfg := Default()
		cfg.finish()
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of Default.
func Parse(data []byte) (Config, error) {
	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("expand config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.finish()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) finish() {
	c.applyEnv()
	c.applyDefaults()
}

func (c *Config) applyEnv() {
	c.Port = envOrDefault(envPort, c.Port)
	c.Provider = envOrDefault(envProvider, c.Provider)
	c.Log.Level = envOrDefault(envLogLevel, c.Log.Level)
	c.Log.Format = envOrDefault(envLogFormat, c.Log.Format)
	c.URLs.PACSServer = envOrDefault(envPACSURL, c.URLs.PACSServer)
	c.Credentials.PACSToken = envOrDefault(envPACSToken, c.Credentials.PACSToken)
	c.State.RedisAddr = envOrDefault(envRedisAddr, c.State.RedisAddr)
	c.State.RedisPassword = envOrDefault(envRedisPass, c.State.RedisPassword)
	c.State.RedisDB = intEnvOrDefault(envRedisDB, c.State.RedisDB)
	c.State.Dir = envOrDefault(envStateDir, c.State.Dir)
	c.Mirror.URL = envOrDefault(envNATSURL, c.Mirror.URL)
	c.Metrics.applyEnv()
}

// applyDefaults fills values whose default depends on other settings.
func (c *Config) applyDefaults() {
	ev := &c.Requests.Events
	if ev.PollingInterval <= 0 {
		ev.PollingInterval = Duration(defaultEventsInterval)
		if c.Provider == ProviderABCFitness {
			ev.PollingInterval = Duration(abcfitness.DefaultPollingInterval)
		}
	}
	if c.Requests.Devices.PollingInterval <= 0 {
		c.Requests.Devices.PollingInterval = Duration(defaultDevicesInterval)
	}
	if ev.CountResetInterval <= 0 {
		ev.CountResetInterval = Duration(defaultCountResetInterval)
	}
	if c.State.Backend == "" {
		c.State.Backend = StateMemory
		switch {
		case c.State.RedisAddr != "":
			c.State.Backend = StateRedis
		case c.State.Dir != "":
			c.State.Backend = StateFile
		}
	}
	if c.Mirror.Subject == "" {
		c.Mirror.Subject = defaultMirrorSubject
	}
}

// Validate reports every problem that should stop the process from
// starting.
func (c Config) Validate() error {
	var errs []error
	if c.URLs.PACSServer == "" {
		errs = append(errs, errors.New("urls.pacs_server is required"))
	}
	switch c.Provider {
	case ProviderFixture:
	case ProviderABCFitness:
		if c.Credentials.AppID == "" || c.Credentials.AppKey == "" {
			errs = append(errs, errors.New("abc_fitness requires credentials.app_id and credentials.app_key"))
		}
		if c.Credentials.ClubID == "" {
			errs = append(errs, errors.New("abc_fitness requires credentials.club_id"))
		}
	case ProviderStream:
		if c.URLs.Events == "" {
			errs = append(errs, errors.New("urls.events is required for the stream provider"))
		}
		if !c.Requests.Events.Streaming {
			errs = append(errs, errors.New("stream provider requires requests.events.streaming: true"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if err := c.RetryPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("requests.pacs: %w", err))
	}
	if c.Requests.Events.PollingInterval < 0 || c.Requests.Devices.PollingInterval < 0 {
		errs = append(errs, errors.New("polling intervals must not be negative"))
	}
	switch c.State.Backend {
	case StateMemory:
	case StateRedis:
		if c.State.RedisAddr == "" {
			errs = append(errs, errors.New("state.redis_addr is required for the redis backend"))
		}
	case StateFile:
		if c.State.Dir == "" {
			errs = append(errs, errors.New("state.dir is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state backend %q", c.State.Backend))
	}
	return errors.Join(errs...)
}

// RetryPolicy is the PACS backoff policy.
func (c Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		Start:       c.Requests.PACS.BackoffStart.Duration(),
		Multiplier:  c.Requests.PACS.BackoffMultiplier,
		MaxAttempts: c.Requests.PACS.BackoffLimit,
	}
}

// Location resolves the events timezone. Bad input falls back to UTC and
// the parse error is returned for logging.
func (c Config) Location() (*time.Location, error) {
	return timeutil.ResolveLocation(c.Requests.Events.TimezoneOffset, c.Requests.Events.TimezoneName)
}
