// Package config loads and validates the LoyalInn YAML configuration, with
// secrets overridable from the environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mhdraihanr/loyalinn-pms/internal/events"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms"
	"github.com/mhdraihanr/loyalinn-pms/internal/pms/qloapps"
	"github.com/mhdraihanr/loyalinn-pms/internal/redisx"
	pmssync "github.com/mhdraihanr/loyalinn-pms/internal/sync"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the full application configuration loaded from YAML.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Sync     SyncConfig     `yaml:"sync"`
	QloApps  QloAppsConfig  `yaml:"qloapps"`
	Log      LogConfig      `yaml:"log"`

	// Redis enables the last-sync-result cache. Omit to disable.
	Redis *RedisConfig `yaml:"redis,omitempty"`

	// Kafka enables ReservationsSynced events. Omit to disable.
	Kafka *KafkaConfig `yaml:"kafka,omitempty"`

	// Telemetry configures optional OpenTelemetry export via OTLP gRPC.
	// Omit the block entirely to disable telemetry.
	Telemetry *TelemetryConfig `yaml:"telemetry,omitempty"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	// Addr is the listen address. Defaults to ":8080".
	Addr string `yaml:"addr"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `yaml:"driver"`

	// DSN is the SQLite file path or the PostgreSQL connection string.
	// Empty with sqlite uses ~/.local/share/loyalinn/loyalinn.db.
	DSN string `yaml:"dsn"`
}

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	// JWTSecret is the HS256 key shared with the identity provider.
	// Required by the serve command.
	JWTSecret string `yaml:"jwt_secret"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `yaml:"issuer"`
}

// SyncConfig tunes the sync engine.
type SyncConfig struct {
	// Schedule is a cron expression or descriptor. Defaults to "@every 30m".
	Schedule string `yaml:"schedule"`

	// MaxParallelTenants bounds concurrent tenant syncs. 1-64, default 4.
	MaxParallelTenants int `yaml:"max_parallel_tenants"`

	// WindowDays is the half-width of the sync window. 1-90, default 7.
	WindowDays int `yaml:"window_days"`
}

// QloAppsConfig tunes the QloApps webservice client.
type QloAppsConfig struct {
	// Timeout bounds a single call. Defaults to 15s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts is how many times a retryable call is tried. 1-10, default 3.
	MaxAttempts int `yaml:"max_attempts"`

	// RatePerSecond caps outbound calls per adapter. Zero means the default
	// of 5; a negative value disables throttling.
	RatePerSecond float64 `yaml:"rate_per_second"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is debug, info (default), warn or error.
	Level string `yaml:"level"`

	// Format is text (default) or json.
	Format string `yaml:"format"`
}

// RedisConfig holds the cache connection.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// TTL is how long a tenant's last result stays readable. Defaults to 168h.
	TTL time.Duration `yaml:"ttl"`
}

// KafkaConfig holds the event publisher settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`

	// Topic defaults to "pms.reservations.synced".
	Topic string `yaml:"topic"`

	// Producer names this service in event envelopes. Defaults to "loyalinn".
	Producer string `yaml:"producer"`
}

// TelemetryConfig holds optional OpenTelemetry settings.
type TelemetryConfig struct {
	// OTLPEndpoint is the gRPC host:port of the OTLP collector (e.g. "localhost:4317").
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Insecure disables TLS for the collector connection. Use for local collectors.
	Insecure bool `yaml:"insecure"`

	// ServiceName overrides the OTel service.name attribute. Defaults to "loyalinn".
	ServiceName string `yaml:"service_name"`

	// Environment is reported as deployment.environment, e.g. "production".
	Environment string `yaml:"environment"`

	// Headers contains key-value pairs sent as gRPC metadata on every OTLP
	// request, e.g. Authorization: "Bearer <token>".
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Environment variables that override file values.
const (
	EnvHTTPAddr       = "LOYALINN_HTTP_ADDR"
	EnvDatabaseDriver = "LOYALINN_DATABASE_DRIVER"
	EnvDatabaseDSN    = "LOYALINN_DATABASE_DSN"
	EnvJWTSecret      = "LOYALINN_JWT_SECRET"
	EnvRedisAddr      = "LOYALINN_REDIS_ADDR"
	EnvRedisPassword  = "LOYALINN_REDIS_PASSWORD"
	EnvKafkaBrokers   = "LOYALINN_KAFKA_BROKERS"
	EnvOTLPEndpoint   = "LOYALINN_OTLP_ENDPOINT"
	EnvLogLevel       = "LOYALINN_LOG_LEVEL"
)

// DefaultPath returns the default config file path: ~/.config/loyalinn/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "loyalinn", "config.yaml"), nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration file at path, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true) // reject unknown keys to catch typos early
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	return finish(&cfg)
}

// FromEnv builds a configuration from defaults and environment variables
// only, for running without a config file.
func FromEnv() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides file values with LOYALINN_* variables. Setting
// LOYALINN_REDIS_ADDR, LOYALINN_KAFKA_BROKERS or LOYALINN_OTLP_ENDPOINT
// enables the corresponding block.
func (c *Config) applyEnv() {
	setString(&c.HTTP.Addr, EnvHTTPAddr)
	setString(&c.Database.Driver, EnvDatabaseDriver)
	setString(&c.Database.DSN, EnvDatabaseDSN)
	setString(&c.Auth.JWTSecret, EnvJWTSecret)
	setString(&c.Log.Level, EnvLogLevel)

	if v := os.Getenv(EnvRedisAddr); v != "" {
		if c.Redis == nil {
			c.Redis = &RedisConfig{}
		}
		c.Redis.Addr = v
	}
	if c.Redis != nil {
		setString(&c.Redis.Password, EnvRedisPassword)
	}
	if v := os.Getenv(EnvKafkaBrokers); v != "" {
		if c.Kafka == nil {
			c.Kafka = &KafkaConfig{}
		}
		c.Kafka.Brokers = splitCSV(v)
	}
	if v := os.Getenv(EnvOTLPEndpoint); v != "" {
		if c.Telemetry == nil {
			c.Telemetry = &TelemetryConfig{}
		}
		c.Telemetry.OTLPEndpoint = v
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// validate fills defaults and checks that every field is well-formed.
func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}

	switch c.Database.Driver {
	case "":
		c.Database.Driver = DriverSQLite
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver %q must be %q or %q", c.Database.Driver, DriverSQLite, DriverPostgres)
	}
	if c.Database.Driver == DriverPostgres && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the postgres driver")
	}

	if c.Sync.Schedule == "" {
		c.Sync.Schedule = pmssync.DefaultSchedule
	}
	if c.Sync.MaxParallelTenants == 0 {
		c.Sync.MaxParallelTenants = pmssync.DefaultMaxParallelTenants
	}
	if c.Sync.MaxParallelTenants < 1 || c.Sync.MaxParallelTenants > 64 {
		return fmt.Errorf("sync.max_parallel_tenants %d must be between 1 and 64", c.Sync.MaxParallelTenants)
	}
	if c.Sync.WindowDays == 0 {
		c.Sync.WindowDays = pmssync.DefaultWindowDays
	}
	if c.Sync.WindowDays < 1 || c.Sync.WindowDays > 90 {
		return fmt.Errorf("sync.window_days %d must be between 1 and 90", c.Sync.WindowDays)
	}

	if c.QloApps.Timeout == 0 {
		c.QloApps.Timeout = qloapps.DefaultTimeout
	}
	if c.QloApps.Timeout < time.Second {
		return fmt.Errorf("qloapps.timeout %v is too short (minimum 1s)", c.QloApps.Timeout)
	}
	if c.QloApps.MaxAttempts == 0 {
		c.QloApps.MaxAttempts = pms.DefaultMaxAttempts
	}
	if c.QloApps.MaxAttempts < 1 || c.QloApps.MaxAttempts > 10 {
		return fmt.Errorf("qloapps.max_attempts %d must be between 1 and 10", c.QloApps.MaxAttempts)
	}
	if c.QloApps.RatePerSecond == 0 {
		c.QloApps.RatePerSecond = qloapps.DefaultRatePerSecond
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "":
		c.Log.Format = "text"
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}

	if c.Redis != nil {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when redis is configured")
		}
		if c.Redis.TTL == 0 {
			c.Redis.TTL = redisx.TTLLastSync
		}
		if c.Redis.TTL < time.Minute {
			return fmt.Errorf("redis.ttl %v is too short (minimum 1m)", c.Redis.TTL)
		}
	}

	if c.Kafka != nil {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers must contain at least one entry")
		}
		if c.Kafka.Topic == "" {
			c.Kafka.Topic = events.TopicReservationsSynced
		}
		if c.Kafka.Producer == "" {
			c.Kafka.Producer = events.DefaultProducer
		}
	}

	if c.Telemetry != nil {
		if c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required when telemetry is configured")
		}
	}

	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q must be debug, info, warn or error", l.Level)
	}
	return lvl, nil
}

// String returns addr/db for log lines.
func (r *RedisConfig) String() string {
	return r.Addr + "/" + strconv.Itoa(r.DB)
}
