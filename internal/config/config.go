// Package config loads service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix scopes environment overrides, e.g.
// WARROOM_SERVER_PORT=9090 -> server.port.
const envPrefix = "WARROOM_"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Store     StoreConfig     `koanf:"store"`
	Database  DatabaseConfig  `koanf:"database"`
	Broadcast BroadcastConfig `koanf:"broadcast"`
	Live      LiveConfig      `koanf:"live"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Ingest    IngestConfig    `koanf:"ingest"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metricsport"`
	ReadTimeout       time.Duration `koanf:"readtimeout"`
	ReadHeaderTimeout time.Duration `koanf:"readheadertimeout"`
	WriteTimeout      time.Duration `koanf:"writetimeout"`
	IdleTimeout       time.Duration `koanf:"idletimeout"`
}

// StoreConfig selects the durable event store backend.
type StoreConfig struct {
	// Driver is "postgres" or "memory". Memory is simulation mode: no
	// durability across restarts, intended for local development.
	Driver string `koanf:"driver"`
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"maxopenconns"`
	MaxIdleConns    int           `koanf:"maxidleconns"`
	ConnMaxLifetime time.Duration `koanf:"connmaxlifetime"`
	ConnectTimeout  time.Duration `koanf:"connecttimeout"`
	ConnectAttempts int           `koanf:"connectattempts"`
	MigrationsPath  string        `koanf:"migrationspath"`
}

// BroadcastConfig selects the fan-out channel backend.
type BroadcastConfig struct {
	// Driver is "memory" or "redis".
	Driver        string `koanf:"driver"`
	RedisAddr     string `koanf:"redisaddr"`
	RedisPassword string `koanf:"redispassword"`
	RedisDB       int    `koanf:"redisdb"`
}

// LiveConfig configures the live session channel.
type LiveConfig struct {
	Room          string `koanf:"room"`
	SessionBuffer int    `koanf:"sessionbuffer"`
}

// TelemetryConfig configures the periodic metrics emitter.
type TelemetryConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// AnalyticsConfig configures the Kafka analytics sink.
type AnalyticsConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Brokers      []string      `koanf:"brokers"`
	Topic        string        `koanf:"topic"`
	BatchTimeout time.Duration `koanf:"batchtimeout"`
}

// IngestConfig bounds the incident ingest rate.
type IngestConfig struct {
	RateLimit float64 `koanf:"ratelimit"`
	Burst     int     `koanf:"burst"`
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowedorigins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Store: StoreConfig{
			Driver: "postgres",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			ConnectTimeout:  30 * time.Second,
			ConnectAttempts: 3,
			MigrationsPath:  "migrations",
		},
		Broadcast: BroadcastConfig{
			Driver:    "memory",
			RedisAddr: "localhost:6379",
		},
		Live: LiveConfig{
			Room:          "war-room",
			SessionBuffer: 64,
		},
		Telemetry: TelemetryConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Enabled:      false,
			Brokers:      []string{"localhost:9092"},
			Topic:        "incident-events",
			BatchTimeout: time.Second,
		},
		Ingest: IngestConfig{
			RateLimit: 100,
			Burst:     200,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// WARROOM_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("store.driver is postgres but database.url is empty")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Broadcast.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown broadcast driver %q", c.Broadcast.Driver)
	}

	return nil
}

// PathFromEnv returns the config file path named by WARROOM_CONFIG, if set.
func PathFromEnv() string {
	return os.Getenv(envPrefix + "CONFIG")
}
