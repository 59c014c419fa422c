package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Offline   OfflineConfig   `mapstructure:"offline"`
	Events    EventsConfig    `mapstructure:"events"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

type ValkeyConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// OfflineConfig tunes the offline region store.
type OfflineConfig struct {
	TileLimit       int64   `mapstructure:"tile_limit"`
	PixelRatio      float64 `mapstructure:"pixel_ratio"`
	TileURLTemplate string  `mapstructure:"tile_url_template"`
	FetchTimeout    int     `mapstructure:"fetch_timeout"`
	Concurrency     int     `mapstructure:"concurrency"`
	RatePerSecond   float64 `mapstructure:"rate_per_second"`
	Store           string  `mapstructure:"store"`
}

// EventsConfig selects where download events are pushed.
type EventsConfig struct {
	Transport string `mapstructure:"transport"`
}

// Offline stores.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Event transports.
const (
	TransportWS   = "ws"
	TransportNATS = "nats"
)

const maxTileLimit = 6000

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "mapsync")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "mapsync")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("offline.tile_limit", maxTileLimit)
	v.SetDefault("offline.pixel_ratio", 1.0)
	v.SetDefault("offline.tile_url_template", "")
	v.SetDefault("offline.fetch_timeout", 10)
	v.SetDefault("offline.concurrency", 4)
	v.SetDefault("offline.rate_per_second", 50.0)
	v.SetDefault("offline.store", StoreMemory)
	v.SetDefault("events.transport", TransportWS)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MAPSYNC_OFFLINE_TILE_LIMIT → offline.tile_limit
	v.SetEnvPrefix("MAPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	switch c.Offline.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("offline.store must be %s or %s, got %q", StoreMemory, StorePostgres, c.Offline.Store))
	}
	if c.Offline.TileLimit <= 0 || c.Offline.TileLimit > maxTileLimit {
		errs = append(errs, fmt.Sprintf("offline.tile_limit must be 1-%d, got %d", maxTileLimit, c.Offline.TileLimit))
	}
	if c.Offline.PixelRatio <= 0 {
		errs = append(errs, "offline.pixel_ratio must be positive")
	}
	if c.Offline.FetchTimeout <= 0 {
		errs = append(errs, "offline.fetch_timeout must be positive")
	}
	if c.Offline.Concurrency <= 0 {
		errs = append(errs, "offline.concurrency must be positive")
	}
	if c.Offline.RatePerSecond < 0 {
		errs = append(errs, "offline.rate_per_second must not be negative")
	}

	switch c.Events.Transport {
	case TransportWS:
	case TransportNATS:
		if !c.NATS.Enabled {
			errs = append(errs, "events.transport nats requires nats.enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("events.transport must be %s or %s, got %q", TransportWS, TransportNATS, c.Events.Transport))
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
