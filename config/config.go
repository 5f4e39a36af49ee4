package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration. Values are layered: built-in
// defaults, then the YAML file (if any), then environment variables.
type Config struct {
	Port    string `yaml:"port"`
	GinMode string `yaml:"gin_mode"`

	// Database is the production dataset, DemoDatabase the demo one. They
	// must never point at the same database.
	Database     Database `yaml:"database"`
	DemoDatabase Database `yaml:"demo_database"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	// TimeZone is the IANA zone that cuts calendar days for the daily
	// aggregate.
	TimeZone     string        `yaml:"time_zone"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	Hub   Hub   `yaml:"hub"`
	AMQP  AMQP  `yaml:"amqp"`
	Admin Admin `yaml:"bootstrap_admin"`

	LogLevel string `yaml:"log_level"`
}

type Database struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Hub struct {
	BufferSize     int           `yaml:"buffer_size"`
	MaxConnections int           `yaml:"max_connections"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	Heartbeat      time.Duration `yaml:"heartbeat"`
}

// AMQP configures the optional RabbitMQ relay. An empty URL disables it.
type AMQP struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// Admin is created on startup when no user with this email exists.
type Admin struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

func Default() Config {
	return Config{
		Port:         "8080",
		GinMode:      "debug",
		Database:     Database{Driver: "sqlite", DSN: "food_distribution.db"},
		DemoDatabase: Database{Driver: "sqlite", DSN: "food_distribution_demo.db"},
		JWTSecret:    "food_distribution_dev_secret",
		TokenTTL:     24 * time.Hour,
		TimeZone:     "UTC",
		WriteTimeout: 5 * time.Second,
		Hub: Hub{
			BufferSize:     64,
			MaxConnections: 10000,
			IdleTimeout:    90 * time.Second,
			Heartbeat:      25 * time.Second,
		},
		AMQP:     AMQP{Exchange: "orders_topic"},
		LogLevel: "info",
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.GinMode = getEnv("GIN_MODE", cfg.GinMode)
	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getEnv("DB_DSN", cfg.Database.DSN)
	cfg.DemoDatabase.Driver = getEnv("DEMO_DB_DRIVER", cfg.DemoDatabase.Driver)
	cfg.DemoDatabase.DSN = getEnv("DEMO_DB_DSN", cfg.DemoDatabase.DSN)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.TimeZone = getEnv("TIME_ZONE", cfg.TimeZone)
	cfg.AMQP.URL = getEnv("AMQP_URL", cfg.AMQP.URL)
	cfg.AMQP.Exchange = getEnv("AMQP_EXCHANGE", cfg.AMQP.Exchange)
	cfg.Admin.Email = getEnv("ADMIN_EMAIL", cfg.Admin.Email)
	cfg.Admin.Password = getEnv("ADMIN_PASSWORD", cfg.Admin.Password)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	var err error
	if cfg.TokenTTL, err = getEnvDuration("TOKEN_TTL", cfg.TokenTTL); err != nil {
		return err
	}
	if cfg.WriteTimeout, err = getEnvDuration("WRITE_TIMEOUT", cfg.WriteTimeout); err != nil {
		return err
	}
	if cfg.Hub.IdleTimeout, err = getEnvDuration("HUB_IDLE_TIMEOUT", cfg.Hub.IdleTimeout); err != nil {
		return err
	}
	if v := os.Getenv("HUB_MAX_CONNECTIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HUB_MAX_CONNECTIONS: %w", err)
		}
		cfg.Hub.MaxConnections = n
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret must be set")
	}
	for _, db := range []Database{c.Database, c.DemoDatabase} {
		if db.Driver != "sqlite" && db.Driver != "postgres" {
			return fmt.Errorf("unsupported database driver %q", db.Driver)
		}
		if db.DSN == "" {
			return fmt.Errorf("database dsn must be set")
		}
	}
	if c.Database == c.DemoDatabase {
		return fmt.Errorf("demo_database must differ from database")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("time_zone: %w", err)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return fmt.Errorf("bootstrap_admin.password must be set with bootstrap_admin.email")
	}
	return nil
}

// Location returns the configured zone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SlogLevel maps LogLevel onto slog, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
