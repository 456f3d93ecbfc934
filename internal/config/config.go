package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
	// SessionTTL bounds how long a minted admin session stays valid.
	SessionTTL time.Duration `yaml:"session_ttl"`
	APIKey     string        `yaml:"api_key"` // bootstrap credential for /login
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type CodesConfig struct {
	// DefaultPrefix is stamped on generated code strings when a purchase
	// does not carry its own.
	DefaultPrefix       string `yaml:"default_prefix"`
	DefaultValidityDays int    `yaml:"default_validity_days"`
	// ReservationMaxAge is how long an invitation may hold codes before the
	// sweeper returns them to the pool.
	ReservationMaxAge time.Duration `yaml:"reservation_max_age"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

type DeliveryConfig struct {
	Workers        int    `yaml:"workers"` // bounded concurrency for bulk sends
	DefaultChannel string `yaml:"default_channel"`
	RedemptionBase string `yaml:"redemption_base"` // base URL embedded in links
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Admin    AdminConfig    `yaml:"admin"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Codes    CodesConfig    `yaml:"codes"`
	Delivery DeliveryConfig `yaml:"delivery"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8088
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Codes.DefaultPrefix == "" {
		cfg.Codes.DefaultPrefix = "AGRI"
	}
	if cfg.Codes.DefaultValidityDays <= 0 {
		cfg.Codes.DefaultValidityDays = 30
	}
	if cfg.Codes.ReservationMaxAge <= 0 {
		cfg.Codes.ReservationMaxAge = 72 * time.Hour
	}
	if cfg.Codes.SweepInterval <= 0 {
		cfg.Codes.SweepInterval = 15 * time.Minute
	}
	if cfg.Delivery.Workers <= 0 {
		cfg.Delivery.Workers = 4
	}
	if cfg.Delivery.DefaultChannel == "" {
		cfg.Delivery.DefaultChannel = "SMS"
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Admin.JWTSecret == "" && !dev {
		return nil, errors.New("admin.jwt_secret is required outside dev mode")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
