// File: internal/config/config.go
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

type ServerConfig struct {
	Port        int    `yaml:"port"`
	FrontendURL string `yaml:"frontend_url"` // browser callback redirects land here
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL        string        `yaml:"url"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	SessionTTL time.Duration `yaml:"session_ttl"` // pending payment session lifetime
}

type PesapalConfig struct {
	ConsumerKey    string        `yaml:"consumer_key"`
	ConsumerSecret string        `yaml:"consumer_secret"`
	CallbackURL    string        `yaml:"callback_url"`
	IPNID          string        `yaml:"ipn_id"`
	Sandbox        bool          `yaml:"sandbox"`
	Timeout        time.Duration `yaml:"timeout"`
}

type PaymentConfig struct {
	DefaultGateway string        `yaml:"default_gateway"` // pesapal | mock
	Pesapal        PesapalConfig `yaml:"pesapal"`
}

type AdminConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type SchedulerConfig struct {
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`
}

type Config struct {
	Environment string          `yaml:"environment"` // local|testing|staging|production
	Server      ServerConfig    `yaml:"server"`
	Log         LogConfig       `yaml:"log"`
	Database    DatabaseConfig  `yaml:"database"`
	Redis       RedisConfig     `yaml:"redis"`
	Payment     PaymentConfig   `yaml:"payment"`
	Admin       AdminConfig     `yaml:"admin"`
	Scheduler   SchedulerConfig `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// MockEndpointsAllowed gates the simulator endpoints: production must not
// expose them.
func (c *Config) MockEndpointsAllowed() bool {
	switch c.Environment {
	case "local", "testing", "staging":
		return true
	}
	return false
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
	if cfg.Environment == "" {
		cfg.Environment = "local"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Redis.SessionTTL <= 0 {
		cfg.Redis.SessionTTL = 30 * time.Minute
	}
	if cfg.Payment.DefaultGateway == "" {
		cfg.Payment.DefaultGateway = "pesapal"
	}
	if cfg.Payment.Pesapal.Timeout <= 0 {
		cfg.Payment.Pesapal.Timeout = 15 * time.Second
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Scheduler.ReconcileInterval <= 0 {
		cfg.Scheduler.ReconcileInterval = time.Minute
	}
	if cfg.Scheduler.StaleAfter <= 0 {
		cfg.Scheduler.StaleAfter = 10 * time.Minute
	}
	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = 5 * time.Minute
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Environment == "production" && cfg.Payment.DefaultGateway == "mock" {
		return nil, errors.New("payment.default_gateway=mock is not allowed in production")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
