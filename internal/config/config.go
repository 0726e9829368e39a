// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
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

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AdminConfig struct {
	Port          int           `yaml:"port"`
	APIKey        string        `yaml:"api_key"`        // bootstrap credential for /admin/login
	SessionSecret string        `yaml:"session_secret"` // HMAC secret for session tokens
	SessionTTL    time.Duration `yaml:"session_ttl"`
}

type PaymentConfig struct {
	Cashfree struct {
		AppID         string `yaml:"app_id"`
		SecretKey     string `yaml:"secret_key"`
		WebhookSecret string `yaml:"webhook_secret"`
		Sandbox       bool   `yaml:"sandbox"`
		ReturnURL     string `yaml:"return_url"`
		NotifyURL     string `yaml:"notify_url"`
	} `yaml:"cashfree"`
}

type JobsConfig struct {
	SweepInterval     time.Duration `yaml:"sweep_interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	BatchSize         int           `yaml:"batch_size"` // store per-batch operation cap
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Admin    AdminConfig    `yaml:"admin"`
	Payment  PaymentConfig  `yaml:"payment"`
	Jobs     JobsConfig     `yaml:"jobs"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file and then applies environment overrides for
// credentials, so secrets can stay out of the file. A .env alongside the
// binary is honored when present.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// env overrides
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("CASHFREE_APP_ID"); v != "" {
		cfg.Payment.Cashfree.AppID = v
	}
	if v := os.Getenv("CASHFREE_SECRET_KEY"); v != "" {
		cfg.Payment.Cashfree.SecretKey = v
	}
	if v := os.Getenv("CASHFREE_WEBHOOK_SECRET"); v != "" {
		cfg.Payment.Cashfree.WebhookSecret = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Admin.APIKey = v
	}
	if v := os.Getenv("ADMIN_SESSION_SECRET"); v != "" {
		cfg.Admin.SessionSecret = v
	}

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Admin.Port == 0 {
		cfg.Admin.Port = 8080
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Jobs.SweepInterval <= 0 {
		cfg.Jobs.SweepInterval = time.Hour
	}
	if cfg.Jobs.ReconcileInterval <= 0 {
		cfg.Jobs.ReconcileInterval = 6 * time.Hour
	}
	if cfg.Jobs.BatchSize <= 0 || cfg.Jobs.BatchSize > 500 {
		cfg.Jobs.BatchSize = 400
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Payment.Cashfree.AppID == "" || cfg.Payment.Cashfree.SecretKey == "" {
		return nil, errors.New("payment.cashfree credentials are required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
