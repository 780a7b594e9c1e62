package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Engine     EngineConfig     `yaml:"engine"`
	Database   DatabaseConfig   `yaml:"database"`
	Billing    BillingConfig    `yaml:"billing"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the alert delivery worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// EngineConfig drives the periodic recompute/alert tick.
type EngineConfig struct {
	Enabled             bool          `yaml:"enabled"`
	TickIntervalSeconds int           `yaml:"tick_interval_seconds"`
	TickInterval        time.Duration `yaml:"-"` // Ignored by YAML parser
	// LeadTimes maps an alert kind name to hours before the deadline.
	LeadTimes map[string]float64 `yaml:"lead_times"`
}

// BillingConfig holds charge calculation policy settings.
type BillingConfig struct {
	// PerDiemUntilReturn closes the per-diem window at EmptyReturned instead
	// of PickedUp, for contracts that bill return delay under per diem.
	PerDiemUntilReturn bool `yaml:"per_diem_until_return"`
	// OverlapPolicy controls simultaneous demurrage + detention accrual:
	// "additive" or "exclusive".
	OverlapPolicy string `yaml:"overlap_policy"`
	Currency      string `yaml:"currency"`
	// ReviewThreshold flags snapshots above this amount for human review.
	ReviewThreshold string `yaml:"review_threshold"`
	PaymentTerms    string `yaml:"payment_terms"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Engine.TickIntervalSeconds <= 0 {
		cfg.Engine.TickIntervalSeconds = 3600
	}
	cfg.Engine.TickInterval = time.Duration(cfg.Engine.TickIntervalSeconds) * time.Second

	if len(cfg.Engine.LeadTimes) == 0 {
		cfg.Engine.LeadTimes = map[string]float64{
			"standard": 24,
			"urgent":   6,
		}
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Billing.OverlapPolicy == "" {
		cfg.Billing.OverlapPolicy = "additive"
	}
	if cfg.Billing.Currency == "" {
		cfg.Billing.Currency = "USD"
	}
	if cfg.Billing.PaymentTerms == "" {
		cfg.Billing.PaymentTerms = "Net 30"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
