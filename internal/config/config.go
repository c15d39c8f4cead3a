package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Maturity/internal/scoring"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Hermes    HermesConfig    `yaml:"hermes"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Reporting ReportingConfig `yaml:"reporting"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
	// RateLimit is requests per minute per user on mutating endpoints; 0 disables it.
	RateLimit int `yaml:"rate_limit"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // sqlite | postgres
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
}

// CatalogConfig points at the static configuration documents. When URL is set
// they are fetched over HTTP instead of read from disk.
type CatalogConfig struct {
	Path           string `yaml:"path"`
	FrameworksPath string `yaml:"frameworks_path"`
	UsersPath      string `yaml:"users_path"`
	URL            string `yaml:"url"`
	Token          string `yaml:"token"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type ScoringConfig struct {
	// Weights overrides the domain weights declared in the catalog.
	Weights          map[string]float64 `yaml:"weights"`
	NormalizeWeights bool               `yaml:"normalize_weights"`
}

type ReportingConfig struct {
	IntervalSec int `yaml:"interval_sec"` // 0 disables the periodic pass
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func (c *Config) ReportingInterval() time.Duration {
	return time.Duration(c.Reporting.IntervalSec) * time.Second
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Catalog.Path == "" && c.Catalog.URL == "" {
		return fmt.Errorf("catalog.path or catalog.url is required")
	}
	if err := scoring.WeightSet(c.Scoring.Weights).CheckFractions(); err != nil {
		return fmt.Errorf("scoring.weights: %w", err)
	}
	return nil
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
			RateLimit:   120,
		},
		Storage: StorageConfig{
			Driver:     DriverSQLite,
			SQLitePath: "data/maturity.db",
		},
		Catalog: CatalogConfig{
			Path: "configs/catalog.yaml",
		},
		Reporting: ReportingConfig{
			IntervalSec: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MATURITY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("MATURITY_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("MATURITY_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("MATURITY_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("MATURITY_STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("MATURITY_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("MATURITY_DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("MATURITY_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("MATURITY_FRAMEWORKS_PATH"); v != "" {
		cfg.Catalog.FrameworksPath = v
	}
	if v := os.Getenv("MATURITY_USERS_PATH"); v != "" {
		cfg.Catalog.UsersPath = v
	}
	if v := os.Getenv("MATURITY_CATALOG_URL"); v != "" {
		cfg.Catalog.URL = v
	}
	if v := os.Getenv("MATURITY_CATALOG_TOKEN"); v != "" {
		cfg.Catalog.Token = v
	}
	if v := os.Getenv("MATURITY_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("MATURITY_NORMALIZE_WEIGHTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Scoring.NormalizeWeights = b
		}
	}
	if v := os.Getenv("MATURITY_REPORTING_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reporting.IntervalSec = n
		}
	}
	if v := os.Getenv("MATURITY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MATURITY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
