package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for cobranzas-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// MigrationsPath is the directory holding the *.up.sql / *.down.sql files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`

	// SeedCatalog inserts the default statuses and carteras at startup when missing.
	SeedCatalog bool `yaml:"seed_catalog" env:"SEED_CATALOG" env-default:"true"`

	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// BootstrapConfig creates the first administrator on an empty users table.
// Nothing is created while AdminPassword is empty.
type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username" env:"BOOTSTRAP_ADMIN_USERNAME" env-default:"admin"`
	AdminPassword string `yaml:"-" env:"BOOTSTRAP_ADMIN_PASSWORD"` // Secret - not in YAML
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret    string        `yaml:"-" env:"JWT_SECRET"` // Secret - not in YAML
	TokenTTL     time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL" env-default:"12h"`
	CookieSecure bool          `yaml:"cookie_secure" env:"AUTH_COOKIE_SECURE" env-default:"false"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"cobranzas"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"cobranzas"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis connection settings. An empty Host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Cache backends.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
	CacheBackendNone   = "none"
)

// CacheConfig controls the dashboard result cache.
type CacheConfig struct {
	Backend string `yaml:"backend" env:"CACHE_BACKEND" env-default:"redis"`
	// KPITTL applies to KPIs, performance series and the gestor ranking.
	KPITTL time.Duration `yaml:"kpi_ttl" env:"CACHE_KPI_TTL" env-default:"5m"`
	// StructuralTTL applies to the cartera distribution and multi-debt report.
	StructuralTTL time.Duration `yaml:"structural_ttl" env:"CACHE_STRUCTURAL_TTL" env-default:"10m"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// When config.yaml does not exist the configuration comes from the environment alone.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set")
	}

	switch c.Cache.Backend {
	case CacheBackendRedis, CacheBackendMemory, CacheBackendNone:
	default:
		return fmt.Errorf("unknown cache backend %q (expected redis, memory or none)", c.Cache.Backend)
	}

	if c.Cache.KPITTL <= 0 || c.Cache.StructuralTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}

	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

