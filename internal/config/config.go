package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	RBAC     RBACConfig     `mapstructure:"rbac"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Sync     SyncConfig     `mapstructure:"sync"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // "development" or "production"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string
	LogLevel        string `mapstructure:"log_level"`         // GORM log level; defaults to log.level
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"` // Secret for JWT signing
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// RBACConfig controls the permission resolver and the authorization gate.
type RBACConfig struct {
	MatchMode      string        `mapstructure:"match_mode"`      // "contains" or "prefix"
	UnmappedPolicy string        `mapstructure:"unmapped_policy"` // "allow" or "deny" for endpoints without configured policy
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`       // 0 rebuilds the policy snapshot on every request
	PublicPaths    []string      `mapstructure:"public_paths"`    // Path prefixes that bypass authorization
	SeedOnStart    bool          `mapstructure:"seed_on_start"`   // Run the baseline seeder during startup
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	Mode string `mapstructure:"mode"` // "best_effort" or "strict"
}

// SyncConfig holds policy invalidation transport configuration
type SyncConfig struct {
	Type       string `mapstructure:"type"`        // "memory" or "valkey"
	ValkeyAddr string `mapstructure:"valkey_addr"` // Valkey address (if type=valkey), e.g., "localhost:6379"
	Channel    string `mapstructure:"channel"`     // Pub/sub channel for invalidations
}

// Validate checks enum-like settings so misconfiguration fails at startup
// instead of silently changing authorization behavior.
func (c *Config) Validate() error {
	switch c.RBAC.MatchMode {
	case "contains", "prefix":
	default:
		return fmt.Errorf("invalid rbac.match_mode %q (supported: contains, prefix)", c.RBAC.MatchMode)
	}
	switch c.RBAC.UnmappedPolicy {
	case "allow", "deny":
	default:
		return fmt.Errorf("invalid rbac.unmapped_policy %q (supported: allow, deny)", c.RBAC.UnmappedPolicy)
	}
	if c.RBAC.CacheTTL < 0 {
		return fmt.Errorf("rbac.cache_ttl must not be negative")
	}
	switch c.Audit.Mode {
	case "best_effort", "strict":
	default:
		return fmt.Errorf("invalid audit.mode %q (supported: best_effort, strict)", c.Audit.Mode)
	}
	return nil
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for local development
	v.SetDefault("server.port", 8460)
	v.SetDefault("server.mode", "development")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./accessd.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60) // 60 minutes
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("rbac.match_mode", "contains")
	v.SetDefault("rbac.unmapped_policy", "allow")
	v.SetDefault("rbac.cache_ttl", 30*time.Second)
	v.SetDefault("rbac.public_paths", []string{"/swagger/", "/redoc/"})
	v.SetDefault("rbac.seed_on_start", true)
	v.SetDefault("audit.mode", "best_effort")
	v.SetDefault("sync.type", "memory")
	v.SetDefault("sync.valkey_addr", "localhost:6379")
	v.SetDefault("sync.channel", "accessd:policy")

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/accessd/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	// Environment variables override
	v.SetEnvPrefix("ACCESSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
