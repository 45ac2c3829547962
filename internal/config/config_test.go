package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		RBAC:  RBACConfig{MatchMode: "contains", UnmappedPolicy: "allow"},
		Audit: AuditConfig{Mode: "best_effort"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"prefix deny strict", func(c *Config) {
			c.RBAC.MatchMode = "prefix"
			c.RBAC.UnmappedPolicy = "deny"
			c.Audit.Mode = "strict"
		}, false},
		{"unknown match mode", func(c *Config) { c.RBAC.MatchMode = "regex" }, true},
		{"unknown unmapped policy", func(c *Config) { c.RBAC.UnmappedPolicy = "maybe" }, true},
		{"negative ttl", func(c *Config) { c.RBAC.CacheTTL = -time.Second }, true},
		{"unknown audit mode", func(c *Config) { c.Audit.Mode = "never" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.modify(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8460 {
		t.Errorf("Server.Port = %d, want 8460", cfg.Server.Port)
	}
	if cfg.RBAC.MatchMode != "contains" || cfg.RBAC.UnmappedPolicy != "allow" {
		t.Errorf("RBAC = %+v, want contains/allow", cfg.RBAC)
	}
	if cfg.RBAC.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %v, want 30s", cfg.RBAC.CacheTTL)
	}
	if !cfg.RBAC.SeedOnStart {
		t.Error("SeedOnStart = false, want true")
	}
	if cfg.Audit.Mode != "best_effort" || cfg.Sync.Type != "memory" {
		t.Errorf("Audit.Mode = %q, Sync.Type = %q", cfg.Audit.Mode, cfg.Sync.Type)
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ACCESSD_SERVER_PORT", "9000")
	t.Setenv("ACCESSD_RBAC_MATCH_MODE", "prefix")
	t.Setenv("ACCESSD_RBAC_CACHE_TTL", "0s")
	t.Setenv("ACCESSD_AUDIT_MODE", "strict")
	t.Setenv("ACCESSD_SYNC_TYPE", "valkey")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.RBAC.MatchMode != "prefix" {
		t.Errorf("MatchMode = %q, want prefix", cfg.RBAC.MatchMode)
	}
	if cfg.RBAC.CacheTTL != 0 {
		t.Errorf("CacheTTL = %v, want 0", cfg.RBAC.CacheTTL)
	}
	if cfg.Audit.Mode != "strict" || cfg.Sync.Type != "valkey" {
		t.Errorf("Audit.Mode = %q, Sync.Type = %q", cfg.Audit.Mode, cfg.Sync.Type)
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ACCESSD_RBAC_UNMAPPED_POLICY", "sometimes")

	if _, err := Load(); err == nil {
		t.Error("Load() succeeded with an invalid unmapped policy")
	}
}
