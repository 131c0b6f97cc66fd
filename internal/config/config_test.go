package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/conduit-lang/recordkit/internal/orm/mapper"
)

func TestLoad(t *testing.T) {
	// Test loading with no config file (should use defaults)
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error loading defaults, got %v", err)
	}

	if cfg.Database.Driver != "mysql" {
		t.Errorf("expected default driver mysql, got %s", cfg.Database.Driver)
	}

	if cfg.Database.MaxPoolSize != 20 {
		t.Errorf("expected default max pool size 20, got %d", cfg.Database.MaxPoolSize)
	}

	if cfg.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Workers)
	}

	if cfg.RelationMode() != mapper.RelationsEager {
		t.Errorf("expected eager relations, got %s", cfg.RelationMode())
	}

	if cfg.Migration.LockTTL != 30*time.Second {
		t.Errorf("expected lock ttl 30s, got %s", cfg.Migration.LockTTL)
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	configContent := `
database:
  driver: postgres
  host: db.internal
  port: 6432
  name: game
  user: app
  password: secret
  max_pool_size: 5
  params:
    sslmode: require
workers: 8
relations: reference
migration:
  lock_redis_addr: localhost:6379
  lock_ttl: 1m
log:
  level: debug
  development: true
`
	if err := os.WriteFile("recordkit.yml", []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Database.Driver != "postgres" || cfg.Database.Host != "db.internal" || cfg.Database.Port != 6432 {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}

	if cfg.Database.Params["sslmode"] != "require" {
		t.Errorf("expected sslmode param, got %v", cfg.Database.Params)
	}

	if cfg.RelationMode() != mapper.RelationsReference {
		t.Errorf("expected reference relations, got %s", cfg.RelationMode())
	}

	if cfg.Migration.LockTTL != time.Minute {
		t.Errorf("expected lock ttl 1m, got %s", cfg.Migration.LockTTL)
	}

	if cfg.Migration.LockKey != "recordkit:migrate" {
		t.Errorf("expected default lock key, got %s", cfg.Migration.LockKey)
	}

	if !cfg.Log.Development || cfg.Log.Level != "debug" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}

	pc := cfg.PoolConfig()
	if pc.MaxPoolSize != 5 || pc.Params.Database != "game" || pc.Params.User != "app" {
		t.Errorf("unexpected pool config: %+v", pc)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("database:\n  driver: sqlite3\n  name: app.db\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Database.Driver != "sqlite3" || cfg.Database.Name != "app.db" {
		t.Errorf("unexpected database config: %+v", cfg.Database)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(oldWd)

	t.Setenv("RECORDKIT_DATABASE_HOST", "env-host")
	t.Setenv("RECORDKIT_DATABASE_MAX_POOL_SIZE", "7")
	t.Setenv("RECORDKIT_RELATIONS", "none")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Database.Host != "env-host" {
		t.Errorf("expected env host, got %s", cfg.Database.Host)
	}
	if cfg.Database.MaxPoolSize != 7 {
		t.Errorf("expected env pool size 7, got %d", cfg.Database.MaxPoolSize)
	}
	if cfg.RelationMode() != mapper.RelationsNone {
		t.Errorf("expected no relations, got %s", cfg.RelationMode())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }, true},
		{"pgx driver", func(c *Config) { c.Database.Driver = "pgx" }, false},
		{"negative port", func(c *Config) { c.Database.Port = -1 }, true},
		{"zero pool", func(c *Config) { c.Database.MaxPoolSize = 0 }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, true},
		{"bad relations", func(c *Config) { c.Relations = "lazy" }, true},
		{"lock without ttl", func(c *Config) {
			c.Migration.LockRedisAddr = "localhost:6379"
			c.Migration.LockTTL = 0
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}
