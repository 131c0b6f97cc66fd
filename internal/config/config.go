// Package config loads runtime configuration from recordkit.yml and
// RECORDKIT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conduit-lang/recordkit/internal/orm/dialect"
	"github.com/conduit-lang/recordkit/internal/orm/mapper"
	"github.com/conduit-lang/recordkit/internal/orm/pool"
)

// EnvPrefix prefixes every environment override, e.g. RECORDKIT_DATABASE_HOST
const EnvPrefix = "RECORDKIT"

// Config represents the runtime configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Workers   int             `mapstructure:"workers"`
	QueueSize int             `mapstructure:"queue_size"`
	Relations string          `mapstructure:"relations"`
	Migration MigrationConfig `mapstructure:"migration"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Driver      string            `mapstructure:"driver"`
	Host        string            `mapstructure:"host"`
	Port        int               `mapstructure:"port"`
	Name        string            `mapstructure:"name"`
	User        string            `mapstructure:"user"`
	Password    string            `mapstructure:"password"`
	MaxPoolSize int               `mapstructure:"max_pool_size"`
	Params      map[string]string `mapstructure:"params"`
}

// MigrationConfig configures schema synchronization. An empty
// LockRedisAddr disables the cross-process lock.
type MigrationConfig struct {
	LockRedisAddr string        `mapstructure:"lock_redis_addr"`
	LockKey       string        `mapstructure:"lock_key"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

var defaults = map[string]interface{}{
	"database.driver":           "mysql",
	"database.host":             "localhost",
	"database.port":             0,
	"database.name":             "",
	"database.user":             "",
	"database.password":         "",
	"database.max_pool_size":    pool.DefaultMaxPoolSize,
	"workers":                   4,
	"queue_size":                100,
	"relations":                 "eager",
	"migration.lock_redis_addr": "",
	"migration.lock_key":        "recordkit:migrate",
	"migration.lock_ttl":        30 * time.Second,
	"log.level":                 "info",
	"log.development":           false,
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration with every default applied and no file
// or environment overrides
func Default() *Config {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	// defaults always decode
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load loads the configuration. An empty path searches the working
// directory for recordkit.yml or recordkit.yaml; a missing file is not an
// error. Environment variables override both.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("recordkit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := dialect.ForDriver(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w (supported: %s)", err, strings.Join(dialect.Supported(), ", "))
	}
	if c.Database.Port < 0 {
		return fmt.Errorf("database.port must not be negative, got: %d", c.Database.Port)
	}
	if c.Database.MaxPoolSize <= 0 {
		return fmt.Errorf("database.max_pool_size must be positive, got: %d", c.Database.MaxPoolSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got: %d", c.Workers)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got: %d", c.QueueSize)
	}
	if _, err := mapper.ParseRelationMode(c.Relations); err != nil {
		return fmt.Errorf("relations: %w", err)
	}
	if c.Migration.LockRedisAddr != "" && c.Migration.LockTTL <= 0 {
		return fmt.Errorf("migration.lock_ttl must be positive, got: %s", c.Migration.LockTTL)
	}
	return nil
}

// RelationMode returns the parsed relation mode
func (c *Config) RelationMode() mapper.RelationMode {
	mode, err := mapper.ParseRelationMode(c.Relations)
	if err != nil {
		return mapper.RelationsEager
	}
	return mode
}

// PoolConfig returns the connection pool settings
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{
		Driver:      c.Database.Driver,
		MaxPoolSize: c.Database.MaxPoolSize,
		Params: dialect.ConnParams{
			Host:     c.Database.Host,
			Port:     c.Database.Port,
			Database: c.Database.Name,
			User:     c.Database.User,
			Password: c.Database.Password,
			Params:   c.Database.Params,
		},
	}
}
