// Package config loads connection and pool settings for the leasedb CLI
// from a YAML file and LEASEDB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"

	"github.com/shrek82/leasedb/core"
	"github.com/shrek82/leasedb/dialect"
	"github.com/shrek82/leasedb/logger"
	"github.com/shrek82/leasedb/validator"
)

// ErrNoTarget is returned when no target URL is configured.
var ErrNoTarget = errors.New("no database target configured")

const (
	envPrefix             = "LEASEDB"
	defaultKeyringService = "leasedb"
)

// Config is the CLI configuration.
type Config struct {
	Target TargetConfig `mapstructure:"target" yaml:"target"`
	Pool   PoolConfig   `mapstructure:"pool" yaml:"pool"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// TargetConfig names the database to connect to.
type TargetConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Driver   string `mapstructure:"driver" yaml:"driver"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	// PasswordFromKeyring looks the password up in the OS keyring under
	// KeyringService and User.
	PasswordFromKeyring bool   `mapstructure:"password_from_keyring" yaml:"password_from_keyring"`
	KeyringService      string `mapstructure:"keyring_service" yaml:"keyring_service"`
}

// PoolConfig mirrors core.Options.
type PoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	WaitTimeout     time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	TestOnBorrow    bool          `mapstructure:"test_on_borrow" yaml:"test_on_borrow"`
}

// LogConfig selects log level and format and the optional slow statement log.
type LogConfig struct {
	Level         string        `mapstructure:"level" yaml:"level"`
	Format        string        `mapstructure:"format" yaml:"format"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`
	SlowLogPath   string        `mapstructure:"slow_log_path" yaml:"slow_log_path"`
}

func setDefaults(v *viper.Viper) {
	// every key needs a default so AutomaticEnv can see it during Unmarshal
	v.SetDefault("target.url", "")
	v.SetDefault("target.driver", "")
	v.SetDefault("target.user", "")
	v.SetDefault("target.password", "")
	v.SetDefault("target.password_from_keyring", false)
	v.SetDefault("target.keyring_service", defaultKeyringService)

	v.SetDefault("pool.max_open_conns", 8)
	v.SetDefault("pool.max_idle_conns", 0)
	v.SetDefault("pool.conn_max_lifetime", time.Duration(0))
	v.SetDefault("pool.wait_timeout", 30*time.Second)
	v.SetDefault("pool.test_on_borrow", false)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", string(logger.LogFormatText))
	v.SetDefault("log.slow_threshold", time.Duration(0))
	v.SetDefault("log.slow_log_path", "")
}

// Load reads path (YAML) when it is not empty, then applies LEASEDB_*
// environment overrides such as LEASEDB_TARGET_URL or LEASEDB_POOL_MAX_OPEN_CONNS.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var rules = validator.Rules{
	"Pool.MaxOpenConns":    {validator.Range(1, 10000)},
	"Pool.MaxIdleConns":    {validator.Range(0, 10000)},
	"Pool.ConnMaxLifetime": {validator.Min(0)},
	"Pool.WaitTimeout":     {validator.Min(0)},
	"Log.Level":            {validator.In("silent", "off", "none", "error", "warn", "warning", "info").Optional()},
	"Log.Format":           {validator.In(string(logger.LogFormatText), string(logger.LogFormatJSON)).Optional()},
	"Log.SlowThreshold":    {validator.Min(0)},
}

// Validate checks pool sizes, durations and log settings.
func (c *Config) Validate() error {
	return rules.Validate(c)
}

// ResolveTarget returns the connection target, reading the password from the
// OS keyring when configured to.
func (c *Config) ResolveTarget() (dialect.Target, error) {
	t := c.Target
	if strings.TrimSpace(t.URL) == "" {
		return dialect.Target{}, ErrNoTarget
	}
	password := t.Password
	if t.PasswordFromKeyring {
		service := t.KeyringService
		if service == "" {
			service = defaultKeyringService
		}
		secret, err := keyring.Get(service, t.User)
		if err != nil {
			return dialect.Target{}, fmt.Errorf("keyring lookup %s/%s: %w", service, t.User, err)
		}
		password = secret
	}
	return dialect.Target{URL: t.URL, Driver: t.Driver, User: t.User, Password: password}, nil
}

// Options converts the pool settings to core.Options logging through l.
func (c *Config) Options(l logger.Logger) *core.Options {
	return &core.Options{
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: c.Pool.ConnMaxLifetime,
		WaitTimeout:     c.Pool.WaitTimeout,
		TestOnBorrow:    c.Pool.TestOnBorrow,
		Logger:          l,
	}
}
