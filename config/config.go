// Package config loads the process configuration from a TOML file merged
// with environment overrides.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Kitt3120/lum/errors"
)

const (
	DefaultName     = "lum"
	DefaultLogLevel = "info"

	// EnvPrefix is shared by every environment override, e.g. LUM_LOG_LEVEL.
	EnvPrefix = "LUM_"
)

type (
	// Duration wraps time.Duration so TOML values can be written as "10s".
	Duration struct {
		time.Duration
	}

	Log struct {
		Level string `toml:"level"`
	}

	Services struct {
		StartTimeout Duration `toml:"start_timeout"`
		StopTimeout  Duration `toml:"stop_timeout"`
		StatusBuffer int      `toml:"status_buffer"`
	}

	Heartbeat struct {
		Enabled  bool     `toml:"enabled"`
		Interval Duration `toml:"interval"`
	}

	Config struct {
		Name      string    `toml:"name"`
		Log       Log       `toml:"log"`
		Services  Services  `toml:"services"`
		Heartbeat Heartbeat `toml:"heartbeat"`
	}
)

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func Default() *Config {
	return &Config{
		Name: DefaultName,
		Log:  Log{Level: DefaultLogLevel},
		Services: Services{
			StartTimeout: Duration{10 * time.Second},
			StopTimeout:  Duration{10 * time.Second},
			StatusBuffer: 8,
		},
		Heartbeat: Heartbeat{
			Enabled:  true,
			Interval: Duration{time.Minute},
		},
	}
}

// DefaultPath is <user config dir>/lum/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to resolve user config directory")
	}
	return filepath.Join(dir, DefaultName, "config.toml"), nil
}

// FromFile merges values from a TOML file over the current config. Keys the
// file does not set keep their current values.
func (c *Config) FromFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return errors.Wrapf(err, "failed to load config from %q", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown config keys in %q: %v", path, undecoded)
	}
	return c.validate()
}

// FromEnv merges environment overrides over the current config.
func (c *Config) FromEnv() error {
	if name := os.Getenv(EnvPrefix + "NAME"); name != "" {
		c.Name = name
	}
	if level := os.Getenv(EnvPrefix + "LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if interval := os.Getenv(EnvPrefix + "HEARTBEAT_INTERVAL"); interval != "" {
		if err := c.Heartbeat.Interval.UnmarshalText([]byte(interval)); err != nil {
			return errors.Wrapf(err, "invalid %sHEARTBEAT_INTERVAL", EnvPrefix)
		}
	}
	return c.validate()
}

// Load builds the effective config: defaults, then the file (when it
// exists), then environment overrides.
func Load(path string) (*Config, error) {
	c := Default()

	if _, err := os.Stat(path); err == nil {
		if err := c.FromFile(path); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to stat config file %q", path)
	}

	if err := c.FromEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.Name == "" {
		return errors.New("name must not be empty")
	}
	if c.Services.StartTimeout.Duration <= 0 {
		return errors.New("services.start_timeout must be positive")
	}
	if c.Services.StopTimeout.Duration <= 0 {
		return errors.New("services.stop_timeout must be positive")
	}
	if c.Services.StatusBuffer <= 0 {
		return errors.New("services.status_buffer must be positive")
	}
	if c.Heartbeat.Enabled && c.Heartbeat.Interval.Duration <= 0 {
		return errors.New("heartbeat.interval must be positive")
	}
	return nil
}
