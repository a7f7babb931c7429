package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Journal   JournalConfig   `koanf:"journal"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// WeigherConfig names one weigher and its signed multiplier. A negative
// multiplier inverts the preference, e.g. capacity with -1.0 packs volumes
// onto the fullest back ends instead of spreading them.
type WeigherConfig struct {
	Name       string  `koanf:"name"`
	Multiplier float64 `koanf:"multiplier"`
}

type SchedulerConfig struct {
	// Filters is the ordered chain of filter names. Order only affects
	// performance since filtering is conjunctive.
	Filters []string `koanf:"filters"`
	// Weighers is the ordered list of weighers and multipliers.
	Weighers []WeigherConfig `koanf:"weighers"`

	// MaxRetries bounds re-dispatches after a retryable failure. Total
	// dispatch attempts never exceed MaxRetries+1.
	MaxRetries int `koanf:"max_retries"`
	// AckTimeout is how long to wait for a worker outcome before treating
	// the dispatch as a retryable failure.
	AckTimeout time.Duration `koanf:"ack_timeout"`
	// LivenessWindow ages capability reports out of the snapshot and marks
	// the owning service down.
	LivenessWindow time.Duration `koanf:"liveness_window"`

	// DefaultAvailabilityZone is the lowest-priority AZ source.
	DefaultAvailabilityZone string `koanf:"default_availability_zone"`

	// FilterFunction is the optional driver filter expression; empty
	// disables the driver filter even when it appears in Filters.
	FilterFunction string `koanf:"filter_function"`
	// GoodnessFunction is the optional goodness weigher expression,
	// expected to yield a 0-100 score.
	GoodnessFunction string `koanf:"goodness_function"`

	// Diagnostics enables per-filter elimination detail in NoValidHost
	// errors.
	Diagnostics bool `koanf:"diagnostics"`
}

type JournalConfig struct {
	// Path of the bbolt decision journal; empty disables journaling.
	Path string `koanf:"path"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8780},
		Log:    LogConfig{Level: "info", JSON: true},
		Scheduler: SchedulerConfig{
			Filters: []string{"availability_zone", "capacity", "capabilities"},
			Weighers: []WeigherConfig{
				{Name: "capacity", Multiplier: 1.0},
				{Name: "volume_number", Multiplier: 1.0},
			},
			MaxRetries:     3,
			AckTimeout:     2 * time.Minute,
			LivenessWindow: 300 * time.Second,
			Diagnostics:    true,
		},
	}
}

// Load reads config from a YAML file (if provided) then overlays env vars.
// Environment keys use STEVEDORE_ with underscores for nesting, e.g.
// STEVEDORE_SCHEDULER__MAX_RETRIES -> scheduler.max_retries.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Double underscore separates nesting levels so that keys containing
	// underscores (max_retries) survive the mapping.
	if err := k.Load(env.ProviderWithValue("STEVEDORE_", ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		mapped := strings.Replace(
			strings.ToLower(strings.TrimPrefix(key, "STEVEDORE_")),
			"__", ".", -1,
		)
		return mapped, value
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Scheduler.MaxRetries < 0 {
		return fmt.Errorf("scheduler.max_retries must be >= 0, got %d", c.Scheduler.MaxRetries)
	}
	if c.Scheduler.LivenessWindow <= 0 {
		return fmt.Errorf("scheduler.liveness_window must be positive, got %s", c.Scheduler.LivenessWindow)
	}
	if c.Scheduler.AckTimeout <= 0 {
		return fmt.Errorf("scheduler.ack_timeout must be positive, got %s", c.Scheduler.AckTimeout)
	}
	for _, w := range c.Scheduler.Weighers {
		if w.Multiplier == 0 {
			return fmt.Errorf("weigher %q has zero multiplier", w.Name)
		}
	}
	return nil
}
