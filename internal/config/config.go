// Package config resolves daemon configuration by layering defaults, an
// optional YAML file, and environment variables. Flags in main override
// the result.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/flow-monitor/internal/sim"
)

// Environment variable names recognized by Load.
const (
	EnvConfigPath       = "FLOWMON_CONFIG"
	EnvTickInterval     = "FLOWMON_TICK_INTERVAL"
	EnvLeakThreshold    = "FLOWMON_LEAK_THRESHOLD"
	EnvConsecutiveTicks = "FLOWMON_CONSECUTIVE_TICKS"
	EnvMaxHistory       = "FLOWMON_MAX_HISTORY"
	EnvHTTPAddr         = "FLOWMON_HTTP_ADDR"
	EnvBroker           = "FLOWMON_BROKER"
	EnvHeartbeat        = "FLOWMON_HEARTBEAT_INTERVAL"
)

// Config captures all runtime settings for the flow-monitor daemon.
type Config struct {
	// TickInterval is the sampling period between generated readings.
	TickInterval time.Duration `yaml:"tick_interval"`
	// LeakThresholdLPerMin is the flow rate above which a tick counts as high.
	LeakThresholdLPerMin float64 `yaml:"leak_threshold_l_per_min"`
	// LeakConsecutiveTicks is the number of consecutive high ticks that
	// declare a leak.
	LeakConsecutiveTicks int `yaml:"leak_consecutive_ticks"`
	// MaxHistoryPoints bounds the number of retained samples.
	MaxHistoryPoints int `yaml:"max_history_points"`
	// HTTPAddr is the dashboard listen address (empty disables the server).
	HTTPAddr string `yaml:"http_addr"`
	// Broker is the MQTT broker address (empty disables publishing).
	Broker string `yaml:"broker"`
	// AlertBufferCapacity bounds the MQTT offline replay buffer.
	AlertBufferCapacity int `yaml:"alert_buffer_capacity"`
	// HeartbeatInterval is the period between retained full-status
	// heartbeats on the system topic (0 disables).
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// Default returns the stock demo configuration: 2s ticks, 8 L/min
// threshold, 3 consecutive ticks, 30 retained points, MQTT disabled.
func Default() Config {
	return Config{
		TickInterval:         sim.DefaultTickInterval,
		LeakThresholdLPerMin: sim.DefaultLeakThresholdLPerMin,
		LeakConsecutiveTicks: sim.DefaultLeakConsecutiveTicks,
		MaxHistoryPoints:     sim.DefaultMaxHistoryPoints,
		HTTPAddr:             ":8080",
		Broker:               "",
		AlertBufferCapacity:  64,
		HeartbeatInterval:    15 * time.Minute,
	}
}

// Load resolves configuration: defaults, then the YAML file at path (or
// $FLOWMON_CONFIG if path is empty), then environment variables. A
// missing file is an error only when explicitly requested.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigPath)
		explicit = path != ""
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if explicit {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvTickInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTickInterval, err)
		}
		cfg.TickInterval = d
	}
	if v := os.Getenv(EnvLeakThreshold); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLeakThreshold, err)
		}
		cfg.LeakThresholdLPerMin = f
	}
	if v := os.Getenv(EnvConsecutiveTicks); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConsecutiveTicks, err)
		}
		cfg.LeakConsecutiveTicks = n
	}
	if v := os.Getenv(EnvMaxHistory); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxHistory, err)
		}
		cfg.MaxHistoryPoints = n
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv(EnvBroker); v != "" {
		cfg.Broker = v
	}
	if v := os.Getenv(EnvHeartbeat); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHeartbeat, err)
		}
		cfg.HeartbeatInterval = d
	}
	return nil
}

// Validate checks the configuration invariants.
func (c Config) Validate() error {
	if err := c.Sampling().Validate(); err != nil {
		return err
	}
	if c.AlertBufferCapacity < 1 {
		return fmt.Errorf("alert buffer capacity must be at least 1")
	}
	if c.HeartbeatInterval < 0 {
		return fmt.Errorf("heartbeat interval must not be negative")
	}
	return nil
}

// Sampling returns the simulation constants as a sim.Config.
func (c Config) Sampling() sim.Config {
	return sim.Config{
		TickInterval:         c.TickInterval,
		LeakThresholdLPerMin: c.LeakThresholdLPerMin,
		LeakConsecutiveTicks: c.LeakConsecutiveTicks,
		MaxHistoryPoints:     c.MaxHistoryPoints,
	}
}
