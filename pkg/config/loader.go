package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/veesix-networks/tpc/pkg/pipeline"
	"gopkg.in/yaml.v3"
)

const (
	DefaultElectionID = 1
	DefaultRPCTimeout = 5 * time.Second
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.App.Name == "" {
		c.App.Name = pipeline.AppName
	}
	if c.Southbound.Driver == "" {
		c.Southbound.Driver = DriverP4RT
	}
	if c.Southbound.ElectionID == 0 {
		c.Southbound.ElectionID = DefaultElectionID
	}
	if c.Southbound.RPCTimeout == 0 {
		c.Southbound.RPCTimeout = DefaultRPCTimeout
	}
	if c.Cleanup.Delay == 0 {
		c.Cleanup.Delay = pipeline.CleanUpDelay
	}
	if c.Cleanup.RetryTimes == 0 {
		c.Cleanup.RetryTimes = pipeline.DefaultCleanUpRetryTimes
	}
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}

	for i, topic := range c.Logging.EventDebug {
		if strings.TrimSpace(topic) == "" {
			return fmt.Errorf("logging.event_debug[%d]: empty topic", i)
		}
	}

	switch c.Southbound.Driver {
	case DriverP4RT, DriverMemory:
	default:
		return fmt.Errorf("southbound.driver: unknown driver %q", c.Southbound.Driver)
	}

	if c.Southbound.RPCTimeout < 0 {
		return fmt.Errorf("southbound.rpc_timeout: must not be negative")
	}

	seen := make(map[string]bool, len(c.Southbound.Devices))
	for i, d := range c.Southbound.Devices {
		if d.ID == "" {
			return fmt.Errorf("southbound.devices[%d].id: required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("southbound.devices[%d].id: duplicate device %q", i, d.ID)
		}
		seen[d.ID] = true

		if c.Southbound.Driver == DriverP4RT && d.Address == "" {
			return fmt.Errorf("southbound.devices[%d].address: required by the %s driver", i, DriverP4RT)
		}
	}

	if c.Cleanup.Delay < 0 {
		return fmt.Errorf("cleanup.delay: must not be negative")
	}
	if c.Cleanup.RetryTimes < 0 {
		return fmt.Errorf("cleanup.retry_times: must not be negative")
	}

	return nil
}
