package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverP4RT   = "p4rt"
	DriverMemory = "memory"
)

type Config struct {
	Logging    Logging              `yaml:"logging"`
	App        App                  `yaml:"app"`
	Southbound Southbound           `yaml:"southbound"`
	Cleanup    Cleanup              `yaml:"cleanup"`
	Features   Features             `yaml:"features"`
	Plugins    map[string]yaml.Node `yaml:"plugins,omitempty"`
}

type Logging struct {
	Format     string            `yaml:"format"`
	Level      string            `yaml:"level"`
	Components map[string]string `yaml:"components,omitempty"`
	// EventDebug lists bus topics whose events are logged as they pass.
	EventDebug []string `yaml:"event_debug,omitempty"`
}

type App struct {
	Name string `yaml:"name"`
}

type Southbound struct {
	Driver     string        `yaml:"driver"`
	ElectionID uint64        `yaml:"election_id"`
	RPCTimeout time.Duration `yaml:"rpc_timeout"`
	Devices    []Device      `yaml:"devices"`
}

type Device struct {
	ID         string `yaml:"id"`
	Address    string `yaml:"address,omitempty"`
	P4DeviceID uint64 `yaml:"p4_device_id,omitempty"`
	// Master only applies to the memory driver; p4rt learns it from arbitration.
	Master bool `yaml:"master,omitempty"`
}

type Cleanup struct {
	Delay      time.Duration `yaml:"delay"`
	RetryTimes int           `yaml:"retry_times"`
}

type Features struct {
	SliceControl *bool `yaml:"slice_control,omitempty"`
}

// SliceControlEnabled reports whether slice and checker operations are
// exposed. Unset means enabled.
func (f Features) SliceControlEnabled() bool {
	return f.SliceControl == nil || *f.SliceControl
}
