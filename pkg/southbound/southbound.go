// Package southbound describes the services tpc needs from whatever owns the
// switches: application registration, device inventory, mastership, flow rule
// and meter programming, and packet-in delivery.
package southbound

import (
	"context"
	"errors"

	"github.com/veesix-networks/tpc/pkg/models"
)

var (
	ErrUnavailable       = errors.New("southbound unavailable")
	ErrDeviceUnavailable = errors.New("device unavailable")
)

type Southbound interface {
	Core
	Devices
	Mastership
	FlowRules
	Meters
	Packets
	Close() error
}

type Core interface {
	RegisterApplication(ctx context.Context, name string) (models.AppID, error)
}

type Devices interface {
	// AvailableDevices returns a snapshot sorted by device ID.
	AvailableDevices(ctx context.Context) ([]models.DeviceID, error)
}

type Mastership interface {
	IsLocalMaster(device models.DeviceID) bool
}

// FlowRules stores table entries keyed by FlowRule.Key. Applying a rule whose
// key is already present replaces it; removal ignores the action.
type FlowRules interface {
	ApplyFlowRules(ctx context.Context, rules ...models.FlowRule) error
	RemoveFlowRules(ctx context.Context, rules ...models.FlowRule) error
	RemoveFlowRulesByApp(ctx context.Context, app models.AppID) error
	FlowEntriesByApp(ctx context.Context, app models.AppID) ([]models.FlowRule, error)
}

// Meters stores meter cells keyed by MeterRequest.Key.
type Meters interface {
	SubmitMeter(ctx context.Context, req models.MeterRequest) error
	PurgeMeters(ctx context.Context, device models.DeviceID, app models.AppID) error
}

type Packets interface {
	AddProcessor(p PacketProcessor, priority int)
	RemoveProcessor(p PacketProcessor)
}
