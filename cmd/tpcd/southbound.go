package main

import (
	"context"
	"fmt"

	"github.com/veesix-networks/tpc/pkg/config"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/southbound"
	"github.com/veesix-networks/tpc/pkg/southbound/memory"
	"github.com/veesix-networks/tpc/pkg/southbound/p4rt"
)

func openSouthbound(ctx context.Context, cfg *config.Config) (southbound.Southbound, error) {
	switch cfg.Southbound.Driver {
	case config.DriverMemory:
		devices := make([]memory.Device, 0, len(cfg.Southbound.Devices))
		for _, d := range cfg.Southbound.Devices {
			devices = append(devices, memory.Device{ID: models.DeviceID(d.ID), Master: d.Master})
		}
		return memory.New(devices...), nil

	case config.DriverP4RT:
		devices := make([]p4rt.DeviceConfig, 0, len(cfg.Southbound.Devices))
		for _, d := range cfg.Southbound.Devices {
			devices = append(devices, p4rt.DeviceConfig{
				ID:         models.DeviceID(d.ID),
				Address:    d.Address,
				P4DeviceID: d.P4DeviceID,
			})
		}
		ctx, cancel := context.WithTimeout(ctx, cfg.Southbound.RPCTimeout*2)
		defer cancel()
		sb, err := p4rt.Open(ctx, p4rt.Options{
			ElectionID: cfg.Southbound.ElectionID,
			RPCTimeout: cfg.Southbound.RPCTimeout,
			Devices:    devices,
		})
		if err != nil {
			return nil, err
		}
		return sb, nil

	default:
		return nil, fmt.Errorf("unknown southbound driver %q", cfg.Southbound.Driver)
	}
}
