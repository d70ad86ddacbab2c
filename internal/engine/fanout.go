package engine

import (
	"context"
	"fmt"

	"github.com/veesix-networks/tpc/pkg/models"
)

// fanout snapshots the available devices once per operation. With
// masterOnly set, devices this instance does not master are dropped.
func (e *Engine) fanout(ctx context.Context, masterOnly bool) ([]models.DeviceID, error) {
	devices, err := e.sb.AvailableDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list available devices: %w", err)
	}

	if !masterOnly {
		return devices, nil
	}

	mastered := devices[:0:0]
	for _, device := range devices {
		if e.sb.IsLocalMaster(device) {
			mastered = append(mastered, device)
		}
	}
	return mastered, nil
}
