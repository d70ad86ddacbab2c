package component

import (
	"github.com/veesix-networks/tpc/pkg/config"
	"github.com/veesix-networks/tpc/pkg/events"
	"github.com/veesix-networks/tpc/pkg/northbound"
	"github.com/veesix-networks/tpc/pkg/southbound"
)

type Dependencies struct {
	Config     *config.Config
	EventBus   events.Bus
	Southbound southbound.Southbound
	Service    northbound.Service
}
