package engine

import (
	"log/slog"

	"github.com/google/gopacket/layers"
	"github.com/veesix-networks/tpc/pkg/events"
	"github.com/veesix-networks/tpc/pkg/logger"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/pipeline"
	"github.com/veesix-networks/tpc/pkg/southbound"
)

// checkerProcessor claims checker report frames. Everything else passes
// through untouched.
type checkerProcessor struct {
	logger   *slog.Logger
	eventBus events.Bus
}

func newCheckerProcessor(bus events.Bus) *checkerProcessor {
	return &checkerProcessor{
		logger:   logger.Get(logger.PacketIn),
		eventBus: bus,
	}
}

func (p *checkerProcessor) Process(pc *southbound.PacketContext) {
	if pc.EtherType() != layers.EthernetType(pipeline.CheckerReportEthType) {
		return
	}

	from := pc.ReceivedFrom()
	p.logger.Info("Packet received from checker", "device", from.DeviceID, "port", from.Port)

	if p.eventBus != nil {
		p.eventBus.Publish(events.TopicCheckerReport, events.Event{
			Source: logger.PacketIn,
			Data: &events.CheckerReportEvent{
				Report: models.CheckerReport{
					DeviceID:   from.DeviceID,
					Port:       from.Port,
					EtherType:  pipeline.CheckerReportEthType,
					Length:     len(pc.Data()),
					ReceivedAt: pc.ReceivedAt(),
				},
			},
		})
	}

	pc.Block()
}
