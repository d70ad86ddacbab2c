package southbound

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/veesix-networks/tpc/pkg/models"
)

const advisorMax = 1 << 20

// Advisor priorities run before every director and are expected to observe
// rather than claim packets.
func Advisor(priority int) int {
	return priority
}

func Director(priority int) int {
	return advisorMax + priority
}

type ConnectPoint struct {
	DeviceID models.DeviceID
	Port     models.PortNumber
}

type PacketProcessor interface {
	Process(pc *PacketContext)
}

type PacketContext struct {
	receivedFrom ConnectPoint
	receivedAt   time.Time
	data         []byte
	eth          *layers.Ethernet
	etherType    layers.EthernetType
	blocked      atomic.Bool
}

func NewPacketContext(from ConnectPoint, data []byte) *PacketContext {
	pc := &PacketContext{
		receivedFrom: from,
		receivedAt:   time.Now(),
		data:         data,
	}

	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.Default)
	if ethLayer := packet.Layer(layers.LayerTypeEthernet); ethLayer != nil {
		pc.eth = ethLayer.(*layers.Ethernet)
		pc.etherType = pc.eth.EthernetType
	}
	for _, l := range packet.Layers() {
		if tag, ok := l.(*layers.Dot1Q); ok {
			pc.etherType = tag.Type
		}
	}

	return pc
}

func (pc *PacketContext) ReceivedFrom() ConnectPoint {
	return pc.receivedFrom
}

func (pc *PacketContext) ReceivedAt() time.Time {
	return pc.receivedAt
}

func (pc *PacketContext) Data() []byte {
	return pc.data
}

// Ethernet returns nil when the frame could not be decoded.
func (pc *PacketContext) Ethernet() *layers.Ethernet {
	return pc.eth
}

// EtherType is the payload type after any VLAN tags, zero when the frame
// could not be decoded.
func (pc *PacketContext) EtherType() layers.EthernetType {
	return pc.etherType
}

// Block stops delivery to later processors.
func (pc *PacketContext) Block() {
	pc.blocked.Store(true)
}

func (pc *PacketContext) IsBlocked() bool {
	return pc.blocked.Load()
}

type processorEntry struct {
	processor PacketProcessor
	priority  int
}

// Registry keeps packet processors in priority order. Drivers embed it.
type Registry struct {
	mu         sync.RWMutex
	processors []processorEntry
}

func (r *Registry) AddProcessor(p PacketProcessor, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.processors = append(r.processors, processorEntry{processor: p, priority: priority})
	sort.SliceStable(r.processors, func(i, j int) bool {
		return r.processors[i].priority < r.processors[j].priority
	})
}

func (r *Registry) RemoveProcessor(p PacketProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.processors[:0]
	for _, e := range r.processors {
		if e.processor != p {
			kept = append(kept, e)
		}
	}
	r.processors = kept
}

func (r *Registry) ProcessorCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.processors)
}

// Dispatch runs processors in order until one blocks the context.
func (r *Registry) Dispatch(pc *PacketContext) {
	r.mu.RLock()
	processors := make([]PacketProcessor, len(r.processors))
	for i, e := range r.processors {
		processors[i] = e.processor
	}
	r.mu.RUnlock()

	for _, p := range processors {
		p.Process(pc)
		if pc.IsBlocked() {
			return
		}
	}
}
