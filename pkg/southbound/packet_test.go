package southbound

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProcessor struct {
	name  string
	block bool
	seen  *[]string
}

func (p *recordingProcessor) Process(pc *PacketContext) {
	*p.seen = append(*p.seen, p.name)
	if p.block {
		pc.Block()
	}
}

func frame(t *testing.T, etherType layers.EthernetType) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: etherType,
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload([]byte("report"))))
	return buf.Bytes()
}

func TestPacketContextParsesEthernet(t *testing.T) {
	pc := NewPacketContext(ConnectPoint{DeviceID: "d1", Port: 3}, frame(t, layers.EthernetType(0x5678)))

	require.NotNil(t, pc.Ethernet())
	assert.Equal(t, layers.EthernetType(0x5678), pc.Ethernet().EthernetType)
	assert.Equal(t, layers.EthernetType(0x5678), pc.EtherType())
	assert.Equal(t, ConnectPoint{DeviceID: "d1", Port: 3}, pc.ReceivedFrom())
	assert.False(t, pc.IsBlocked())
	assert.False(t, pc.ReceivedAt().IsZero())
}

func TestPacketContextGarbage(t *testing.T) {
	pc := NewPacketContext(ConnectPoint{DeviceID: "d1"}, []byte{0x01})
	assert.Nil(t, pc.Ethernet())
	assert.Zero(t, pc.EtherType())
}

func TestRegistryDispatchOrderAndBlock(t *testing.T) {
	var seen []string
	var r Registry

	director := &recordingProcessor{name: "director", seen: &seen}
	advisor := &recordingProcessor{name: "advisor", block: true, seen: &seen}
	r.AddProcessor(director, Director(0))
	r.AddProcessor(advisor, Advisor(0))
	require.Equal(t, 2, r.ProcessorCount())

	pc := NewPacketContext(ConnectPoint{DeviceID: "d1"}, frame(t, layers.EthernetTypeIPv4))
	r.Dispatch(pc)
	assert.Equal(t, []string{"advisor"}, seen)
	assert.True(t, pc.IsBlocked())

	seen = nil
	r.RemoveProcessor(advisor)
	r.Dispatch(NewPacketContext(ConnectPoint{DeviceID: "d1"}, frame(t, layers.EthernetTypeIPv4)))
	assert.Equal(t, []string{"director"}, seen)
	assert.Equal(t, 1, r.ProcessorCount())
}

func TestPacketContextEtherTypeBehindVLAN(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeDot1Q,
	}
	tag := &layers.Dot1Q{VLANIdentifier: 10, Type: layers.EthernetType(0x5678)}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, tag, gopacket.Payload([]byte("report"))))

	pc := NewPacketContext(ConnectPoint{DeviceID: "d1"}, buf.Bytes())
	assert.Equal(t, layers.EthernetTypeDot1Q, pc.Ethernet().EthernetType)
	assert.Equal(t, layers.EthernetType(0x5678), pc.EtherType())
}
