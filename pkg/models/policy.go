package models

import (
	"fmt"

	"inet.af/netaddr"
)

// AttackEntry rewrites and duplicates traffic between two IPv4 hosts on one device.
type AttackEntry struct {
	DeviceID            DeviceID
	SrcAddress          netaddr.IP
	DstAddress          netaddr.IP
	SrcAddressRewritten netaddr.IP
	DstAddressRewritten netaddr.IP
}

func (e AttackEntry) String() string {
	return fmt.Sprintf("AttackEntry: deviceId=%s, srcAddress=%s, dstAddress=%s, srcAddressRewritten=%s, dstAddressRewritten=%s",
		e.DeviceID, e.SrcAddress, e.DstAddress, e.SrcAddressRewritten, e.DstAddressRewritten)
}

// SliceIDEntry binds a device port to a slice.
type SliceIDEntry struct {
	DeviceID   DeviceID
	PortNumber PortNumber
	SliceID    uint8
}

func (e SliceIDEntry) String() string {
	return fmt.Sprintf("CheckerSliceIdEntry: deviceId=%s, portNumber=%s, sliceId=%d",
		e.DeviceID, e.PortNumber, e.SliceID)
}

// SliceQoSEntry caps a slice at PIR bits per second.
type SliceQoSEntry struct {
	SliceID uint8
	PIR     uint64
}

func (e SliceQoSEntry) String() string {
	return fmt.Sprintf("SliceQoSEntry: sliceId=%d, pir=%d", e.SliceID, e.PIR)
}
