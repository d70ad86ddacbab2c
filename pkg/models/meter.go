package models

import "fmt"

type MeterUnit uint8

const (
	MeterUnitBytesPerSec MeterUnit = iota
	MeterUnitPacketsPerSec
)

func (u MeterUnit) String() string {
	switch u {
	case MeterUnitBytesPerSec:
		return "BYTES_PER_SEC"
	case MeterUnitPacketsPerSec:
		return "PKTS_PER_SEC"
	default:
		return fmt.Sprintf("unit(%d)", uint8(u))
	}
}

type BandType uint8

const (
	BandMarkYellow BandType = iota
	BandMarkRed
	BandDrop
)

func (t BandType) String() string {
	switch t {
	case BandMarkYellow:
		return "MARK_YELLOW"
	case BandMarkRed:
		return "MARK_RED"
	case BandDrop:
		return "DROP"
	default:
		return fmt.Sprintf("band(%d)", uint8(t))
	}
}

type Band struct {
	Type  BandType
	Rate  uint64
	Burst uint64
}

// MeterRequest configures one meter cell. Cells are keyed by device, scope
// and index, so a second request for the same cell replaces the first.
type MeterRequest struct {
	DeviceID DeviceID
	AppID    AppID
	Scope    string
	Unit     MeterUnit
	Index    uint64
	Bands    []Band
}

func (m MeterRequest) Key() string {
	return fmt.Sprintf("%s|%s|%d", m.DeviceID, m.Scope, m.Index)
}

func (m MeterRequest) String() string {
	return fmt.Sprintf("MeterRequest{device=%s, scope=%s, index=%d, unit=%s, bands=%v}",
		m.DeviceID, m.Scope, m.Index, m.Unit, m.Bands)
}
