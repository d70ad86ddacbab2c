// Package rules turns policy entries into pipeline table entries and meter
// requests. Everything here is pure; installing the result is the caller's job.
package rules

import (
	"fmt"

	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/pipeline"
	"inet.af/netaddr"
)

type Builder struct {
	appID models.AppID
}

func NewBuilder(appID models.AppID) *Builder {
	return &Builder{appID: appID}
}

func (b *Builder) AppID() models.AppID {
	return b.appID
}

func (b *Builder) rule(device models.DeviceID, table string, match []models.Criterion, action models.Action, priority int) models.FlowRule {
	return models.FlowRule{
		DeviceID: device,
		AppID:    b.appID,
		Table:    table,
		Match:    match,
		Action:   action,
		Priority: priority,
	}
}

// AttackRule matches src/dst exactly and rewrites them on the duplicate.
func (b *Builder) AttackRule(entry models.AttackEntry) (models.FlowRule, error) {
	if entry.DeviceID == "" {
		return models.FlowRule{}, fmt.Errorf("%w: attack entry without device", models.ErrMalformedEntry)
	}

	addrs := []netaddr.IP{entry.SrcAddress, entry.DstAddress, entry.SrcAddressRewritten, entry.DstAddressRewritten}
	octets := make([][]byte, len(addrs))
	for i, ip := range addrs {
		o, err := ipv4Octets(ip)
		if err != nil {
			return models.FlowRule{}, err
		}
		octets[i] = o
	}

	match := []models.Criterion{
		models.Exact(pipeline.FieldIPv4Src, octets[0]),
		models.Exact(pipeline.FieldIPv4Dst, octets[1]),
	}
	action := models.Action{
		ID: pipeline.ActionAttackDuplicate,
		Params: []models.ActionParam{
			{ID: pipeline.ParamIPv4SrcAddr, Value: octets[2]},
			{ID: pipeline.ParamIPv4DstAddr, Value: octets[3]},
		},
	}

	return b.rule(entry.DeviceID, pipeline.TableAttack, match, action, pipeline.MediumPriority), nil
}

// SliceIDRules returns, in order: ingress slice lookup, egress slice lookup,
// first-hop mark, last-hop mark.
func (b *Builder) SliceIDRules(entry models.SliceIDEntry) ([]models.FlowRule, error) {
	if entry.DeviceID == "" {
		return nil, fmt.Errorf("%w: slice id entry without device", models.ErrMalformedEntry)
	}

	port := models.Uint32Bytes(uint32(entry.PortNumber))
	slice := models.Uint8Bytes(entry.SliceID)

	return []models.FlowRule{
		b.rule(entry.DeviceID, pipeline.TableIngressSliceLookup,
			[]models.Criterion{models.Exact(pipeline.FieldIngressPort, port)},
			models.Action{
				ID:     pipeline.ActionIngressSliceLookup,
				Params: []models.ActionParam{{ID: pipeline.ParamIngressSliceID, Value: slice}},
			},
			pipeline.MediumPriority),
		b.rule(entry.DeviceID, pipeline.TableEgressSliceLookup,
			[]models.Criterion{models.Exact(pipeline.FieldEgressPort, port)},
			models.Action{
				ID:     pipeline.ActionEgressSliceLookup,
				Params: []models.ActionParam{{ID: pipeline.ParamEgressSliceID, Value: slice}},
			},
			pipeline.MediumPriority),
		b.rule(entry.DeviceID, pipeline.TableCheckFirstHop,
			[]models.Criterion{models.Exact(pipeline.FieldIngressPort, port)},
			models.Action{ID: pipeline.ActionSetFirstHop},
			pipeline.MediumPriority),
		b.rule(entry.DeviceID, pipeline.TableCheckLastHop,
			[]models.Criterion{models.Exact(pipeline.FieldEgressPort, port)},
			models.Action{ID: pipeline.ActionSetLastHop},
			pipeline.MediumPriority),
	}, nil
}

// SliceQoSMeter converts the PIR from bits to bytes per second.
func (b *Builder) SliceQoSMeter(entry models.SliceQoSEntry, device models.DeviceID) models.MeterRequest {
	return models.MeterRequest{
		DeviceID: device,
		AppID:    b.appID,
		Scope:    pipeline.MeterSliceScope,
		Unit:     models.MeterUnitBytesPerSec,
		Index:    uint64(entry.SliceID),
		Bands: []models.Band{
			{Type: models.BandMarkYellow, Rate: 0, Burst: 0},
			{Type: models.BandMarkRed, Rate: entry.PIR / 8, Burst: pipeline.SliceMeterBurst},
		},
	}
}

// CheckerRules is used both to enable and to disable checking, so removal
// always targets exactly what was installed.
func (b *Builder) CheckerRules(device models.DeviceID) []models.FlowRule {
	valid := []byte{1}
	return []models.FlowRule{
		b.rule(device, pipeline.TableShouldCheckIso,
			[]models.Criterion{models.Exact(pipeline.FieldEthIsValid, valid)},
			models.Action{ID: pipeline.ActionCheckIso},
			pipeline.MediumPriority),
		b.rule(device, pipeline.TableShouldCheckQoS,
			[]models.Criterion{models.Exact(pipeline.FieldEthIsValid, valid)},
			models.Action{ID: pipeline.ActionCheckQoS},
			pipeline.MediumPriority),
	}
}

func (b *Builder) ACLPuntRule(device models.DeviceID) models.FlowRule {
	return b.rule(device, pipeline.TableACL,
		[]models.Criterion{models.Ternary(pipeline.FieldEthType,
			models.Uint16Bytes(pipeline.CheckerReportEthType),
			models.Uint16Bytes(pipeline.CheckerReportEthMask))},
		models.Action{ID: pipeline.ActionPuntToCPU},
		pipeline.HighPriority)
}

func ipv4Octets(ip netaddr.IP) ([]byte, error) {
	if !ip.Is4() {
		return nil, fmt.Errorf("%w: %q is not an IPv4 address", models.ErrMalformedEntry, ip.String())
	}
	a := ip.As4()
	return a[:], nil
}
