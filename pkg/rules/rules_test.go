package rules

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/pipeline"
	"inet.af/netaddr"
)

var testApp = models.NewAppID(pipeline.AppName)

func attackEntry(device string, n byte) models.AttackEntry {
	return models.AttackEntry{
		DeviceID:            models.DeviceID(device),
		SrcAddress:          netaddr.IPv4(10, 0, n, 1),
		DstAddress:          netaddr.IPv4(10, 0, n, 2),
		SrcAddressRewritten: netaddr.IPv4(10, 0, n, 3),
		DstAddressRewritten: netaddr.IPv4(10, 0, n, 4),
	}
}

func TestAttackRule(t *testing.T) {
	b := NewBuilder(testApp)

	rule, err := b.AttackRule(attackEntry("device:leaf1", 0))
	require.NoError(t, err)

	assert.Equal(t, models.DeviceID("device:leaf1"), rule.DeviceID)
	assert.Equal(t, testApp, rule.AppID)
	assert.Equal(t, pipeline.TableAttack, rule.Table)
	assert.Equal(t, pipeline.MediumPriority, rule.Priority)
	assert.Equal(t, []models.Criterion{
		models.Exact(pipeline.FieldIPv4Src, []byte{0x0a, 0x00, 0x00, 0x01}),
		models.Exact(pipeline.FieldIPv4Dst, []byte{0x0a, 0x00, 0x00, 0x02}),
	}, rule.Match)
	assert.Equal(t, models.Action{
		ID: pipeline.ActionAttackDuplicate,
		Params: []models.ActionParam{
			{ID: pipeline.ParamIPv4SrcAddr, Value: []byte{0x0a, 0x00, 0x00, 0x03}},
			{ID: pipeline.ParamIPv4DstAddr, Value: []byte{0x0a, 0x00, 0x00, 0x04}},
		},
	}, rule.Action)
}

func TestAttackRuleOnePerEntry(t *testing.T) {
	b := NewBuilder(testApp)

	for n := 0; n < 5; n++ {
		entry := attackEntry(fmt.Sprintf("device:leaf%d", n), byte(n))
		rule, err := b.AttackRule(entry)
		require.NoError(t, err)
		assert.Equal(t, entry.DeviceID, rule.DeviceID)
		assert.Equal(t, []byte{10, 0, byte(n), 1}, rule.Match[0].Value)
		assert.Equal(t, []byte{10, 0, byte(n), 2}, rule.Match[1].Value)
	}
}

func TestAttackRuleRejectsMalformed(t *testing.T) {
	b := NewBuilder(testApp)

	v6 := attackEntry("device:leaf1", 0)
	v6.DstAddress = netaddr.MustParseIP("2001:db8::1")
	_, err := b.AttackRule(v6)
	assert.ErrorIs(t, err, models.ErrMalformedEntry)

	noDevice := attackEntry("", 0)
	_, err = b.AttackRule(noDevice)
	assert.ErrorIs(t, err, models.ErrMalformedEntry)

	zero := attackEntry("device:leaf1", 0)
	zero.SrcAddressRewritten = netaddr.IP{}
	_, err = b.AttackRule(zero)
	assert.ErrorIs(t, err, models.ErrMalformedEntry)
}

func TestSliceIDRules(t *testing.T) {
	b := NewBuilder(testApp)

	got, err := b.SliceIDRules(models.SliceIDEntry{DeviceID: "device:leaf1", PortNumber: 42, SliceID: 7})
	require.NoError(t, err)
	require.Len(t, got, 4)

	port := []byte{0, 0, 0, 42}
	want := []struct {
		table  string
		field  string
		action string
		params []models.ActionParam
	}{
		{pipeline.TableIngressSliceLookup, pipeline.FieldIngressPort, pipeline.ActionIngressSliceLookup,
			[]models.ActionParam{{ID: pipeline.ParamIngressSliceID, Value: []byte{7}}}},
		{pipeline.TableEgressSliceLookup, pipeline.FieldEgressPort, pipeline.ActionEgressSliceLookup,
			[]models.ActionParam{{ID: pipeline.ParamEgressSliceID, Value: []byte{7}}}},
		{pipeline.TableCheckFirstHop, pipeline.FieldIngressPort, pipeline.ActionSetFirstHop, nil},
		{pipeline.TableCheckLastHop, pipeline.FieldEgressPort, pipeline.ActionSetLastHop, nil},
	}

	for i, w := range want {
		r := got[i]
		assert.Equal(t, models.DeviceID("device:leaf1"), r.DeviceID)
		assert.Equal(t, w.table, r.Table, "rule %d", i)
		assert.Equal(t, []models.Criterion{models.Exact(w.field, port)}, r.Match, "rule %d", i)
		assert.Equal(t, w.action, r.Action.ID, "rule %d", i)
		assert.Equal(t, w.params, r.Action.Params, "rule %d", i)
		assert.Equal(t, pipeline.MediumPriority, r.Priority)
	}
}

func TestSliceQoSMeter(t *testing.T) {
	b := NewBuilder(testApp)

	tests := []struct {
		pir      uint64
		wantRate uint64
	}{
		{pir: 8000, wantRate: 1000},
		{pir: 15, wantRate: 1},
		{pir: 0, wantRate: 0},
		{pir: 10_000_000_000, wantRate: 1_250_000_000},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.pir), func(t *testing.T) {
			m := b.SliceQoSMeter(models.SliceQoSEntry{SliceID: 3, PIR: tt.pir}, "d1")
			assert.Equal(t, models.DeviceID("d1"), m.DeviceID)
			assert.Equal(t, pipeline.MeterSliceScope, m.Scope)
			assert.Equal(t, models.MeterUnitBytesPerSec, m.Unit)
			assert.Equal(t, uint64(3), m.Index)
			assert.Equal(t, []models.Band{
				{Type: models.BandMarkYellow, Rate: 0, Burst: 0},
				{Type: models.BandMarkRed, Rate: tt.wantRate, Burst: 1500},
			}, m.Bands)
		})
	}
}

func TestCheckerRulesAreStable(t *testing.T) {
	b := NewBuilder(testApp)

	on := b.CheckerRules("d1")
	off := b.CheckerRules("d1")
	require.Len(t, on, 2)
	for i := range on {
		assert.True(t, on[i].Equal(off[i]))
		assert.Equal(t, on[i].Key(), off[i].Key())
	}

	assert.Equal(t, pipeline.TableShouldCheckIso, on[0].Table)
	assert.Equal(t, pipeline.ActionCheckIso, on[0].Action.ID)
	assert.Equal(t, pipeline.TableShouldCheckQoS, on[1].Table)
	assert.Equal(t, pipeline.ActionCheckQoS, on[1].Action.ID)
	for _, r := range on {
		assert.Equal(t, []models.Criterion{models.Exact(pipeline.FieldEthIsValid, []byte{1})}, r.Match)
		assert.Equal(t, pipeline.MediumPriority, r.Priority)
	}
}

func TestACLPuntRule(t *testing.T) {
	r := NewBuilder(testApp).ACLPuntRule("d1")

	assert.Equal(t, pipeline.TableACL, r.Table)
	assert.Equal(t, pipeline.HighPriority, r.Priority)
	assert.Equal(t, []models.Criterion{
		models.Ternary(pipeline.FieldEthType, []byte{0x56, 0x78}, []byte{0xff, 0xff}),
	}, r.Match)
	assert.Equal(t, models.Action{ID: pipeline.ActionPuntToCPU}, r.Action)
}
