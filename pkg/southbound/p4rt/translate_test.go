package p4rt

import (
	"testing"

	p4configv1 "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/pipeline"
	"github.com/veesix-networks/tpc/pkg/rules"
	"inet.af/netaddr"
)

func matchField(id uint32, name string, bitwidth int32, kind p4configv1.MatchField_MatchType) *p4configv1.MatchField {
	return &p4configv1.MatchField{
		Id:       id,
		Name:     name,
		Bitwidth: bitwidth,
		Match:    &p4configv1.MatchField_MatchType_{MatchType: kind},
	}
}

func param(id uint32, name string, bitwidth int32) *p4configv1.Action_Param {
	return &p4configv1.Action_Param{Id: id, Name: name, Bitwidth: bitwidth}
}

// testInfo is a cut-down fabric P4Info with the objects tpc programs.
func testInfo() *p4configv1.P4Info {
	return &p4configv1.P4Info{
		Tables: []*p4configv1.Table{
			{
				Preamble: &p4configv1.Preamble{Id: 1, Name: pipeline.TableAttack, Alias: "attack"},
				MatchFields: []*p4configv1.MatchField{
					matchField(1, pipeline.FieldIPv4Src, 32, p4configv1.MatchField_EXACT),
					matchField(2, pipeline.FieldIPv4Dst, 32, p4configv1.MatchField_EXACT),
				},
			},
			{
				Preamble:    &p4configv1.Preamble{Id: 2, Name: pipeline.TableACL, Alias: "acl"},
				MatchFields: []*p4configv1.MatchField{matchField(1, pipeline.FieldEthType, 16, p4configv1.MatchField_TERNARY)},
			},
			{
				Preamble:    &p4configv1.Preamble{Id: 3, Name: pipeline.TableIngressSliceLookup},
				MatchFields: []*p4configv1.MatchField{matchField(1, pipeline.FieldIngressPort, 9, p4configv1.MatchField_EXACT)},
			},
			{
				Preamble:    &p4configv1.Preamble{Id: 4, Name: pipeline.TableShouldCheckIso},
				MatchFields: []*p4configv1.MatchField{matchField(1, pipeline.FieldEthIsValid, 1, p4configv1.MatchField_EXACT)},
			},
		},
		Actions: []*p4configv1.Action{
			{
				Preamble: &p4configv1.Preamble{Id: 10, Name: pipeline.ActionAttackDuplicate},
				Params: []*p4configv1.Action_Param{
					param(1, pipeline.ParamIPv4SrcAddr, 32),
					param(2, pipeline.ParamIPv4DstAddr, 32),
				},
			},
			{Preamble: &p4configv1.Preamble{Id: 11, Name: pipeline.ActionPuntToCPU, Alias: "punt_to_cpu"}},
			{
				Preamble: &p4configv1.Preamble{Id: 12, Name: pipeline.ActionIngressSliceLookup},
				Params:   []*p4configv1.Action_Param{param(1, pipeline.ParamIngressSliceID, 8)},
			},
			{Preamble: &p4configv1.Preamble{Id: 13, Name: pipeline.ActionCheckIso}},
		},
		Meters: []*p4configv1.Meter{
			{
				Preamble: &p4configv1.Preamble{Id: 20, Name: pipeline.MeterSliceScope, Alias: "slice_meter"},
				Spec:     &p4configv1.MeterSpec{Unit: p4configv1.MeterSpec_BYTES},
				Size:     16,
			},
		},
		ControllerPacketMetadata: []*p4configv1.ControllerPacketMetadata{
			{
				Preamble: &p4configv1.Preamble{Id: 30, Name: "packet_in"},
				Metadata: []*p4configv1.ControllerPacketMetadata_Metadata{
					{Id: 1, Name: pipeline.PacketInIngressPort, Bitwidth: 9},
				},
			},
		},
	}
}

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(testInfo())
	require.NoError(t, err)
	return s
}

func attackEntry(device models.DeviceID, rewrite string) models.AttackEntry {
	return models.AttackEntry{
		DeviceID:            device,
		SrcAddress:          netaddr.MustParseIP("10.0.0.1"),
		DstAddress:          netaddr.MustParseIP("10.0.0.2"),
		SrcAddressRewritten: netaddr.MustParseIP(rewrite),
		DstAddressRewritten: netaddr.MustParseIP("10.0.0.4"),
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   []byte
		want []byte
	}{
		{[]byte{0, 0, 0, 5}, []byte{5}},
		{[]byte{0, 1, 0}, []byte{1, 0}},
		{[]byte{0, 0}, []byte{0}},
		{[]byte{}, []byte{0}},
		{[]byte{0x56, 0x78}, []byte{0x56, 0x78}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, canonical(tt.in), "canonical(%x)", tt.in)
	}
}

func TestFitsBitwidth(t *testing.T) {
	assert.True(t, fitsBitwidth([]byte{0x01, 0xff}, 9))
	assert.False(t, fitsBitwidth([]byte{0x02, 0x00}, 9))
	assert.True(t, fitsBitwidth([]byte{0x01}, 1))
	assert.False(t, fitsBitwidth([]byte{0x02}, 1))
	assert.True(t, fitsBitwidth([]byte{0}, 1))
}

func TestSchemaLookupByAlias(t *testing.T) {
	s := testSchema(t)

	byName, err := s.table(pipeline.TableACL)
	require.NoError(t, err)
	byAlias, err := s.table("acl")
	require.NoError(t, err)
	assert.Same(t, byName, byAlias)

	_, err = s.table("FabricIngress.missing")
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = NewSchema(nil)
	assert.Error(t, err)
}

func TestAttackRuleRoundTrip(t *testing.T) {
	s := testSchema(t)
	app := models.NewAppID(pipeline.AppName)
	rule, err := rules.NewBuilder(app).AttackRule(attackEntry("device:s1", "10.0.0.3"))
	require.NoError(t, err)

	te, err := s.tableEntry(rule)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), te.GetTableId())
	assert.Equal(t, app.Cookie(), te.GetMetadata())
	require.Len(t, te.GetMatch(), 2)
	assert.Equal(t, []byte{10, 0, 0, 1}, te.GetMatch()[0].GetExact().GetValue())
	assert.Equal(t, uint32(10), te.GetAction().GetAction().GetActionId())

	// Exact-only tables are written and read back without a priority.
	back, err := s.flowRule("device:s1", app, te)
	require.NoError(t, err)
	want := rule
	want.Priority = 0
	assert.True(t, want.Equal(back), "got %s", back)
}

func TestPriorityOnlyForTernaryTables(t *testing.T) {
	s := testSchema(t)
	b := rules.NewBuilder(models.NewAppID(pipeline.AppName))

	attack, err := b.AttackRule(attackEntry("device:s1", "10.0.0.3"))
	require.NoError(t, err)
	require.NotZero(t, attack.Priority)
	te, err := s.tableEntry(attack)
	require.NoError(t, err)
	assert.Zero(t, te.GetPriority())

	slices, err := b.SliceIDRules(models.SliceIDEntry{DeviceID: "device:s1", PortNumber: 1, SliceID: 1})
	require.NoError(t, err)
	te, err = s.tableEntry(slices[0])
	require.NoError(t, err)
	assert.Zero(t, te.GetPriority())

	// The test pipeline only carries the iso checker table.
	checker := b.CheckerRules("device:s1")[0]
	require.NotZero(t, checker.Priority)
	te, err = s.tableEntry(checker)
	require.NoError(t, err)
	assert.Zero(t, te.GetPriority())

	te, err = s.tableEntry(b.ACLPuntRule("device:s1"))
	require.NoError(t, err)
	assert.Equal(t, int32(pipeline.HighPriority), te.GetPriority())
}

func TestSliceRuleIsCanonicalised(t *testing.T) {
	s := testSchema(t)
	app := models.NewAppID(pipeline.AppName)
	rs, err := rules.NewBuilder(app).SliceIDRules(models.SliceIDEntry{DeviceID: "device:s1", PortNumber: 300, SliceID: 2})
	require.NoError(t, err)

	te, err := s.tableEntry(rs[0])
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x2c}, te.GetMatch()[0].GetExact().GetValue())
	assert.Equal(t, []byte{2}, te.GetAction().GetAction().GetParams()[0].GetValue())

	back, err := s.flowRule("device:s1", app, te)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x2c}, back.Match[0].Value)

	again, err := s.tableEntry(back)
	require.NoError(t, err)
	assert.Equal(t, entryKey(te), entryKey(again))
}

func TestPortExceedingBitwidthIsRejected(t *testing.T) {
	s := testSchema(t)
	rs, err := rules.NewBuilder(models.NewAppID("app")).SliceIDRules(models.SliceIDEntry{DeviceID: "device:s1", PortNumber: 512, SliceID: 1})
	require.NoError(t, err)

	_, err = s.tableEntry(rs[0])
	assert.ErrorIs(t, err, ErrTranslation)
}

func TestTernaryMatch(t *testing.T) {
	s := testSchema(t)
	rule := rules.NewBuilder(models.NewAppID("app")).ACLPuntRule("device:s1")

	te, err := s.tableEntry(rule)
	require.NoError(t, err)
	require.Len(t, te.GetMatch(), 1)
	tern := te.GetMatch()[0].GetTernary()
	require.NotNil(t, tern)
	assert.Equal(t, []byte{0x56, 0x78}, tern.GetValue())
	assert.Equal(t, []byte{0xff, 0xff}, tern.GetMask())
	assert.Equal(t, int32(pipeline.HighPriority), te.GetPriority())

	rule.Match[0].Mask = []byte{0, 0}
	te, err = s.tableEntry(rule)
	require.NoError(t, err)
	assert.Empty(t, te.GetMatch())
}

func TestMatchKindMustAgree(t *testing.T) {
	s := testSchema(t)
	rule := models.FlowRule{
		Table:  pipeline.TableACL,
		Match:  []models.Criterion{models.Exact(pipeline.FieldEthType, []byte{0x56, 0x78})},
		Action: models.Action{ID: pipeline.ActionPuntToCPU},
	}

	_, err := s.tableEntry(rule)
	assert.ErrorIs(t, err, ErrTranslation)
}

func TestUnknownNamesAreRejected(t *testing.T) {
	s := testSchema(t)

	_, err := s.tableEntry(models.FlowRule{Table: "nope", Action: models.Action{ID: pipeline.ActionPuntToCPU}})
	assert.ErrorIs(t, err, ErrTranslation)

	_, err = s.tableEntry(models.FlowRule{Table: pipeline.TableACL, Action: models.Action{ID: "nope"}})
	assert.ErrorIs(t, err, ErrTranslation)

	_, err = s.tableEntry(models.FlowRule{
		Table:  pipeline.TableACL,
		Match:  []models.Criterion{models.Exact("nope", []byte{1})},
		Action: models.Action{ID: pipeline.ActionPuntToCPU},
	})
	assert.ErrorIs(t, err, ErrTranslation)
}

func TestMeterEntryBands(t *testing.T) {
	s := testSchema(t)
	req := rules.NewBuilder(models.NewAppID("app")).SliceQoSMeter(models.SliceQoSEntry{SliceID: 3, PIR: 80000}, "device:s1")

	me, err := s.meterEntry(req)
	require.NoError(t, err)

	assert.Equal(t, uint32(20), me.GetMeterId())
	assert.Equal(t, int64(3), me.GetIndex().GetIndex())
	assert.Equal(t, int64(0), me.GetConfig().GetCir())
	assert.Equal(t, int64(0), me.GetConfig().GetCburst())
	assert.Equal(t, int64(10000), me.GetConfig().GetPir())
	assert.Equal(t, int64(pipeline.SliceMeterBurst), me.GetConfig().GetPburst())
}

func TestMeterEntryRejects(t *testing.T) {
	s := testSchema(t)
	base := rules.NewBuilder(models.NewAppID("app")).SliceQoSMeter(models.SliceQoSEntry{SliceID: 3, PIR: 8}, "device:s1")

	outOfRange := base
	outOfRange.Index = 16
	_, err := s.meterEntry(outOfRange)
	assert.ErrorIs(t, err, ErrTranslation)

	packets := base
	packets.Unit = models.MeterUnitPacketsPerSec
	_, err = s.meterEntry(packets)
	assert.ErrorIs(t, err, ErrTranslation)

	noBands := base
	noBands.Bands = nil
	_, err = s.meterEntry(noBands)
	assert.ErrorIs(t, err, ErrTranslation)
}

func TestIngressPort(t *testing.T) {
	s := testSchema(t)

	port, ok := s.ingressPort(&p4v1.PacketIn{
		Metadata: []*p4v1.PacketMetadata{{MetadataId: 1, Value: []byte{0x01, 0x04}}},
	})
	require.True(t, ok)
	assert.Equal(t, models.PortNumber(260), port)

	_, ok = s.ingressPort(&p4v1.PacketIn{})
	assert.False(t, ok)
}

func TestEntryKeyIgnoresActionAndOrder(t *testing.T) {
	a := &p4v1.TableEntry{
		TableId:  1,
		Priority: 10,
		Match: []*p4v1.FieldMatch{
			{FieldId: 1, FieldMatchType: &p4v1.FieldMatch_Exact_{Exact: &p4v1.FieldMatch_Exact{Value: []byte{1}}}},
			{FieldId: 2, FieldMatchType: &p4v1.FieldMatch_Exact_{Exact: &p4v1.FieldMatch_Exact{Value: []byte{2}}}},
		},
		Action: &p4v1.TableAction{Type: &p4v1.TableAction_Action{Action: &p4v1.Action{ActionId: 1}}},
	}
	b := &p4v1.TableEntry{
		TableId:  1,
		Priority: 10,
		Match:    []*p4v1.FieldMatch{a.Match[1], a.Match[0]},
		Action:   &p4v1.TableAction{Type: &p4v1.TableAction_Action{Action: &p4v1.Action{ActionId: 2}}},
	}
	assert.Equal(t, entryKey(a), entryKey(b))

	b.Priority = 11
	assert.NotEqual(t, entryKey(a), entryKey(b))
}
