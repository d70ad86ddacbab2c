package p4rt

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	p4configv1 "github.com/p4lang/p4runtime/go/p4/config/v1"
	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/veesix-networks/tpc/pkg/models"
)

var ErrTranslation = errors.New("cannot translate")

// canonical strips leading zero bytes, keeping at least one byte.
func canonical(b []byte) []byte {
	i := 0
	for i < len(b)-1 && b[i] == 0 {
		i++
	}
	out := make([]byte, len(b)-i)
	copy(out, b[i:])
	if len(out) == 0 {
		return []byte{0}
	}
	return out
}

// fitsBitwidth reports whether a canonical value fits in bitwidth bits.
func fitsBitwidth(b []byte, bitwidth int32) bool {
	if bitwidth <= 0 {
		return true
	}
	if len(b) == 1 && b[0] == 0 {
		return true
	}
	bits := (len(b)-1)*8 + (8 - leadingZeros(b[0]))
	return int32(bits) <= bitwidth
}

func leadingZeros(b byte) int {
	n := 0
	for mask := byte(0x80); mask != 0 && b&mask == 0; mask >>= 1 {
		n++
	}
	return n
}

// padded widens a value to the byte width of bitwidth.
func padded(b []byte, bitwidth int32) []byte {
	width := int((bitwidth + 7) / 8)
	if width <= len(b) {
		return b
	}
	out := make([]byte, width)
	copy(out[width-len(b):], b)
	return out
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// tableEntry translates a rule into a table entry tagged with the owner's
// cookie.
func (s *Schema) tableEntry(r models.FlowRule) (*p4v1.TableEntry, error) {
	t, err := s.table(r.Table)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}

	te := &p4v1.TableEntry{
		TableId:  t.id,
		Metadata: r.AppID.Cookie(),
	}
	if t.needsPriority {
		te.Priority = int32(r.Priority)
	}

	for _, c := range r.Match {
		mf, ok := t.fields[c.Field]
		if !ok {
			return nil, fmt.Errorf("%w: match field %q not in table %s", ErrTranslation, c.Field, t.name)
		}
		fm, skip, err := fieldMatch(mf, c)
		if err != nil {
			return nil, err
		}
		if !skip {
			te.Match = append(te.Match, fm)
		}
	}

	a, err := s.action(r.Action.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	action := &p4v1.Action{ActionId: a.id}
	for _, p := range r.Action.Params {
		ap, ok := a.params[p.ID]
		if !ok {
			return nil, fmt.Errorf("%w: param %q not in action %s", ErrTranslation, p.ID, a.name)
		}
		v := canonical(p.Value)
		if !fitsBitwidth(v, ap.GetBitwidth()) {
			return nil, fmt.Errorf("%w: param %s value 0x%x exceeds %d bits", ErrTranslation, p.ID, p.Value, ap.GetBitwidth())
		}
		action.Params = append(action.Params, &p4v1.Action_Param{ParamId: ap.GetId(), Value: v})
	}
	te.Action = &p4v1.TableAction{Type: &p4v1.TableAction_Action{Action: action}}

	return te, nil
}

// fieldMatch returns skip for a ternary criterion with an all-zero mask,
// which P4Runtime expresses by omitting the field.
func fieldMatch(mf *p4configv1.MatchField, c models.Criterion) (*p4v1.FieldMatch, bool, error) {
	value := canonical(c.Value)
	if !fitsBitwidth(value, mf.GetBitwidth()) {
		return nil, false, fmt.Errorf("%w: field %s value 0x%x exceeds %d bits", ErrTranslation, c.Field, c.Value, mf.GetBitwidth())
	}

	switch c.Kind {
	case models.MatchExact:
		if mf.GetMatchType() != p4configv1.MatchField_EXACT {
			return nil, false, fmt.Errorf("%w: field %s is %s, not exact", ErrTranslation, c.Field, mf.GetMatchType())
		}
		return &p4v1.FieldMatch{
			FieldId:        mf.GetId(),
			FieldMatchType: &p4v1.FieldMatch_Exact_{Exact: &p4v1.FieldMatch_Exact{Value: value}},
		}, false, nil

	case models.MatchTernary:
		if mf.GetMatchType() != p4configv1.MatchField_TERNARY {
			return nil, false, fmt.Errorf("%w: field %s is %s, not ternary", ErrTranslation, c.Field, mf.GetMatchType())
		}
		if isZero(c.Mask) {
			return nil, true, nil
		}
		masked := applyMask(c.Value, c.Mask)
		return &p4v1.FieldMatch{
			FieldId: mf.GetId(),
			FieldMatchType: &p4v1.FieldMatch_Ternary_{Ternary: &p4v1.FieldMatch_Ternary{
				Value: canonical(masked),
				Mask:  canonical(c.Mask),
			}},
		}, false, nil

	default:
		return nil, false, fmt.Errorf("%w: match kind %s", ErrTranslation, c.Kind)
	}
}

// applyMask ANDs right-aligned value and mask.
func applyMask(value, mask []byte) []byte {
	out := make([]byte, len(value))
	for i := range value {
		mi := len(mask) - len(value) + i
		if mi >= 0 {
			out[i] = value[i] & mask[mi]
		}
	}
	return out
}

// flowRule translates a table entry read from a device back into a rule.
// Values are widened to the field's byte width. Rules of tables without a
// ternary key come back with priority 0.
func (s *Schema) flowRule(device models.DeviceID, app models.AppID, te *p4v1.TableEntry) (models.FlowRule, error) {
	t, ok := s.tablesByID[te.GetTableId()]
	if !ok {
		return models.FlowRule{}, fmt.Errorf("%w: table id %d", ErrTranslation, te.GetTableId())
	}

	r := models.FlowRule{
		DeviceID: device,
		AppID:    app,
		Table:    t.name,
		Priority: int(te.GetPriority()),
	}

	for _, fm := range te.GetMatch() {
		mf, ok := t.fieldsByID[fm.GetFieldId()]
		if !ok {
			return models.FlowRule{}, fmt.Errorf("%w: field id %d in table %s", ErrTranslation, fm.GetFieldId(), t.name)
		}
		switch {
		case fm.GetExact() != nil:
			r.Match = append(r.Match, models.Exact(mf.GetName(), padded(fm.GetExact().GetValue(), mf.GetBitwidth())))
		case fm.GetTernary() != nil:
			r.Match = append(r.Match, models.Ternary(mf.GetName(),
				padded(fm.GetTernary().GetValue(), mf.GetBitwidth()),
				padded(fm.GetTernary().GetMask(), mf.GetBitwidth())))
		default:
			return models.FlowRule{}, fmt.Errorf("%w: unsupported match on field %s", ErrTranslation, mf.GetName())
		}
	}

	action := te.GetAction().GetAction()
	if action == nil {
		return models.FlowRule{}, fmt.Errorf("%w: entry in %s has no direct action", ErrTranslation, t.name)
	}
	a, ok := s.actionsByID[action.GetActionId()]
	if !ok {
		return models.FlowRule{}, fmt.Errorf("%w: action id %d", ErrTranslation, action.GetActionId())
	}
	r.Action.ID = a.name
	for _, p := range action.GetParams() {
		ap, ok := a.paramsByID[p.GetParamId()]
		if !ok {
			return models.FlowRule{}, fmt.Errorf("%w: param id %d in action %s", ErrTranslation, p.GetParamId(), a.name)
		}
		r.Action.Params = append(r.Action.Params, models.ActionParam{
			ID:    ap.GetName(),
			Value: padded(p.GetValue(), ap.GetBitwidth()),
		})
	}

	return r, nil
}

// entryKey identifies the table entry slot: table, priority and match set.
func entryKey(te *p4v1.TableEntry) string {
	fields := make([]string, 0, len(te.GetMatch()))
	for _, fm := range te.GetMatch() {
		var value, mask []byte
		switch {
		case fm.GetExact() != nil:
			value = fm.GetExact().GetValue()
		case fm.GetTernary() != nil:
			value = fm.GetTernary().GetValue()
			mask = fm.GetTernary().GetMask()
		}
		fields = append(fields, fmt.Sprintf("%d:%s/%s", fm.GetFieldId(),
			hex.EncodeToString(canonical(value)), hex.EncodeToString(mask)))
	}
	sort.Strings(fields)
	return fmt.Sprintf("%d|%d|%s", te.GetTableId(), te.GetPriority(), strings.Join(fields, ","))
}

// meterEntry maps the lower-rate band onto CIR/CBURST and the higher one onto
// PIR/PBURST.
func (s *Schema) meterEntry(req models.MeterRequest) (*p4v1.MeterEntry, error) {
	m, err := s.meter(req.Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	if err := checkMeterUnit(m, req.Unit); err != nil {
		return nil, err
	}
	if req.Index > math.MaxInt64 || (m.GetSize() > 0 && int64(req.Index) >= m.GetSize()) {
		return nil, fmt.Errorf("%w: meter %s index %d out of range", ErrTranslation, req.Scope, req.Index)
	}
	if len(req.Bands) == 0 {
		return nil, fmt.Errorf("%w: meter %s has no bands", ErrTranslation, req.Scope)
	}

	bands := make([]models.Band, len(req.Bands))
	copy(bands, req.Bands)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].Rate < bands[j].Rate })
	low, high := bands[0], bands[len(bands)-1]

	for _, b := range []models.Band{low, high} {
		if b.Rate > math.MaxInt64 || b.Burst > math.MaxInt64 {
			return nil, fmt.Errorf("%w: meter %s band rate %d out of range", ErrTranslation, req.Scope, b.Rate)
		}
	}

	return &p4v1.MeterEntry{
		MeterId: m.GetPreamble().GetId(),
		Index:   &p4v1.Index{Index: int64(req.Index)},
		Config: &p4v1.MeterConfig{
			Cir:    int64(low.Rate),
			Cburst: int64(low.Burst),
			Pir:    int64(high.Rate),
			Pburst: int64(high.Burst),
		},
	}, nil
}

func checkMeterUnit(m *p4configv1.Meter, unit models.MeterUnit) error {
	switch m.GetSpec().GetUnit() {
	case p4configv1.MeterSpec_BYTES:
		if unit != models.MeterUnitBytesPerSec {
			return fmt.Errorf("%w: meter %s counts bytes, request is %s", ErrTranslation, m.GetPreamble().GetName(), unit)
		}
	case p4configv1.MeterSpec_PACKETS:
		if unit != models.MeterUnitPacketsPerSec {
			return fmt.Errorf("%w: meter %s counts packets, request is %s", ErrTranslation, m.GetPreamble().GetName(), unit)
		}
	}
	return nil
}

// ingressPort reads the ingress port from packet-in metadata.
func (s *Schema) ingressPort(pkt *p4v1.PacketIn) (models.PortNumber, bool) {
	id, ok := s.ingressPortID()
	if !ok {
		return 0, false
	}
	for _, md := range pkt.GetMetadata() {
		if md.GetMetadataId() != id {
			continue
		}
		v := md.GetValue()
		if len(v) > 4 {
			if !isZero(v[:len(v)-4]) {
				return 0, false
			}
			v = v[len(v)-4:]
		}
		return models.PortNumber(binary.BigEndian.Uint32(padded(v, 32))), true
	}
	return 0, false
}
