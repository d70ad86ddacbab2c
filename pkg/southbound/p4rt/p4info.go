package p4rt

import (
	"errors"
	"fmt"

	p4configv1 "github.com/p4lang/p4runtime/go/p4/config/v1"
	"github.com/veesix-networks/tpc/pkg/pipeline"
)

var ErrUnknownEntity = errors.New("not in pipeline info")

type tableInfo struct {
	name       string
	id         uint32
	fields     map[string]*p4configv1.MatchField
	fieldsByID map[uint32]*p4configv1.MatchField
	// needsPriority is set when the key has a ternary, range or optional
	// field. Entries of other tables must carry priority 0.
	needsPriority bool
}

type actionInfo struct {
	name       string
	id         uint32
	params     map[string]*p4configv1.Action_Param
	paramsByID map[uint32]*p4configv1.Action_Param
}

// Schema indexes a P4Info by name, alias and ID.
type Schema struct {
	tables      map[string]*tableInfo
	tablesByID  map[uint32]*tableInfo
	actions     map[string]*actionInfo
	actionsByID map[uint32]*actionInfo
	meters      map[string]*p4configv1.Meter
	packetIn    map[string]*p4configv1.ControllerPacketMetadata_Metadata
}

func NewSchema(info *p4configv1.P4Info) (*Schema, error) {
	if info == nil {
		return nil, errors.New("pipeline info is empty")
	}

	s := &Schema{
		tables:      make(map[string]*tableInfo),
		tablesByID:  make(map[uint32]*tableInfo),
		actions:     make(map[string]*actionInfo),
		actionsByID: make(map[uint32]*actionInfo),
		meters:      make(map[string]*p4configv1.Meter),
		packetIn:    make(map[string]*p4configv1.ControllerPacketMetadata_Metadata),
	}

	for _, t := range info.GetTables() {
		p := t.GetPreamble()
		ti := &tableInfo{
			name:       p.GetName(),
			id:         p.GetId(),
			fields:     make(map[string]*p4configv1.MatchField),
			fieldsByID: make(map[uint32]*p4configv1.MatchField),
		}
		for _, mf := range t.GetMatchFields() {
			ti.fields[mf.GetName()] = mf
			ti.fieldsByID[mf.GetId()] = mf
			switch mf.GetMatchType() {
			case p4configv1.MatchField_TERNARY, p4configv1.MatchField_RANGE, p4configv1.MatchField_OPTIONAL:
				ti.needsPriority = true
			}
		}
		s.tablesByID[ti.id] = ti
		indexName(s.tables, p, ti)
	}

	for _, a := range info.GetActions() {
		p := a.GetPreamble()
		ai := &actionInfo{
			name:       p.GetName(),
			id:         p.GetId(),
			params:     make(map[string]*p4configv1.Action_Param),
			paramsByID: make(map[uint32]*p4configv1.Action_Param),
		}
		for _, param := range a.GetParams() {
			ai.params[param.GetName()] = param
			ai.paramsByID[param.GetId()] = param
		}
		s.actionsByID[ai.id] = ai
		indexName(s.actions, p, ai)
	}

	for _, m := range info.GetMeters() {
		indexName(s.meters, m.GetPreamble(), m)
	}

	for _, cpm := range info.GetControllerPacketMetadata() {
		if cpm.GetPreamble().GetName() != "packet_in" {
			continue
		}
		for _, md := range cpm.GetMetadata() {
			s.packetIn[md.GetName()] = md
		}
	}

	return s, nil
}

func indexName[T any](m map[string]T, p *p4configv1.Preamble, v T) {
	m[p.GetName()] = v
	if alias := p.GetAlias(); alias != "" {
		if _, taken := m[alias]; !taken {
			m[alias] = v
		}
	}
}

func (s *Schema) table(name string) (*tableInfo, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q %w", name, ErrUnknownEntity)
	}
	return t, nil
}

func (s *Schema) action(name string) (*actionInfo, error) {
	a, ok := s.actions[name]
	if !ok {
		return nil, fmt.Errorf("action %q %w", name, ErrUnknownEntity)
	}
	return a, nil
}

func (s *Schema) meter(name string) (*p4configv1.Meter, error) {
	m, ok := s.meters[name]
	if !ok {
		return nil, fmt.Errorf("meter %q %w", name, ErrUnknownEntity)
	}
	return m, nil
}

// ingressPortID returns the packet-in metadata ID carrying the ingress port.
func (s *Schema) ingressPortID() (uint32, bool) {
	md, ok := s.packetIn[pipeline.PacketInIngressPort]
	if !ok {
		return 0, false
	}
	return md.GetId(), true
}
