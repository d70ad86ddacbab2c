package models

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

type DeviceID string

type MatchKind uint8

const (
	MatchExact MatchKind = iota
	MatchTernary
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchTernary:
		return "ternary"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Criterion matches one pipeline field. Mask is only set for ternary matches.
type Criterion struct {
	Field string
	Kind  MatchKind
	Value []byte
	Mask  []byte
}

func Exact(field string, value []byte) Criterion {
	return Criterion{Field: field, Kind: MatchExact, Value: value}
}

func Ternary(field string, value, mask []byte) Criterion {
	return Criterion{Field: field, Kind: MatchTernary, Value: value, Mask: mask}
}

func (c Criterion) Equal(o Criterion) bool {
	return c.Field == o.Field && c.Kind == o.Kind &&
		bytes.Equal(c.Value, o.Value) && bytes.Equal(c.Mask, o.Mask)
}

func (c Criterion) String() string {
	if c.Kind == MatchTernary {
		return fmt.Sprintf("%s=0x%x&&&0x%x", c.Field, c.Value, c.Mask)
	}
	return fmt.Sprintf("%s=0x%x", c.Field, c.Value)
}

type ActionParam struct {
	ID    string
	Value []byte
}

type Action struct {
	ID     string
	Params []ActionParam
}

func (a Action) Equal(o Action) bool {
	if a.ID != o.ID || len(a.Params) != len(o.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i].ID != o.Params[i].ID || !bytes.Equal(a.Params[i].Value, o.Params[i].Value) {
			return false
		}
	}
	return true
}

func (a Action) String() string {
	params := make([]string, 0, len(a.Params))
	for _, p := range a.Params {
		params = append(params, fmt.Sprintf("%s=0x%x", p.ID, p.Value))
	}
	return fmt.Sprintf("%s(%s)", a.ID, strings.Join(params, ", "))
}

// FlowRule is one table entry on one device.
type FlowRule struct {
	DeviceID DeviceID
	AppID    AppID
	Table    string
	Match    []Criterion
	Action   Action
	Priority int
}

// Key identifies the table entry a rule occupies: device, table, match set and
// priority. The action and owner do not take part.
func (r FlowRule) Key() string {
	fields := make([]string, 0, len(r.Match))
	for _, c := range r.Match {
		fields = append(fields, c.Field+"/"+c.Kind.String()+"/"+hex.EncodeToString(c.Value)+"/"+hex.EncodeToString(c.Mask))
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s|%s|%d|%s", r.DeviceID, r.Table, r.Priority, strings.Join(fields, ","))
}

func (r FlowRule) Equal(o FlowRule) bool {
	if r.DeviceID != o.DeviceID || r.AppID != o.AppID || r.Table != o.Table ||
		r.Priority != o.Priority || len(r.Match) != len(o.Match) {
		return false
	}
	for i := range r.Match {
		if !r.Match[i].Equal(o.Match[i]) {
			return false
		}
	}
	return r.Action.Equal(o.Action)
}

func (r FlowRule) String() string {
	match := make([]string, 0, len(r.Match))
	for _, c := range r.Match {
		match = append(match, c.String())
	}
	return fmt.Sprintf("FlowRule{device=%s, table=%s, match=[%s], action=%s, priority=%d}",
		r.DeviceID, r.Table, strings.Join(match, ", "), r.Action, r.Priority)
}

func Uint8Bytes(v uint8) []byte {
	return []byte{v}
}

func Uint16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func Uint32Bytes(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}
