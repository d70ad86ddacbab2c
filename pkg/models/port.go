package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PortNumber is a switch port, including the OpenFlow-style logical ports.
type PortNumber uint32

const (
	PortInPort     PortNumber = 0xfffffff8
	PortTable      PortNumber = 0xfffffff9
	PortNormal     PortNumber = 0xfffffffa
	PortFlood      PortNumber = 0xfffffffb
	PortAll        PortNumber = 0xfffffffc
	PortController PortNumber = 0xfffffffd
	PortLocal      PortNumber = 0xfffffffe
	PortAny        PortNumber = 0xffffffff
)

var logicalPorts = map[string]PortNumber{
	"IN_PORT":    PortInPort,
	"TABLE":      PortTable,
	"NORMAL":     PortNormal,
	"FLOOD":      PortFlood,
	"ALL":        PortAll,
	"CONTROLLER": PortController,
	"LOCAL":      PortLocal,
	"ANY":        PortAny,
}

// ParsePortNumber accepts "42", a logical name such as "CONTROLLER", or the
// "[eth1](42)" form.
func ParsePortNumber(s string) (PortNumber, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty port number", ErrMalformedEntry)
	}

	if p, ok := logicalPorts[strings.ToUpper(s)]; ok {
		return p, nil
	}

	if strings.HasPrefix(s, "[") {
		open := strings.LastIndex(s, "(")
		if open < 0 || !strings.HasSuffix(s, ")") || !strings.Contains(s[:open], "]") {
			return 0, fmt.Errorf("%w: invalid port number %q", ErrMalformedEntry, s)
		}
		s = s[open+1 : len(s)-1]
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid port number %q", ErrMalformedEntry, s)
	}
	if n > math.MaxUint32 {
		return 0, fmt.Errorf("%w: port number %d out of range", ErrMalformedEntry, n)
	}

	return PortNumber(n), nil
}

func (p PortNumber) String() string {
	for name, lp := range logicalPorts {
		if lp == p {
			return name
		}
	}
	return strconv.FormatUint(uint64(p), 10)
}
