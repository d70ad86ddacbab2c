package northbound

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/veesix-networks/tpc/pkg/models"
	"inet.af/netaddr"
)

var ErrInvalidBody = errors.New("invalid request body")

// Row is one named value of a request body.
type Row struct {
	Name string
	Raw  json.RawMessage
}

// SkippedRow records a row dropped during decoding.
type SkippedRow struct {
	Name string
	Err  error
}

// DecodeRows splits a JSON object into its members, keeping body order. A
// repeated name keeps its first position and its last value.
func DecodeRows(body []byte) ([]Row, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidBody)
	}

	var rows []Row
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrInvalidBody, tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: row %q: %v", ErrInvalidBody, name, err)
		}
		if i, dup := index[name]; dup {
			rows[i].Raw = raw
			continue
		}
		index[name] = len(rows)
		rows = append(rows, Row{Name: name, Raw: raw})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidBody)
	}

	return rows, nil
}

func DecodeAttackEntries(body []byte) ([]models.AttackEntry, []SkippedRow, error) {
	return decodeEach(body, func(f fields) (models.AttackEntry, error) {
		device, err := f.device()
		if err != nil {
			return models.AttackEntry{}, err
		}

		var addrs [4]netaddr.IP
		for i, name := range []string{"srcAddress", "dstAddress", "srcAddressRewritten", "dstAddressRewritten"} {
			if addrs[i], err = f.ipv4(name); err != nil {
				return models.AttackEntry{}, err
			}
		}

		return models.AttackEntry{
			DeviceID:            device,
			SrcAddress:          addrs[0],
			DstAddress:          addrs[1],
			SrcAddressRewritten: addrs[2],
			DstAddressRewritten: addrs[3],
		}, nil
	})
}

func DecodeSliceIDEntries(body []byte) ([]models.SliceIDEntry, []SkippedRow, error) {
	return decodeEach(body, func(f fields) (models.SliceIDEntry, error) {
		device, err := f.device()
		if err != nil {
			return models.SliceIDEntry{}, err
		}

		s, err := f.str("portNumber")
		if err != nil {
			return models.SliceIDEntry{}, err
		}
		port, err := models.ParsePortNumber(s)
		if err != nil {
			return models.SliceIDEntry{}, err
		}

		slice, err := f.sliceID()
		if err != nil {
			return models.SliceIDEntry{}, err
		}

		return models.SliceIDEntry{DeviceID: device, PortNumber: port, SliceID: slice}, nil
	})
}

func DecodeSliceQoSEntries(body []byte) ([]models.SliceQoSEntry, []SkippedRow, error) {
	return decodeEach(body, func(f fields) (models.SliceQoSEntry, error) {
		slice, err := f.sliceID()
		if err != nil {
			return models.SliceQoSEntry{}, err
		}

		s, err := f.str("pir")
		if err != nil {
			return models.SliceQoSEntry{}, err
		}
		pir, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return models.SliceQoSEntry{}, fmt.Errorf("%w: invalid pir %q", models.ErrMalformedEntry, s)
		}

		return models.SliceQoSEntry{SliceID: slice, PIR: pir}, nil
	})
}

func decodeEach[T any](body []byte, decode func(fields) (T, error)) ([]T, []SkippedRow, error) {
	rows, err := DecodeRows(body)
	if err != nil {
		return nil, nil, err
	}

	var (
		entries []T
		skipped []SkippedRow
	)
	for _, row := range rows {
		var f fields
		if err := json.Unmarshal(row.Raw, &f); err != nil {
			skipped = append(skipped, SkippedRow{Name: row.Name, Err: fmt.Errorf("%w: row is not an object", models.ErrMalformedEntry)})
			continue
		}

		entry, err := decode(f)
		if err != nil {
			skipped = append(skipped, SkippedRow{Name: row.Name, Err: err})
			continue
		}
		entries = append(entries, entry)
	}

	return entries, skipped, nil
}

type fields map[string]json.RawMessage

// str accepts a JSON string or number.
func (f fields) str(name string) (string, error) {
	raw, ok := f[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", fmt.Errorf("%w: missing %s", models.ErrMalformedEntry, name)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}

	return "", fmt.Errorf("%w: %s must be a string", models.ErrMalformedEntry, name)
}

func (f fields) device() (models.DeviceID, error) {
	s, err := f.str("deviceId")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: empty deviceId", models.ErrMalformedEntry)
	}
	return models.DeviceID(s), nil
}

func (f fields) ipv4(name string) (netaddr.IP, error) {
	s, err := f.str(name)
	if err != nil {
		return netaddr.IP{}, err
	}
	ip, err := netaddr.ParseIP(strings.TrimSpace(s))
	if err != nil || !ip.Is4() {
		return netaddr.IP{}, fmt.Errorf("%w: %s %q is not an IPv4 address", models.ErrMalformedEntry, name, s)
	}
	return ip, nil
}

func (f fields) sliceID() (uint8, error) {
	s, err := f.str("sliceId")
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid sliceId %q", models.ErrMalformedEntry, s)
	}
	return uint8(n), nil
}
