package northbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veesix-networks/tpc/pkg/models"
	"inet.af/netaddr"
)

func TestDecodeRowsKeepsBodyOrder(t *testing.T) {
	rows, err := DecodeRows([]byte(`{"z": 1, "a": {"x": 2}, "m": "s"}`))
	require.NoError(t, err)

	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
	}
	assert.Equal(t, []string{"z", "a", "m"}, names)
	assert.JSONEq(t, `{"x": 2}`, string(rows[1].Raw))
}

func TestDecodeRowsRepeatedNameKeepsLastValue(t *testing.T) {
	rows, err := DecodeRows([]byte(`{"a": 1, "b": 2, "a": 3}`))
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "a", rows[0].Name)
	assert.JSONEq(t, `3`, string(rows[0].Raw))
	assert.Equal(t, "b", rows[1].Name)

	entries, skipped, err := DecodeSliceQoSEntries([]byte(`{"q": {"sliceId": 1, "pir": 8}, "q": {"sliceId": 2, "pir": 16}}`))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, []models.SliceQoSEntry{{SliceID: 2, PIR: 16}}, entries)
}

func TestDecodeRowsInvalid(t *testing.T) {
	for _, body := range []string{``, `[]`, `"x"`, `{"a":`, `{"a": 1} {}`, `{1: 2}`} {
		_, err := DecodeRows([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidBody, "body %q", body)
	}
}

func TestDecodeAttackEntries(t *testing.T) {
	body := `{
		"e1": {"deviceId": "device:leaf1", "srcAddress": "10.0.0.1", "dstAddress": "10.0.0.2",
		       "srcAddressRewritten": "10.0.0.3", "dstAddressRewritten": "10.0.0.4"},
		"missing": {"deviceId": "device:leaf1", "srcAddress": "10.0.0.1"},
		"v6": {"deviceId": "device:leaf1", "srcAddress": "::1", "dstAddress": "10.0.0.2",
		       "srcAddressRewritten": "10.0.0.3", "dstAddressRewritten": "10.0.0.4"},
		"scalar": 5
	}`

	entries, skipped, err := DecodeAttackEntries([]byte(body))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AttackEntry{
		DeviceID:            "device:leaf1",
		SrcAddress:          netaddr.MustParseIP("10.0.0.1"),
		DstAddress:          netaddr.MustParseIP("10.0.0.2"),
		SrcAddressRewritten: netaddr.MustParseIP("10.0.0.3"),
		DstAddressRewritten: netaddr.MustParseIP("10.0.0.4"),
	}, entries[0])

	require.Len(t, skipped, 3)
	for _, s := range skipped {
		assert.ErrorIs(t, s.Err, models.ErrMalformedEntry)
	}
	assert.Equal(t, "missing", skipped[0].Name)
}

func TestDecodeSliceIDEntries(t *testing.T) {
	body := `{
		"a": {"deviceId": "device:leaf1", "portNumber": "42", "sliceId": "7"},
		"b": {"deviceId": "device:leaf2", "portNumber": "CONTROLLER", "sliceId": 3},
		"c": {"deviceId": "device:leaf1", "portNumber": "42", "sliceId": "256"},
		"d": {"deviceId": "device:leaf1", "portNumber": "eth0", "sliceId": "1"},
		"e": {"portNumber": "1", "sliceId": "1"}
	}`

	entries, skipped, err := DecodeSliceIDEntries([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, []models.SliceIDEntry{
		{DeviceID: "device:leaf1", PortNumber: 42, SliceID: 7},
		{DeviceID: "device:leaf2", PortNumber: models.PortController, SliceID: 3},
	}, entries)
	assert.Len(t, skipped, 3)
}

func TestDecodeSliceQoSEntries(t *testing.T) {
	body := `{"q": {"sliceId": "3", "pir": "8000"}, "neg": {"sliceId": "1", "pir": "-1"}, "nopir": {"sliceId": "1"}}`

	entries, skipped, err := DecodeSliceQoSEntries([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, []models.SliceQoSEntry{{SliceID: 3, PIR: 8000}}, entries)
	assert.Len(t, skipped, 2)
}
