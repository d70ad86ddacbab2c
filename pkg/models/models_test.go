package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortNumber(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    PortNumber
		wantErr bool
	}{
		{name: "decimal", in: "42", want: 42},
		{name: "controller", in: "CONTROLLER", want: PortController},
		{name: "local lower case", in: "local", want: PortLocal},
		{name: "named", in: "[eth1](7)", want: 7},
		{name: "empty", in: "", wantErr: true},
		{name: "negative", in: "-1", wantErr: true},
		{name: "too large", in: "4294967296", wantErr: true},
		{name: "garbage", in: "port1", wantErr: true},
		{name: "broken named", in: "[eth1]7", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePortNumber(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedEntry)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlowRuleKeyIgnoresActionAndMatchOrder(t *testing.T) {
	app := NewAppID("test")
	a := FlowRule{
		DeviceID: "device:leaf1",
		AppID:    app,
		Table:    "t",
		Match:    []Criterion{Exact("a", []byte{1}), Exact("b", []byte{2})},
		Action:   Action{ID: "x"},
		Priority: 10,
	}
	b := a
	b.Match = []Criterion{Exact("b", []byte{2}), Exact("a", []byte{1})}
	b.Action = Action{ID: "y"}

	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(b))

	c := a
	c.Priority = 11
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestAppIDStable(t *testing.T) {
	a := NewAppID("org.onosproject.tpc-app")
	b := NewAppID("org.onosproject.tpc-app")
	assert.Equal(t, a, b)
	assert.Len(t, a.Cookie(), 16)
	assert.NotEqual(t, a.UUID, NewAppID("other").UUID)
	assert.False(t, a.IsZero())
	assert.True(t, AppID{}.IsZero())
}
