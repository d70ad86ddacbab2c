package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/southbound"
)

func testRule(app models.AppID, device models.DeviceID, action string) models.FlowRule {
	return models.FlowRule{
		DeviceID: device,
		AppID:    app,
		Table:    "t",
		Match:    []models.Criterion{models.Exact("f", []byte{1})},
		Action:   models.Action{ID: action},
		Priority: 7000,
	}
}

func TestRegisterApplicationIsStable(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.RegisterApplication(ctx, "app")
	require.NoError(t, err)
	b, err := s.RegisterApplication(ctx, "app")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.False(t, a.IsZero())
}

func TestApplyReplacesSameKey(t *testing.T) {
	s := New(Device{ID: "d1"})
	ctx := context.Background()
	app := models.NewAppID("app")

	require.NoError(t, s.ApplyFlowRules(ctx, testRule(app, "d1", "a")))
	require.NoError(t, s.ApplyFlowRules(ctx, testRule(app, "d1", "b")))

	rules := s.FlowRules()
	require.Len(t, rules, 1)
	assert.Equal(t, "b", rules[0].Action.ID)
	assert.Equal(t, 2, s.Stats().FlowWrites)
}

func TestApplyUnknownDevice(t *testing.T) {
	s := New(Device{ID: "d1"})
	app := models.NewAppID("app")

	err := s.ApplyFlowRules(context.Background(), testRule(app, "d1", "a"), testRule(app, "gone", "a"))
	require.ErrorIs(t, err, southbound.ErrDeviceUnavailable)
	assert.Len(t, s.FlowRules(), 1)
}

func TestRemoveIgnoresAction(t *testing.T) {
	s := New(Device{ID: "d1"})
	ctx := context.Background()
	app := models.NewAppID("app")

	require.NoError(t, s.ApplyFlowRules(ctx, testRule(app, "d1", "a")))
	require.NoError(t, s.RemoveFlowRules(ctx, testRule(app, "d1", "other")))
	assert.Empty(t, s.FlowRules())

	require.NoError(t, s.RemoveFlowRules(ctx, testRule(app, "d1", "a")))
	assert.Equal(t, 1, s.Stats().FlowRemovals)
}

func TestRemoveReportsStaleDevices(t *testing.T) {
	s := New(Device{ID: "d1"}, Device{ID: "d2"})
	ctx := context.Background()
	app := models.NewAppID("app")

	require.NoError(t, s.ApplyFlowRules(ctx, testRule(app, "d1", "a"), testRule(app, "d2", "a")))
	s.RemoveDevice("d2")

	err := s.RemoveFlowRules(ctx, testRule(app, "d1", "a"), testRule(app, "d2", "a"))
	require.ErrorIs(t, err, southbound.ErrDeviceUnavailable)
	assert.Len(t, s.FlowRules(), 1)
	assert.Equal(t, 1, s.Stats().FlowRemovals)
}

func TestRemovalLag(t *testing.T) {
	s := New(Device{ID: "d1"})
	ctx := context.Background()
	app := models.NewAppID("app")
	s.SetRemovalLag(2)

	require.NoError(t, s.ApplyFlowRules(ctx, testRule(app, "d1", "a")))
	require.NoError(t, s.RemoveFlowRulesByApp(ctx, app))

	for i := 0; i < 2; i++ {
		entries, err := s.FlowEntriesByApp(ctx, app)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "poll %d", i)
	}

	entries, err := s.FlowEntriesByApp(ctx, app)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, s.FlowRules())
}

func TestFlowEntriesByAppFiltersOwner(t *testing.T) {
	s := New(Device{ID: "d1"})
	ctx := context.Background()
	mine := models.NewAppID("mine")
	other := models.NewAppID("other")

	s.SeedFlowRules(testRule(other, "d1", "a"))
	require.NoError(t, s.ApplyFlowRules(ctx, models.FlowRule{DeviceID: "d1", AppID: mine, Table: "x", Priority: 1}))

	entries, err := s.FlowEntriesByApp(ctx, mine)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "x", entries[0].Table)

	require.NoError(t, s.RemoveFlowRulesByApp(ctx, mine))
	assert.Len(t, s.FlowRules(), 1)
}

func TestMetersKeyedByCell(t *testing.T) {
	s := New(Device{ID: "d1"}, Device{ID: "d2"})
	ctx := context.Background()
	app := models.NewAppID("app")

	req := models.MeterRequest{DeviceID: "d1", AppID: app, Scope: "m", Index: 3,
		Bands: []models.Band{{Type: models.BandMarkRed, Rate: 1}}}
	require.NoError(t, s.SubmitMeter(ctx, req))
	req.Bands[0].Rate = 2
	require.NoError(t, s.SubmitMeter(ctx, req))
	req.DeviceID = "d2"
	require.NoError(t, s.SubmitMeter(ctx, req))

	meters := s.Meters()
	require.Len(t, meters, 2)
	assert.Equal(t, 3, s.Stats().MeterWrites)

	require.NoError(t, s.PurgeMeters(ctx, "d1", app))
	meters = s.Meters()
	require.Len(t, meters, 1)
	assert.Equal(t, models.DeviceID("d2"), meters[0].DeviceID)
}

func TestFailureInjection(t *testing.T) {
	s := New(Device{ID: "d1"})
	ctx := context.Background()
	s.SetFailure(errors.New("boom"))

	_, err := s.AvailableDevices(ctx)
	assert.ErrorIs(t, err, southbound.ErrUnavailable)
	_, err = s.RegisterApplication(ctx, "app")
	assert.ErrorIs(t, err, southbound.ErrUnavailable)

	s.SetFailure(nil)
	devices, err := s.AvailableDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.DeviceID{"d1"}, devices)
}

func TestMastership(t *testing.T) {
	s := New(Device{ID: "d1", Master: true}, Device{ID: "d2"})

	assert.True(t, s.IsLocalMaster("d1"))
	assert.False(t, s.IsLocalMaster("d2"))
	assert.False(t, s.IsLocalMaster("d3"))

	s.SetMaster("d2", true)
	assert.True(t, s.IsLocalMaster("d2"))
}

type blockAll struct{ seen int }

func (b *blockAll) Process(pc *southbound.PacketContext) {
	b.seen++
	pc.Block()
}

func TestInjectPacket(t *testing.T) {
	s := New(Device{ID: "d1"})
	p := &blockAll{}
	s.AddProcessor(p, southbound.Advisor(0))

	pc := s.InjectPacket("d1", 7, []byte{0, 1, 2})
	assert.True(t, pc.IsBlocked())
	assert.Equal(t, southbound.ConnectPoint{DeviceID: "d1", Port: 7}, pc.ReceivedFrom())
	assert.Equal(t, 1, p.seen)

	s.RemoveProcessor(p)
	pc = s.InjectPacket("d1", 7, []byte{0, 1, 2})
	assert.False(t, pc.IsBlocked())
	assert.Equal(t, 1, p.seen)
}
