// Package memory is an in-process southbound. It keys flow rules and meters
// the same way a real controller does, which makes it the reference store for
// tests and for running tpc without switches.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/veesix-networks/tpc/pkg/logger"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/southbound"
)

type Device struct {
	ID     models.DeviceID
	Master bool
}

type flowEntry struct {
	rule models.FlowRule
	// pollsLeft counts FlowEntriesByApp calls that still report a removed entry.
	pollsLeft int
	removed   bool
}

type Southbound struct {
	southbound.Registry

	logger *slog.Logger

	mu           sync.RWMutex
	devices      map[models.DeviceID]*Device
	apps         map[string]models.AppID
	flows        map[string]*flowEntry
	meters       map[string]models.MeterRequest
	removalLag   int
	failure      error
	flowWrites   int
	meterWrites  int
	flowRemovals int
}

var _ southbound.Southbound = (*Southbound)(nil)

func New(devices ...Device) *Southbound {
	s := &Southbound{
		logger:  logger.Get(logger.Memory),
		devices: make(map[models.DeviceID]*Device),
		apps:    make(map[string]models.AppID),
		flows:   make(map[string]*flowEntry),
		meters:  make(map[string]models.MeterRequest),
	}
	for _, d := range devices {
		s.AddDevice(d)
	}
	return s
}

func (s *Southbound) AddDevice(d Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dev := d
	s.devices[d.ID] = &dev
}

func (s *Southbound) RemoveDevice(id models.DeviceID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.devices, id)
}

func (s *Southbound) SetMaster(id models.DeviceID, master bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[id]; ok {
		d.Master = master
	}
}

// SetFailure makes every later call fail with err until cleared with nil.
func (s *Southbound) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// SetRemovalLag keeps removed entries listed for n more polls, mimicking a
// store that settles removals asynchronously.
func (s *Southbound) SetRemovalLag(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removalLag = n
}

func (s *Southbound) check() error {
	if s.failure != nil {
		return fmt.Errorf("%w: %v", southbound.ErrUnavailable, s.failure)
	}
	return nil
}

func (s *Southbound) RegisterApplication(ctx context.Context, name string) (models.AppID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return models.AppID{}, err
	}

	if app, ok := s.apps[name]; ok {
		return app, nil
	}
	app := models.NewAppID(name)
	s.apps[name] = app
	return app, nil
}

func (s *Southbound) AvailableDevices(ctx context.Context) ([]models.DeviceID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.check(); err != nil {
		return nil, err
	}

	ids := make([]models.DeviceID, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Southbound) IsLocalMaster(device models.DeviceID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[device]
	return ok && d.Master
}

func (s *Southbound) ApplyFlowRules(ctx context.Context, rules ...models.FlowRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}

	var stale []models.DeviceID
	for _, r := range rules {
		if _, ok := s.devices[r.DeviceID]; !ok {
			stale = append(stale, r.DeviceID)
			continue
		}
		s.flows[r.Key()] = &flowEntry{rule: r}
		s.flowWrites++
	}

	if len(stale) > 0 {
		return fmt.Errorf("%w: %v", southbound.ErrDeviceUnavailable, stale)
	}
	return nil
}

func (s *Southbound) RemoveFlowRules(ctx context.Context, rules ...models.FlowRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}

	var stale []models.DeviceID
	for _, r := range rules {
		if _, ok := s.devices[r.DeviceID]; !ok {
			stale = append(stale, r.DeviceID)
			continue
		}
		s.removeLocked(r.Key())
	}

	if len(stale) > 0 {
		return fmt.Errorf("%w: %v", southbound.ErrDeviceUnavailable, stale)
	}
	return nil
}

func (s *Southbound) removeLocked(key string) {
	e, ok := s.flows[key]
	if !ok || e.removed {
		return
	}
	s.flowRemovals++
	if s.removalLag > 0 {
		e.removed = true
		e.pollsLeft = s.removalLag
		return
	}
	delete(s.flows, key)
}

func (s *Southbound) RemoveFlowRulesByApp(ctx context.Context, app models.AppID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}

	for key, e := range s.flows {
		if e.rule.AppID == app {
			s.removeLocked(key)
		}
	}
	return nil
}

func (s *Southbound) FlowEntriesByApp(ctx context.Context, app models.AppID) ([]models.FlowRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return nil, err
	}

	var out []models.FlowRule
	for key, e := range s.flows {
		if e.rule.AppID != app {
			continue
		}
		if e.removed {
			if e.pollsLeft <= 0 {
				delete(s.flows, key)
				continue
			}
			e.pollsLeft--
		}
		out = append(out, e.rule)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (s *Southbound) SubmitMeter(ctx context.Context, req models.MeterRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}
	if _, ok := s.devices[req.DeviceID]; !ok {
		return fmt.Errorf("%w: %s", southbound.ErrDeviceUnavailable, req.DeviceID)
	}

	s.meters[req.Key()] = req
	s.meterWrites++
	return nil
}

func (s *Southbound) PurgeMeters(ctx context.Context, device models.DeviceID, app models.AppID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(); err != nil {
		return err
	}

	for key, m := range s.meters {
		if m.DeviceID == device && m.AppID == app {
			delete(s.meters, key)
		}
	}
	return nil
}

// InjectPacket delivers a frame as if it had been punted by device on port.
func (s *Southbound) InjectPacket(device models.DeviceID, port models.PortNumber, data []byte) *southbound.PacketContext {
	pc := southbound.NewPacketContext(southbound.ConnectPoint{DeviceID: device, Port: port}, data)
	s.Dispatch(pc)
	return pc
}

// SeedFlowRules installs rules without counting them as writes.
func (s *Southbound) SeedFlowRules(rules ...models.FlowRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rules {
		s.flows[r.Key()] = &flowEntry{rule: r}
	}
}

// FlowRules returns live entries sorted by key.
func (s *Southbound) FlowRules() []models.FlowRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FlowRule, 0, len(s.flows))
	for _, e := range s.flows {
		if !e.removed {
			out = append(out, e.rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Meters returns configured meter cells sorted by key.
func (s *Southbound) Meters() []models.MeterRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MeterRequest, 0, len(s.meters))
	for _, m := range s.meters {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

type Stats struct {
	FlowWrites   int
	FlowRemovals int
	MeterWrites  int
}

func (s *Southbound) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		FlowWrites:   s.flowWrites,
		FlowRemovals: s.flowRemovals,
		MeterWrites:  s.meterWrites,
	}
}

func (s *Southbound) Close() error {
	s.logger.Debug("Closing in-memory southbound")
	return nil
}
