// Package p4rt drives P4Runtime targets directly. Each configured device gets
// its own gRPC connection and stream channel; flow rules and meters are
// translated against the P4Info the device reports.
package p4rt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/veesix-networks/tpc/pkg/logger"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/southbound"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const DefaultRPCTimeout = 5 * time.Second

type DeviceConfig struct {
	ID         models.DeviceID
	Address    string
	P4DeviceID uint64
}

type Options struct {
	ElectionID uint64
	RPCTimeout time.Duration
	Devices    []DeviceConfig
	// DialOptions are appended after the default insecure credentials.
	DialOptions []grpc.DialOption
}

type Southbound struct {
	southbound.Registry

	logger  *slog.Logger
	devices map[models.DeviceID]*device

	ctx       context.Context
	cancel    context.CancelFunc
	group     *errgroup.Group
	closeOnce sync.Once
}

var _ southbound.Southbound = (*Southbound)(nil)

// Open dials every device and waits until each has either established its
// first session or failed it. Devices that fail keep retrying in the
// background and stay unavailable until they connect.
func Open(ctx context.Context, opts Options) (*Southbound, error) {
	if opts.RPCTimeout <= 0 {
		opts.RPCTimeout = DefaultRPCTimeout
	}

	s := &Southbound{
		logger:  logger.Get(logger.P4RT),
		devices: make(map[models.DeviceID]*device, len(opts.Devices)),
	}

	electionID := &p4v1.Uint128{High: 0, Low: opts.ElectionID}
	for _, dc := range opts.Devices {
		if _, dup := s.devices[dc.ID]; dup {
			return nil, fmt.Errorf("duplicate device %s", dc.ID)
		}
		s.devices[dc.ID] = &device{
			id:         dc.ID,
			address:    dc.Address,
			p4DeviceID: dc.P4DeviceID,
			electionID: electionID,
			timeout:    opts.RPCTimeout,
			logger:     logger.WithDevice(s.logger, string(dc.ID)),
			ready:      make(chan struct{}),
			known:      make(map[string]struct{}),
			meters:     make(map[string]ownedMeter),
		}
	}

	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts.DialOptions...)

	g := new(errgroup.Group)
	for _, d := range s.devices {
		g.Go(func() error {
			conn, err := grpc.NewClient(d.address, dialOpts...)
			if err != nil {
				return fmt.Errorf("device %s: dial %s: %w", d.id, d.address, err)
			}
			d.conn = conn
			d.client = p4v1.NewP4RuntimeClient(conn)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.closeConns()
		return nil, err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.group, _ = errgroup.WithContext(s.ctx)
	for _, d := range s.devices {
		s.group.Go(func() error {
			return d.run(s.ctx, s.handlePacket)
		})
	}

	for _, d := range s.devices {
		select {
		case <-d.ready:
		case <-ctx.Done():
			s.Close()
			return nil, ctx.Err()
		}
		if !d.available() {
			d.logger.Warn("Device not reachable yet", "address", d.address)
		}
	}

	s.logger.Info("P4Runtime southbound open", "devices", len(s.devices))
	return s, nil
}

func (s *Southbound) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
			_ = s.group.Wait()
		}
		s.closeConns()
	})
	return nil
}

func (s *Southbound) closeConns() {
	for _, d := range s.devices {
		if d.conn != nil {
			if err := d.conn.Close(); err != nil {
				d.logger.Debug("Close connection", "error", err)
			}
		}
	}
}

// RegisterApplication derives the AppID locally. P4Runtime has no notion of
// applications; ownership lives in the entry metadata.
func (s *Southbound) RegisterApplication(ctx context.Context, name string) (models.AppID, error) {
	if err := ctx.Err(); err != nil {
		return models.AppID{}, fmt.Errorf("%w: %v", southbound.ErrUnavailable, err)
	}
	return models.NewAppID(name), nil
}

func (s *Southbound) AvailableDevices(ctx context.Context) ([]models.DeviceID, error) {
	ids := make([]models.DeviceID, 0, len(s.devices))
	for id, d := range s.devices {
		if d.available() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Southbound) IsLocalMaster(id models.DeviceID) bool {
	d, ok := s.devices[id]
	return ok && d.isMaster()
}

func (s *Southbound) availableDevice(id models.DeviceID) (*device, bool) {
	d, ok := s.devices[id]
	if !ok || !d.available() {
		return nil, false
	}
	return d, true
}

type ruleGroup struct {
	dev   *device
	rules []models.FlowRule
}

// groupRules splits rules per device in first-seen order and collects the
// devices that are unknown or down.
func (s *Southbound) groupRules(rules []models.FlowRule) ([]*ruleGroup, []string) {
	var groups []*ruleGroup
	byDevice := make(map[models.DeviceID]*ruleGroup)
	staleSeen := make(map[models.DeviceID]bool)
	var stale []string

	for _, r := range rules {
		if g, ok := byDevice[r.DeviceID]; ok {
			g.rules = append(g.rules, r)
			continue
		}
		d, ok := s.availableDevice(r.DeviceID)
		if !ok {
			if !staleSeen[r.DeviceID] {
				staleSeen[r.DeviceID] = true
				stale = append(stale, string(r.DeviceID))
			}
			continue
		}
		g := &ruleGroup{dev: d, rules: []models.FlowRule{r}}
		byDevice[r.DeviceID] = g
		groups = append(groups, g)
	}
	return groups, stale
}

// ApplyFlowRules writes one batch per device. Rules for devices that are not
// available are skipped and reported with ErrDeviceUnavailable once the rest
// are written; any other failure takes precedence.
func (s *Southbound) ApplyFlowRules(ctx context.Context, rules ...models.FlowRule) error {
	groups, stale := s.groupRules(rules)

	var errs []error
	for _, g := range groups {
		if err := g.dev.applyRules(ctx, g.rules); err != nil {
			errs = append(errs, err)
		}
	}
	return s.result(errs, stale)
}

func (s *Southbound) RemoveFlowRules(ctx context.Context, rules ...models.FlowRule) error {
	groups, stale := s.groupRules(rules)

	var errs []error
	for _, g := range groups {
		if err := g.dev.removeRules(ctx, g.rules); err != nil {
			errs = append(errs, err)
		}
	}
	return s.result(errs, stale)
}

// result joins per-device failures. Devices that were skipped or refused the
// write for lack of mastership only count when nothing else failed.
func (s *Southbound) result(errs []error, stale []string) error {
	var failed, skipped []error
	for _, err := range errs {
		if errors.Is(err, southbound.ErrDeviceUnavailable) {
			skipped = append(skipped, err)
			continue
		}
		failed = append(failed, err)
	}
	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	if len(stale) > 0 {
		skipped = append(skipped, fmt.Errorf("%w: %s", southbound.ErrDeviceUnavailable, strings.Join(stale, ", ")))
	}
	return errors.Join(skipped...)
}

func (s *Southbound) sortedAvailable() []*device {
	var devs []*device
	for _, d := range s.devices {
		if d.available() {
			devs = append(devs, d)
		}
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].id < devs[j].id })
	return devs
}

// RemoveFlowRulesByApp deletes every entry carrying app's cookie, including
// entries written by an earlier process.
func (s *Southbound) RemoveFlowRulesByApp(ctx context.Context, app models.AppID) error {
	var errs []error
	for _, d := range s.sortedAvailable() {
		owned, err := d.readOwned(ctx, app)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.deleteEntries(ctx, owned); err != nil {
			errs = append(errs, err)
		}
	}
	return s.result(errs, nil)
}

// FlowEntriesByApp reads all tables of every available device. Entries that
// no longer match the device's P4Info are logged and left out.
func (s *Southbound) FlowEntriesByApp(ctx context.Context, app models.AppID) ([]models.FlowRule, error) {
	var rules []models.FlowRule
	for _, d := range s.sortedAvailable() {
		owned, err := d.readOwned(ctx, app)
		if err != nil {
			return nil, err
		}
		schema := d.currentSchema()
		if schema == nil {
			continue
		}
		for _, te := range owned {
			r, err := schema.flowRule(d.id, app, te)
			if err != nil {
				d.logger.Warn("Skipping unreadable table entry", "error", err)
				continue
			}
			rules = append(rules, r)
		}
	}
	return rules, nil
}

func (s *Southbound) SubmitMeter(ctx context.Context, req models.MeterRequest) error {
	d, ok := s.availableDevice(req.DeviceID)
	if !ok {
		return fmt.Errorf("%w: %s", southbound.ErrDeviceUnavailable, req.DeviceID)
	}
	return d.submitMeter(ctx, req)
}

func (s *Southbound) PurgeMeters(ctx context.Context, id models.DeviceID, app models.AppID) error {
	d, ok := s.availableDevice(id)
	if !ok {
		return fmt.Errorf("%w: %s", southbound.ErrDeviceUnavailable, id)
	}
	return d.purgeMeters(ctx, app)
}

func (s *Southbound) handlePacket(d *device, pkt *p4v1.PacketIn) {
	schema := d.currentSchema()
	if schema == nil {
		return
	}

	port, ok := schema.ingressPort(pkt)
	if !ok {
		d.logger.Debug("Packet-in without ingress port metadata", "bytes", len(pkt.GetPayload()))
	}

	pc := southbound.NewPacketContext(southbound.ConnectPoint{DeviceID: d.id, Port: port}, pkt.GetPayload())
	s.Dispatch(pc)
}
