package p4rt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	p4v1 "github.com/p4lang/p4runtime/go/p4/v1"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/southbound"
	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

type ownedMeter struct {
	app     models.AppID
	meterID uint32
	index   int64
}

// device is one P4Runtime target: a client connection, a stream channel
// holding the arbitration, and the state tpc wrote to it.
type device struct {
	id         models.DeviceID
	address    string
	p4DeviceID uint64
	electionID *p4v1.Uint128
	timeout    time.Duration
	logger     *slog.Logger

	conn   *grpc.ClientConn
	client p4v1.P4RuntimeClient

	ready     chan struct{}
	readyOnce sync.Once

	mu     sync.RWMutex
	up     bool
	master bool
	schema *Schema
	known  map[string]struct{}
	meters map[string]ownedMeter
}

func (d *device) markReady() {
	d.readyOnce.Do(func() { close(d.ready) })
}

func (d *device) available() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.up && d.schema != nil
}

func (d *device) isMaster() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.up && d.master
}

func (d *device) currentSchema() *Schema {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.schema
}

func (d *device) setDown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.up = false
	d.master = false
}

func (d *device) setArbitration(arb *p4v1.MasterArbitrationUpdate) {
	master := code.Code(arb.GetStatus().GetCode()) == code.Code_OK

	d.mu.Lock()
	changed := d.master != master
	d.master = master
	d.mu.Unlock()

	if changed {
		d.logger.Info("Mastership changed", "master", master)
	}
}

// run keeps a session open until ctx is done, reconnecting with backoff.
func (d *device) run(ctx context.Context, onPacket func(*device, *p4v1.PacketIn)) error {
	backoff := minBackoff
	for {
		established, err := d.session(ctx, onPacket)
		d.setDown()
		d.markReady()

		if ctx.Err() != nil {
			return nil
		}
		if established {
			backoff = minBackoff
		}
		d.logger.Warn("P4Runtime session ended", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (d *device) session(ctx context.Context, onPacket func(*device, *p4v1.PacketIn)) (bool, error) {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := d.client.StreamChannel(sctx)
	if err != nil {
		return false, fmt.Errorf("open stream channel: %w", err)
	}

	err = stream.Send(&p4v1.StreamMessageRequest{
		Update: &p4v1.StreamMessageRequest_Arbitration{
			Arbitration: &p4v1.MasterArbitrationUpdate{
				DeviceId:   d.p4DeviceID,
				ElectionId: d.electionID,
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("send arbitration: %w", err)
	}

	resp, err := stream.Recv()
	if err != nil {
		return false, fmt.Errorf("receive arbitration: %w", err)
	}
	arb := resp.GetArbitration()
	if arb == nil {
		return false, errors.New("first stream message is not an arbitration update")
	}
	d.setArbitration(arb)

	schema, err := d.fetchSchema(ctx)
	if err != nil {
		return false, err
	}

	d.mu.Lock()
	d.schema = schema
	d.up = true
	d.mu.Unlock()
	d.markReady()
	d.logger.Info("P4Runtime session established", "address", d.address, "master", d.isMaster())

	for {
		resp, err := stream.Recv()
		if err != nil {
			return true, err
		}
		switch u := resp.GetUpdate().(type) {
		case *p4v1.StreamMessageResponse_Arbitration:
			d.setArbitration(u.Arbitration)
		case *p4v1.StreamMessageResponse_Packet:
			onPacket(d, u.Packet)
		case *p4v1.StreamMessageResponse_Error:
			d.logger.Warn("Stream error from device", "code", u.Error.GetCanonicalCode(), "message", u.Error.GetMessage())
		}
	}
}

func (d *device) fetchSchema(ctx context.Context) (*Schema, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.GetForwardingPipelineConfig(ctx, &p4v1.GetForwardingPipelineConfigRequest{
		DeviceId:     d.p4DeviceID,
		ResponseType: p4v1.GetForwardingPipelineConfigRequest_P4INFO_AND_COOKIE,
	})
	if err != nil {
		return nil, fmt.Errorf("get pipeline config: %w", err)
	}
	return NewSchema(resp.GetConfig().GetP4Info())
}

func (d *device) write(ctx context.Context, updates []*p4v1.Update) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	_, err := d.client.Write(ctx, &p4v1.WriteRequest{
		DeviceId:   d.p4DeviceID,
		ElectionId: d.electionID,
		Updates:    updates,
	})
	return err
}

// writeEach retries updates one at a time. A rejected INSERT becomes a MODIFY
// and a DELETE of a missing entry counts as done.
func (d *device) writeEach(ctx context.Context, updates []*p4v1.Update, done func(i int)) error {
	var errs []error
	for i, u := range updates {
		err := d.write(ctx, []*p4v1.Update{u})
		switch {
		case err == nil:
		case u.GetType() == p4v1.Update_INSERT && rejectedWith(err, codes.AlreadyExists):
			u.Type = p4v1.Update_MODIFY
			err = d.write(ctx, []*p4v1.Update{u})
		case u.GetType() == p4v1.Update_DELETE && rejectedWith(err, codes.NotFound):
			err = nil
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		done(i)
	}
	return errors.Join(errs...)
}

func (d *device) applyRules(ctx context.Context, rules []models.FlowRule) error {
	schema := d.currentSchema()
	if schema == nil {
		return fmt.Errorf("%w: %s", southbound.ErrDeviceUnavailable, d.id)
	}

	updates := make([]*p4v1.Update, 0, len(rules))
	keys := make([]string, 0, len(rules))
	for _, r := range rules {
		te, err := schema.tableEntry(r)
		if err != nil {
			return fmt.Errorf("device %s: %w", d.id, err)
		}
		key := entryKey(te)
		typ := p4v1.Update_INSERT
		if d.isKnown(key) {
			typ = p4v1.Update_MODIFY
		}
		updates = append(updates, &p4v1.Update{
			Type:   typ,
			Entity: &p4v1.Entity{Entity: &p4v1.Entity_TableEntry{TableEntry: te}},
		})
		keys = append(keys, key)
	}

	err := d.write(ctx, updates)
	if err == nil {
		d.remember(keys...)
		return nil
	}
	if !rejectedWith(err, codes.AlreadyExists) {
		return d.translateError(err)
	}

	d.logger.Debug("Batch rejected with existing entries, retrying per update", "updates", len(updates))
	err = d.writeEach(ctx, updates, func(i int) { d.remember(keys[i]) })
	if err != nil {
		return d.translateError(err)
	}
	return nil
}

func (d *device) deleteEntries(ctx context.Context, entries []*p4v1.TableEntry) error {
	if len(entries) == 0 {
		return nil
	}

	updates := make([]*p4v1.Update, 0, len(entries))
	keys := make([]string, 0, len(entries))
	for _, te := range entries {
		updates = append(updates, &p4v1.Update{
			Type:   p4v1.Update_DELETE,
			Entity: &p4v1.Entity{Entity: &p4v1.Entity_TableEntry{TableEntry: te}},
		})
		keys = append(keys, entryKey(te))
	}

	err := d.write(ctx, updates)
	if err == nil {
		d.forget(keys...)
		return nil
	}
	if !rejectedWith(err, codes.NotFound) {
		return d.translateError(err)
	}

	err = d.writeEach(ctx, updates, func(i int) { d.forget(keys[i]) })
	if err != nil {
		return d.translateError(err)
	}
	return nil
}

func (d *device) removeRules(ctx context.Context, rules []models.FlowRule) error {
	schema := d.currentSchema()
	if schema == nil {
		return fmt.Errorf("%w: %s", southbound.ErrDeviceUnavailable, d.id)
	}

	entries := make([]*p4v1.TableEntry, 0, len(rules))
	for _, r := range rules {
		te, err := schema.tableEntry(r)
		if err != nil {
			return fmt.Errorf("device %s: %w", d.id, err)
		}
		entries = append(entries, te)
	}
	return d.deleteEntries(ctx, entries)
}

// readOwned reads every table entry and keeps those tagged with app's cookie.
func (d *device) readOwned(ctx context.Context, app models.AppID) ([]*p4v1.TableEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	stream, err := d.client.Read(ctx, &p4v1.ReadRequest{
		DeviceId: d.p4DeviceID,
		Entities: []*p4v1.Entity{{Entity: &p4v1.Entity_TableEntry{TableEntry: &p4v1.TableEntry{}}}},
	})
	if err != nil {
		return nil, d.translateError(err)
	}

	cookie := app.Cookie()
	var owned []*p4v1.TableEntry
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, d.translateError(err)
		}
		for _, e := range resp.GetEntities() {
			te := e.GetTableEntry()
			if te != nil && bytes.Equal(te.GetMetadata(), cookie) {
				owned = append(owned, te)
			}
		}
	}

	keys := make([]string, 0, len(owned))
	for _, te := range owned {
		keys = append(keys, entryKey(te))
	}
	d.remember(keys...)

	return owned, nil
}

func (d *device) submitMeter(ctx context.Context, req models.MeterRequest) error {
	schema := d.currentSchema()
	if schema == nil {
		return fmt.Errorf("%w: %s", southbound.ErrDeviceUnavailable, d.id)
	}

	me, err := schema.meterEntry(req)
	if err != nil {
		return fmt.Errorf("device %s: %w", d.id, err)
	}

	err = d.write(ctx, []*p4v1.Update{{
		Type:   p4v1.Update_MODIFY,
		Entity: &p4v1.Entity{Entity: &p4v1.Entity_MeterEntry{MeterEntry: me}},
	}})
	if err != nil {
		return d.translateError(err)
	}

	d.mu.Lock()
	d.meters[req.Key()] = ownedMeter{app: req.AppID, meterID: me.GetMeterId(), index: me.GetIndex().GetIndex()}
	d.mu.Unlock()
	return nil
}

// purgeMeters resets every cell app programmed to the default config.
func (d *device) purgeMeters(ctx context.Context, app models.AppID) error {
	d.mu.RLock()
	var keys []string
	var updates []*p4v1.Update
	for key, m := range d.meters {
		if m.app != app {
			continue
		}
		keys = append(keys, key)
		updates = append(updates, &p4v1.Update{
			Type: p4v1.Update_MODIFY,
			Entity: &p4v1.Entity{Entity: &p4v1.Entity_MeterEntry{MeterEntry: &p4v1.MeterEntry{
				MeterId: m.meterID,
				Index:   &p4v1.Index{Index: m.index},
			}}},
		})
	}
	d.mu.RUnlock()

	if len(updates) == 0 {
		return nil
	}
	if err := d.write(ctx, updates); err != nil {
		return d.translateError(err)
	}

	d.mu.Lock()
	for _, key := range keys {
		delete(d.meters, key)
	}
	d.mu.Unlock()
	return nil
}

func (d *device) isKnown(key string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.known[key]
	return ok
}

func (d *device) remember(keys ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		d.known[k] = struct{}{}
	}
}

func (d *device) forget(keys ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		delete(d.known, k)
	}
}

// translateError maps transport failures onto ErrUnavailable and writes
// refused for lack of mastership onto ErrDeviceUnavailable. Anything else the
// target rejected is returned as is.
func (d *device) translateError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("device %s: %w", d.id, err)
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: device %s: %s", southbound.ErrUnavailable, d.id, st.Message())
	case codes.PermissionDenied:
		d.logger.Info("Write refused, not master", "message", st.Message())
		return fmt.Errorf("%w: %s: not master: %s", southbound.ErrDeviceUnavailable, d.id, st.Message())
	default:
		return fmt.Errorf("device %s: write rejected: %s: %s", d.id, st.Code(), st.Message())
	}
}

// rejectedWith reports whether the call failed with c, either as the call
// status or as the canonical code of any per-update error detail.
func rejectedWith(err error, c codes.Code) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	if st.Code() == c {
		return true
	}
	for _, detail := range st.Details() {
		if p4err, ok := detail.(*p4v1.Error); ok && codes.Code(p4err.GetCanonicalCode()) == c {
			return true
		}
	}
	return false
}
