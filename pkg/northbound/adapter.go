package northbound

import (
	"context"
	"log/slog"

	"github.com/veesix-networks/tpc/pkg/logger"
)

// Adapter turns raw request bodies into Service calls. Malformed rows are
// logged and dropped; the rest of the batch still goes through.
type Adapter struct {
	logger  *slog.Logger
	service Service
}

func NewAdapter(service Service) *Adapter {
	return &Adapter{
		logger:  logger.Get(logger.Northbound),
		service: service,
	}
}

func (a *Adapter) Flush(ctx context.Context) error {
	a.logger.Info("Received flush request")
	return a.service.FlushFlowRules(ctx)
}

func (a *Adapter) TurnOnChecking(ctx context.Context) error {
	a.logger.Info("Received turnOnChecking request")
	return a.service.TurnOnChecking(ctx)
}

func (a *Adapter) TurnOffChecking(ctx context.Context) error {
	a.logger.Info("Received turnOffChecking request")
	return a.service.TurnOffChecking(ctx)
}

func (a *Adapter) AddAttack(ctx context.Context, body []byte) error {
	entries, skipped, err := DecodeAttackEntries(body)
	if err != nil {
		return err
	}
	a.logSkipped("attack", skipped)

	for _, e := range entries {
		a.logger.Info("Received attack entry", "entry", e.String())
	}
	a.logger.Info("Received attack entries", "count", len(entries))

	return a.service.PostAttackEntries(ctx, entries)
}

func (a *Adapter) AddSliceID(ctx context.Context, body []byte) error {
	entries, skipped, err := DecodeSliceIDEntries(body)
	if err != nil {
		return err
	}
	a.logSkipped("slice id", skipped)

	for _, e := range entries {
		a.logger.Info("Received slice id entry", "entry", e.String())
	}
	a.logger.Info("Received slice id entries", "count", len(entries))

	return a.service.PostSliceIDEntries(ctx, entries)
}

func (a *Adapter) AddSliceQoS(ctx context.Context, body []byte) error {
	entries, skipped, err := DecodeSliceQoSEntries(body)
	if err != nil {
		return err
	}
	a.logSkipped("slice qos", skipped)

	for _, e := range entries {
		a.logger.Info("Received slice qos entry", "entry", e.String())
	}
	a.logger.Info("Received slice qos entries", "count", len(entries))

	return a.service.PostSliceQoSEntries(ctx, entries)
}

func (a *Adapter) logSkipped(kind string, skipped []SkippedRow) {
	for _, s := range skipped {
		a.logger.Info("Skipping malformed entry", "kind", kind, "row", s.Name, "error", s.Err)
	}
}
