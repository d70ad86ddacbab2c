package engine

import (
	"context"
	"time"

	"github.com/veesix-networks/tpc/pkg/models"
)

// cleanup removes entries left by a previous instance, polling until the
// southbound reports none or the retry budget runs out. Failed polls use up
// an attempt like any other.
func (e *Engine) cleanup(ctx context.Context) error {
	for attempt := 1; attempt <= e.opts.CleanupRetries; attempt++ {
		entries, err := e.sb.FlowEntriesByApp(ctx, e.appID)
		if err != nil {
			e.logger.Warn("Failed to list previous flows", "app", e.appID, "attempt", attempt, "error", err)
			if err := sleep(ctx, e.opts.CleanupDelay); err != nil {
				return err
			}
			continue
		}

		if len(entries) == 0 {
			if attempt > 1 {
				e.logger.Info("Flows from previous execution removed", "app", e.appID, "attempts", attempt-1)
			}
			return nil
		}

		if err := e.sb.RemoveFlowRules(ctx, entries...); err != nil {
			e.logger.Warn("Failed to remove previous flows", "app", e.appID, "count", len(entries), "error", err)
		}

		e.logger.Info("Waiting to remove flows from previous execution", "app", e.appID, "count", len(entries), "attempt", attempt)
		e.publishOperation(models.OperationResult{Operation: models.OperationCleanup, RulesRemoved: len(entries)}, nil)

		if err := sleep(ctx, e.opts.CleanupDelay); err != nil {
			return err
		}
	}

	return ErrCleanupExhausted
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
