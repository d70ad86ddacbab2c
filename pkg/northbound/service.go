// Package northbound decodes policy requests and hands them to the engine.
package northbound

import (
	"context"

	"github.com/veesix-networks/tpc/pkg/models"
)

// Service is the set of policy operations exposed to operators.
type Service interface {
	PostAttackEntries(ctx context.Context, entries []models.AttackEntry) error
	PostSliceIDEntries(ctx context.Context, entries []models.SliceIDEntry) error
	PostSliceQoSEntries(ctx context.Context, entries []models.SliceQoSEntry) error
	TurnOnChecking(ctx context.Context) error
	TurnOffChecking(ctx context.Context) error
	FlushFlowRules(ctx context.Context) error
}
