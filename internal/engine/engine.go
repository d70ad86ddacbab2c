// Package engine programs slice, checker and attack policy onto the switches
// reachable through a southbound.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veesix-networks/tpc/pkg/component"
	"github.com/veesix-networks/tpc/pkg/events"
	"github.com/veesix-networks/tpc/pkg/logger"
	"github.com/veesix-networks/tpc/pkg/models"
	"github.com/veesix-networks/tpc/pkg/northbound"
	"github.com/veesix-networks/tpc/pkg/pipeline"
	"github.com/veesix-networks/tpc/pkg/rules"
	"github.com/veesix-networks/tpc/pkg/southbound"
)

var (
	ErrCleanupExhausted = errors.New("cleanup retries exhausted")
	ErrNotActive        = errors.New("engine not active")
)

type Options struct {
	AppName        string
	CleanupDelay   time.Duration
	CleanupRetries int
}

func (o Options) withDefaults() Options {
	if o.AppName == "" {
		o.AppName = pipeline.AppName
	}
	if o.CleanupDelay <= 0 {
		o.CleanupDelay = pipeline.CleanUpDelay
	}
	if o.CleanupRetries <= 0 {
		o.CleanupRetries = pipeline.DefaultCleanUpRetryTimes
	}
	return o
}

type Engine struct {
	*component.Base

	logger    *slog.Logger
	sb        southbound.Southbound
	eventBus  events.Bus
	opts      Options
	appID     models.AppID
	builder   *rules.Builder
	processor *checkerProcessor
}

var _ northbound.Service = (*Engine)(nil)

func New(deps component.Dependencies) (*Engine, error) {
	if deps.Southbound == nil {
		return nil, fmt.Errorf("engine requires a southbound")
	}

	opts := Options{}
	if deps.Config != nil {
		opts = Options{
			AppName:        deps.Config.App.Name,
			CleanupDelay:   deps.Config.Cleanup.Delay,
			CleanupRetries: deps.Config.Cleanup.RetryTimes,
		}
	}

	return NewWithOptions(deps.Southbound, deps.EventBus, opts), nil
}

func NewWithOptions(sb southbound.Southbound, bus events.Bus, opts Options) *Engine {
	log := logger.Get(logger.Engine)

	return &Engine{
		Base:      component.NewBase("engine"),
		logger:    log,
		sb:        sb,
		eventBus:  bus,
		opts:      opts.withDefaults(),
		processor: newCheckerProcessor(bus),
	}
}

func (e *Engine) AppID() models.AppID {
	return e.appID
}

// Start registers the application, installs the checker packet processor
// and clears entries left behind by a previous instance.
func (e *Engine) Start(ctx context.Context) error {
	e.StartContext(ctx)

	appID, err := e.sb.RegisterApplication(ctx, e.opts.AppName)
	if err != nil {
		return fmt.Errorf("register application %s: %w", e.opts.AppName, err)
	}
	e.appID = appID
	e.builder = rules.NewBuilder(appID)

	e.sb.AddProcessor(e.processor, southbound.Advisor(0))

	if err := e.cleanup(e.Ctx); err != nil {
		if errors.Is(err, ErrCleanupExhausted) {
			e.logger.Warn("Flows from previous execution still present, continuing", "app", appID, "error", err)
		} else {
			e.logger.Warn("Startup cleanup did not complete", "app", appID, "error", err)
		}
	}

	e.logger.Info("Started", "app", appID, "app_uuid", appID.UUID)
	return nil
}

// Stop removes the packet processor and every flow rule and meter owned by
// the application. Failures are logged; Stop always completes.
func (e *Engine) Stop(ctx context.Context) error {
	e.sb.RemoveProcessor(e.processor)

	if e.builder != nil {
		if err := e.sb.RemoveFlowRulesByApp(ctx, e.appID); err != nil {
			e.logger.Warn("Failed to remove flow rules", "app", e.appID, "error", err)
		}
		e.purgeMeters(ctx)
	}

	e.StopContext()
	e.logger.Info("Stopped")
	return nil
}

func (e *Engine) active() error {
	if e.builder == nil {
		return ErrNotActive
	}
	return nil
}

func (e *Engine) PostAttackEntries(ctx context.Context, entries []models.AttackEntry) error {
	if err := e.active(); err != nil {
		return err
	}

	flowRules := make([]models.FlowRule, 0, len(entries))
	for _, entry := range entries {
		rule, err := e.builder.AttackRule(entry)
		if err != nil {
			e.logger.Info("Skipping attack entry", "entry", entry.String(), "error", err)
			continue
		}
		flowRules = append(flowRules, rule)
	}

	err := e.apply(ctx, flowRules)
	e.publishOperation(models.OperationResult{Operation: models.OperationAttack, RulesApplied: len(flowRules)}, err)
	return err
}

func (e *Engine) PostSliceIDEntries(ctx context.Context, entries []models.SliceIDEntry) error {
	if err := e.active(); err != nil {
		return err
	}

	flowRules := make([]models.FlowRule, 0, 4*len(entries))
	for _, entry := range entries {
		group, err := e.builder.SliceIDRules(entry)
		if err != nil {
			e.logger.Info("Skipping slice id entry", "entry", entry.String(), "error", err)
			continue
		}
		flowRules = append(flowRules, group...)
	}

	err := e.apply(ctx, flowRules)
	e.publishOperation(models.OperationResult{Operation: models.OperationSliceID, RulesApplied: len(flowRules)}, err)
	return err
}

func (e *Engine) PostSliceQoSEntries(ctx context.Context, entries []models.SliceQoSEntry) error {
	if err := e.active(); err != nil {
		return err
	}

	devices, err := e.fanout(ctx, false)
	if err != nil {
		e.publishOperation(models.OperationResult{Operation: models.OperationSliceQoS}, err)
		return err
	}

	submitted := 0
	for _, entry := range entries {
		for _, device := range devices {
			req := e.builder.SliceQoSMeter(entry, device)
			if err := e.sb.SubmitMeter(ctx, req); err != nil {
				if errors.Is(err, southbound.ErrDeviceUnavailable) {
					e.logger.Info("Device went away, skipping meter", "device", device, "slice_id", entry.SliceID)
					continue
				}
				err = fmt.Errorf("submit meter %s: %w", req.Key(), err)
				e.publishOperation(models.OperationResult{Operation: models.OperationSliceQoS, Meters: submitted}, err)
				return err
			}
			submitted++
		}
	}

	e.publishOperation(models.OperationResult{Operation: models.OperationSliceQoS, Meters: submitted}, nil)
	return nil
}

// TurnOnChecking installs the ACL punt rule on mastered devices, then the
// checker rules on every device.
func (e *Engine) TurnOnChecking(ctx context.Context) error {
	if err := e.active(); err != nil {
		return err
	}

	result := models.OperationResult{Operation: models.OperationCheckingOn}

	mastered, err := e.fanout(ctx, true)
	if err != nil {
		e.publishOperation(result, err)
		return err
	}

	puntRules := make([]models.FlowRule, 0, len(mastered))
	for _, device := range mastered {
		puntRules = append(puntRules, e.builder.ACLPuntRule(device))
	}
	if err := e.apply(ctx, puntRules); err != nil {
		e.publishOperation(result, err)
		return err
	}
	result.RulesApplied += len(puntRules)

	checkerRules, err := e.checkerRules(ctx)
	if err != nil {
		e.publishOperation(result, err)
		return err
	}

	err = e.apply(ctx, checkerRules)
	if err == nil {
		result.RulesApplied += len(checkerRules)
	}
	e.publishOperation(result, err)
	return err
}

// TurnOffChecking removes the checker rules. The ACL punt rule stays.
func (e *Engine) TurnOffChecking(ctx context.Context) error {
	if err := e.active(); err != nil {
		return err
	}

	result := models.OperationResult{Operation: models.OperationCheckingOff}

	checkerRules, err := e.checkerRules(ctx)
	if err != nil {
		e.publishOperation(result, err)
		return err
	}

	if err := e.remove(ctx, checkerRules); err != nil {
		e.publishOperation(result, err)
		return err
	}

	result.RulesRemoved = len(checkerRules)
	e.publishOperation(result, nil)
	return nil
}

func (e *Engine) FlushFlowRules(ctx context.Context) error {
	if err := e.active(); err != nil {
		return err
	}

	result := models.OperationResult{Operation: models.OperationFlush}

	if err := e.sb.RemoveFlowRulesByApp(ctx, e.appID); err != nil {
		if !errors.Is(err, southbound.ErrDeviceUnavailable) {
			err = fmt.Errorf("remove flow rules for %s: %w", e.appID, err)
			e.publishOperation(result, err)
			return err
		}
		e.logger.Info("Some devices went away during flush", "error", err)
	}

	purged, err := e.purgeMeters(ctx)
	result.Meters = purged
	e.publishOperation(result, err)
	return err
}

func (e *Engine) checkerRules(ctx context.Context) ([]models.FlowRule, error) {
	devices, err := e.fanout(ctx, false)
	if err != nil {
		return nil, err
	}

	out := make([]models.FlowRule, 0, 2*len(devices))
	for _, device := range devices {
		out = append(out, e.builder.CheckerRules(device)...)
	}
	return out, nil
}

// apply submits rules as one batch. A device that disappeared mid-operation
// is not an error.
func (e *Engine) apply(ctx context.Context, flowRules []models.FlowRule) error {
	if len(flowRules) == 0 {
		return nil
	}

	if err := e.sb.ApplyFlowRules(ctx, flowRules...); err != nil {
		if errors.Is(err, southbound.ErrDeviceUnavailable) {
			e.logger.Info("Some devices went away during apply", "error", err)
			return nil
		}
		return fmt.Errorf("apply %d flow rules: %w", len(flowRules), err)
	}

	e.logger.Debug("Applied flow rules", "count", len(flowRules))
	return nil
}

// remove withdraws rules as one batch. Like apply, a device that
// disappeared mid-operation is not an error.
func (e *Engine) remove(ctx context.Context, flowRules []models.FlowRule) error {
	if len(flowRules) == 0 {
		return nil
	}

	if err := e.sb.RemoveFlowRules(ctx, flowRules...); err != nil {
		if errors.Is(err, southbound.ErrDeviceUnavailable) {
			e.logger.Info("Some devices went away during removal", "error", err)
			return nil
		}
		return fmt.Errorf("remove %d flow rules: %w", len(flowRules), err)
	}

	e.logger.Debug("Removed flow rules", "count", len(flowRules))
	return nil
}

// purgeMeters purges meters on every available device. It returns the
// number of devices purged and the errors of the devices that failed for a
// reason other than going away.
func (e *Engine) purgeMeters(ctx context.Context) (int, error) {
	devices, err := e.fanout(ctx, false)
	if err != nil {
		e.logger.Warn("Failed to list devices for meter purge", "error", err)
		return 0, err
	}

	var (
		purged int
		errs   []error
	)
	for _, device := range devices {
		if err := e.sb.PurgeMeters(ctx, device, e.appID); err != nil {
			logger.WithDevice(e.logger, string(device)).Warn("Failed to purge meters", "error", err)
			if !errors.Is(err, southbound.ErrDeviceUnavailable) {
				errs = append(errs, fmt.Errorf("purge meters on %s: %w", device, err))
			}
			continue
		}
		purged++
	}

	return purged, errors.Join(errs...)
}

func (e *Engine) publishOperation(result models.OperationResult, err error) {
	if err != nil {
		result.Error = err.Error()
		e.logger.Error("Operation failed", "operation", result.Operation, "error", err)
	}

	if e.eventBus == nil {
		return
	}

	e.eventBus.Publish(events.TopicOperation, events.Event{
		Source: logger.Engine,
		Data:   &events.OperationEvent{Result: result},
	})
}
