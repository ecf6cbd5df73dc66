package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/picklr-io/converge/internal/ir"
)

// ApplyEvent represents a progress event during apply.
type ApplyEvent struct {
	Name     string
	Action   ir.Action
	Status   string // "started", "completed", "failed"
	Duration time.Duration
	Error    error
}

// ApplyCallback is called for each apply event if set.
type ApplyCallback func(event ApplyEvent)

// Reconcile plans and applies in one pass.
func (e *Engine) Reconcile(ctx context.Context, cfg *ir.Config) (*ir.Plan, error) {
	plan, err := e.CreatePlan(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return plan, e.ApplyPlan(ctx, plan)
}

// ApplyPlan executes a plan.
func (e *Engine) ApplyPlan(ctx context.Context, plan *ir.Plan) error {
	return e.ApplyPlanWithCallback(ctx, plan, nil)
}

// ApplyPlanWithCallback executes a plan with progress event callbacks.
// Changes run one after another in plan order. A failed change is never
// retried or rolled back; if e.ContinueOnError is true the remaining
// changes still run and the failures are returned together.
func (e *Engine) ApplyPlanWithCallback(ctx context.Context, plan *ir.Plan, callback ApplyCallback) error {
	emit := func(event ApplyEvent) {
		if callback != nil {
			callback(event)
		}
	}

	var errs []error
	for _, change := range plan.Changes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("apply cancelled: %w", err)
		}

		start := time.Now()
		emit(ApplyEvent{Name: change.Name, Action: change.Action, Status: "started"})
		if err := e.applyChange(ctx, change); err != nil {
			emit(ApplyEvent{Name: change.Name, Action: change.Action, Status: "failed", Duration: time.Since(start), Error: err})
			if !e.ContinueOnError {
				return err
			}
			errs = append(errs, err)
			continue
		}
		emit(ApplyEvent{Name: change.Name, Action: change.Action, Status: "completed", Duration: time.Since(start)})
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d container(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (e *Engine) applyChange(ctx context.Context, change *ir.ResourceChange) error {
	e.log.Debug("applying change", "name", change.Name, "action", change.Action)

	switch change.Action {
	case ir.ActionCreate:
		return e.create(ctx, change.Desired)

	case ir.ActionDestroy:
		return e.destroy(ctx, change.Name)

	case ir.ActionRecreate:
		// Once the old container is gone the new one must be attempted.
		ctx = context.WithoutCancel(ctx)
		if err := e.destroy(ctx, change.Name); err != nil {
			return err
		}
		if err := e.create(ctx, change.Desired); err != nil {
			return fmt.Errorf("%w (container %s was already removed)", err, change.Name)
		}
		return nil

	case ir.ActionNoOp:
		return nil
	}

	return fmt.Errorf("unknown action %q for %s", change.Action, change.Name)
}

func (e *Engine) create(ctx context.Context, res *ir.Resource) error {
	if res == nil {
		return errors.New("create requires a declared container")
	}
	e.log.Info("creating container", "name", res.Name, "image", res.Image)
	if err := e.client.RunContainer(ctx, BuildRunSpec(res)); err != nil {
		return fmt.Errorf("create failed for %s: %w", res.Name, err)
	}
	return nil
}

func (e *Engine) destroy(ctx context.Context, name string) error {
	e.log.Info("removing container", "name", name)
	if err := e.client.RemoveContainer(ctx, name); err != nil {
		return fmt.Errorf("destroy failed for %s: %w", name, err)
	}
	return nil
}
