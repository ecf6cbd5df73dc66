package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/picklr-io/converge/internal/insync"
	"github.com/picklr-io/converge/internal/ir"
	"github.com/picklr-io/converge/internal/normalize"
	"github.com/picklr-io/converge/pkg/engineapi"
)

// CreatePlan compares every declared container with what the engine runs
// and decides the action for each one.
//
// Declarations are validated before the engine is contacted.
func (e *Engine) CreatePlan(ctx context.Context, cfg *ir.Config) (*ir.Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e.log.Debug("discovering containers", "declared", len(cfg.Containers))
	snapshots, err := e.Discover(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*ir.Snapshot, len(snapshots))
	for _, s := range snapshots {
		byName[s.Name] = s
	}

	plan := &ir.Plan{
		Changes: []*ir.ResourceChange{},
		Summary: &ir.PlanSummary{},
	}

	for _, res := range cfg.Containers {
		if res == nil {
			continue
		}
		snap, exists := byName[res.Name]
		e.log.Info("checking if container exists", "name", res.Name, "exists", exists)

		change, err := e.planResource(ctx, res, snap)
		if err != nil {
			return nil, err
		}
		plan.Summary.Count(change.Action)
		if change.Action != ir.ActionNoOp {
			plan.Changes = append(plan.Changes, change)
		}
	}

	return plan, nil
}

// Discover returns a snapshot of every container the engine knows about.
func (e *Engine) Discover(ctx context.Context) ([]*ir.Snapshot, error) {
	return normalize.Discover(ctx, e.client)
}

// DestroyPlan plans the removal of every declared container.
func (e *Engine) DestroyPlan(ctx context.Context, cfg *ir.Config) (*ir.Plan, error) {
	absent := &ir.Config{Containers: make([]*ir.Resource, 0, len(cfg.Containers))}
	for _, res := range cfg.Containers {
		if res != nil {
			absent.Containers = append(absent.Containers, res.Absent())
		}
	}
	return e.CreatePlan(ctx, absent)
}

func (e *Engine) planResource(ctx context.Context, res *ir.Resource, snap *ir.Snapshot) (*ir.ResourceChange, error) {
	change := &ir.ResourceChange{
		Name:    res.Name,
		Action:  ir.ActionNoOp,
		Desired: res,
		Prior:   snap,
	}

	if res.DesiredEnsure() == ir.EnsureAbsent {
		if snap != nil {
			change.Action = ir.ActionDestroy
		}
		return change, nil
	}

	if snap == nil {
		change.Action = ir.ActionCreate
		return change, nil
	}

	drift, err := insync.Compare(ctx, res, snap, insync.NewLookup(e.client, snap))
	if err != nil {
		return nil, fmt.Errorf("sync check failed for %s: %w", res.Name, err)
	}
	if len(drift) > 0 {
		change.Action = ir.ActionRecreate
		change.Drift = drift
	}
	return change, nil
}

// BuildRunSpec turns a declaration into the engine's run command.
//
// Only the first declared network is attached; containers cannot join
// several networks at create time.
func BuildRunSpec(res *ir.Resource) *engineapi.RunSpec {
	spec := &engineapi.RunSpec{
		Name:         res.Name,
		Env:          res.Env,
		PortBindings: res.PortBindings,
		Volumes:      res.Volumes,
		Image:        res.Image,
	}

	keys := make([]string, 0, len(res.Labels))
	for k := range res.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		spec.Labels = append(spec.Labels, engineapi.Label{Key: k, Value: res.Labels[k]})
	}

	if len(res.Networks) > 0 {
		spec.Network = res.Networks[0]
	}
	if res.Hostname != nil {
		spec.Hostname = *res.Hostname
	}
	if res.Domainname != nil {
		spec.Domainname = *res.Domainname
	}
	return spec
}
