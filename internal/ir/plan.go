package ir

// Action is the convergence step chosen for one resource.
type Action string

const (
	ActionNoOp     Action = "noop"
	ActionCreate   Action = "create"
	ActionRecreate Action = "recreate"
	ActionDestroy  Action = "destroy"
)

// Plan represents a calculated execution plan.
type Plan struct {
	Changes []*ResourceChange `json:"changes"`
	Summary *PlanSummary      `json:"summary"`
}

type ResourceChange struct {
	Name    string          `json:"name"`
	Action  Action          `json:"action"`
	Desired *Resource       `json:"desired,omitempty"`
	Prior   *Snapshot       `json:"prior,omitempty"`
	Drift   []*PropertyDiff `json:"drift,omitempty"`
}

// PropertyDiff records one property that failed its sync check.
type PropertyDiff struct {
	Property string `json:"property"`
	Desired  any    `json:"desired"`
	Observed any    `json:"observed"`
}

type PlanSummary struct {
	Create   int `json:"create"`
	Recreate int `json:"recreate"`
	Destroy  int `json:"destroy"`
	NoOp     int `json:"noop"`
}

// Count records action in the summary.
func (s *PlanSummary) Count(action Action) {
	switch action {
	case ActionCreate:
		s.Create++
	case ActionRecreate:
		s.Recreate++
	case ActionDestroy:
		s.Destroy++
	default:
		s.NoOp++
	}
}
