// Package report records what each reconciliation pass planned and did.
//
// Reports are an audit trail. The engine's own state is always the source
// of truth; nothing here is read back to plan a pass.
package report

import (
	"time"

	"github.com/google/uuid"
	"github.com/picklr-io/converge/internal/ir"
)

// Entry statuses.
const (
	StatusPlanned   = "planned"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Report is the record of one pass.
type Report struct {
	RunID       string          `json:"run_id"`
	Command     string          `json:"command"`
	Engine      string          `json:"engine"`
	Declaration string          `json:"declaration"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at,omitzero"`
	Summary     *ir.PlanSummary `json:"summary,omitempty"`
	Changes     []*Entry        `json:"changes"`
	Error       string          `json:"error,omitempty"`
}

// Entry is the outcome of one planned change.
type Entry struct {
	Name     string             `json:"name"`
	Action   ir.Action          `json:"action"`
	Status   string             `json:"status"`
	Duration time.Duration      `json:"duration,omitempty"`
	Drift    []*ir.PropertyDiff `json:"drift,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// New starts a report for command.
func New(command, engine, declaration string) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Command:     command,
		Engine:      engine,
		Declaration: declaration,
		StartedAt:   time.Now().UTC(),
		Changes:     []*Entry{},
	}
}

// Record adds every change of plan as planned.
func (r *Report) Record(plan *ir.Plan) {
	if plan == nil {
		return
	}
	r.Summary = plan.Summary
	for _, c := range plan.Changes {
		r.Changes = append(r.Changes, &Entry{
			Name:   c.Name,
			Action: c.Action,
			Status: StatusPlanned,
			Drift:  c.Drift,
		})
	}
}

// Update sets the outcome of the named change.
func (r *Report) Update(name, status string, d time.Duration, err error) {
	for _, e := range r.Changes {
		if e.Name != name {
			continue
		}
		e.Status = status
		e.Duration = d
		if err != nil {
			e.Error = err.Error()
		}
		return
	}
}

// Finish closes the report with the pass's overall error. After a
// successful pass every change still marked planned is completed.
func (r *Report) Finish(err error) {
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Error = err.Error()
		return
	}
	for _, e := range r.Changes {
		if e.Status == StatusPlanned {
			e.Status = StatusCompleted
		}
	}
}

// Failed reports whether the pass ended in error.
func (r *Report) Failed() bool {
	return r.Error != ""
}
