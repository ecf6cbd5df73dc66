package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/picklr-io/converge/internal/ir"
	"github.com/picklr-io/converge/internal/report"
)

var actionColors = map[ir.Action]text.Colors{
	ir.ActionCreate:   {text.FgGreen},
	ir.ActionRecreate: {text.FgYellow},
	ir.ActionDestroy:  {text.FgRed},
}

var actionSymbols = map[ir.Action]string{
	ir.ActionCreate:   "+",
	ir.ActionRecreate: "-/+",
	ir.ActionDestroy:  "-",
}

func setColor(enabled bool) {
	if enabled {
		text.EnableColors()
	} else {
		text.DisableColors()
	}
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// renderPlan prints one row per drifted property, or one row per change
// when nothing is compared.
func renderPlan(w io.Writer, plan *ir.Plan) {
	t := newTable(w)
	t.AppendHeader(table.Row{"", "CONTAINER", "ACTION", "PROPERTY", "OBSERVED", "DESIRED"})
	for _, c := range plan.Changes {
		colors := actionColors[c.Action]
		symbol := colors.Sprint(actionSymbols[c.Action])
		action := colors.Sprint(string(c.Action))
		if len(c.Drift) == 0 {
			t.AppendRow(table.Row{symbol, c.Name, action, "", "", ""})
			continue
		}
		for _, d := range c.Drift {
			t.AppendRow(table.Row{symbol, c.Name, action, d.Property, formatValue(d.Observed), formatValue(d.Desired)})
		}
	}
	t.Render()
}

func renderSummary(w io.Writer, s *ir.PlanSummary) {
	fmt.Fprintf(w, "\nPlan: %d to create, %d to recreate, %d to destroy, %d unchanged.\n",
		s.Create, s.Recreate, s.Destroy, s.NoOp)
}

func renderSnapshots(w io.Writer, snaps []*ir.Snapshot) {
	t := newTable(w)
	t.AppendHeader(table.Row{"CONTAINER ID", "NAME", "IMAGE", "STATUS", "PORTS", "NETWORKS"})
	for _, s := range snaps {
		t.AppendRow(table.Row{
			shortID(s.ID),
			s.Name,
			s.Image,
			s.Status,
			strings.Join(s.PortBindings, ", "),
			strings.Join(s.Networks, ", "),
		})
	}
	t.Render()
}

func renderReport(w io.Writer, r *report.Report) {
	status := text.FgGreen.Sprint("succeeded")
	if r.Failed() {
		status = text.FgRed.Sprint("failed")
	}
	fmt.Fprintf(w, "Run %s (%s, engine %s) %s\n", r.RunID, r.Command, r.Engine, status)
	fmt.Fprintf(w, "  declaration: %s\n", r.Declaration)
	fmt.Fprintf(w, "  started:     %s\n", r.StartedAt.Format("2006-01-02 15:04:05 MST"))
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(w, "  duration:    %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  error:       %s\n", r.Error)
	}
	if len(r.Changes) == 0 {
		fmt.Fprintln(w, "\nNo changes were made.")
		return
	}

	fmt.Fprintln(w)
	t := newTable(w)
	t.AppendHeader(table.Row{"CONTAINER", "ACTION", "STATUS", "DURATION", "ERROR"})
	for _, e := range r.Changes {
		t.AppendRow(table.Row{e.Name, e.Action, e.Status, e.Duration.Round(time.Millisecond), e.Error})
	}
	t.Render()
}

// formatValue returns a human-readable representation of a property value.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		return fmt.Sprintf("%q", val)
	case []string:
		if len(val) == 0 {
			return "[]"
		}
		return strings.Join(val, ", ")
	case map[string]string:
		if len(val) == 0 {
			return "{}"
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+val[k])
		}
		return strings.Join(pairs, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
