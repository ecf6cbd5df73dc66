package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/picklr-io/converge/internal/engine"
	"github.com/picklr-io/converge/internal/ir"
	"github.com/picklr-io/converge/internal/logging"
	"github.com/picklr-io/converge/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	applyAutoApprove     bool
	applyContinueOnError bool
	applyWatch           time.Duration
)

var applyCmd = &cobra.Command{
	Use:   "apply [declaration]",
	Short: "Converge containers to a declaration",
	Long: `Creates, recreates or removes containers until the engine matches the
declaration. A drifted container is always destroyed and created again;
running containers are never modified in place.

With --watch the declaration is loaded and reconciled again at every
interval until the command is interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of plan before applying")
	applyCmd.Flags().BoolVar(&applyContinueOnError, "continue-on-error", false, "Keep applying the remaining changes after a container fails")
	applyCmd.Flags().DurationVar(&applyWatch, "watch", 0, "Reconcile again at this interval until interrupted (implies --auto-approve)")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	path, err := resolveDeclaration(args)
	if err != nil {
		return err
	}
	eng, err := newEngine()
	if err != nil {
		return err
	}
	eng.ContinueOnError = applyContinueOnError

	reports, err := openReports(ctx, path)
	if err != nil {
		return err
	}
	unlock, err := lockReports(ctx, reports)
	if err != nil {
		return err
	}
	defer unlock()

	if applyWatch > 0 {
		return runWatch(cmd, eng, reports, path)
	}

	fmt.Fprint(out, "Loading declaration... ")
	cfg, err := loadDeclaration(ctx, path)
	if err != nil {
		fmt.Fprintln(out, "FAILED")
		return err
	}
	fmt.Fprintln(out, "OK")

	fmt.Fprint(out, "Calculating plan... ")
	plan, err := eng.CreatePlan(ctx, cfg)
	if err != nil {
		fmt.Fprintln(out, "FAILED")
		return fmt.Errorf("plan generation failed: %w", err)
	}
	fmt.Fprintln(out, "OK")

	return executePlan(cmd, eng, plan, "apply", applyAutoApprove, reports, path)
}

// executePlan shows plan, asks for approval and applies it, recording the
// outcome of every change in a run report.
func executePlan(cmd *cobra.Command, eng *engine.Engine, plan *ir.Plan, command string, autoApprove bool, reports report.Backend, path string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(plan.Changes) == 0 {
		fmt.Fprintln(out, "No changes. Containers are up-to-date.")
		return nil
	}

	fmt.Fprintln(out, "\nConverge will perform the following actions:")
	renderPlan(out, plan)
	renderSummary(out, plan.Summary)

	if !autoApprove && !confirm(cmd, "Do you want to perform these actions?") {
		fmt.Fprintf(out, "%s cancelled.\n", titleCase(command))
		return nil
	}

	rep := report.New(command, viper.GetString(keyEngine), path)
	rep.Record(plan)

	fmt.Fprintf(out, "\nApplying %d changes...\n", len(plan.Changes))
	err := eng.ApplyPlanWithCallback(ctx, plan, func(ev engine.ApplyEvent) {
		switch ev.Status {
		case "started":
			fmt.Fprintf(out, "  %s: %s...\n", ev.Name, ev.Action)
		case "completed":
			fmt.Fprintf(out, "  %s: %s complete after %s\n", ev.Name, ev.Action, ev.Duration.Round(time.Millisecond))
			rep.Update(ev.Name, report.StatusCompleted, ev.Duration, nil)
		case "failed":
			fmt.Fprintf(out, "  %s: %s failed: %v\n", ev.Name, ev.Action, ev.Error)
			rep.Update(ev.Name, report.StatusFailed, ev.Duration, ev.Error)
		}
	})
	rep.Finish(err)
	saveReport(ctx, reports, rep)
	if err != nil {
		return fmt.Errorf("%s failed: %w", command, err)
	}

	fmt.Fprintf(out, "\n%s complete! Containers: %d created, %d recreated, %d destroyed.\n",
		titleCase(command), plan.Summary.Create, plan.Summary.Recreate, plan.Summary.Destroy)
	return nil
}

func runWatch(cmd *cobra.Command, eng *engine.Engine, reports report.Backend, path string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s every %s. Press Ctrl+C to stop.\n", path, applyWatch)

	load := func(ctx context.Context) (*ir.Config, error) {
		return loadDeclaration(ctx, path)
	}
	return eng.Watch(cmd.Context(), load, applyWatch, engine.DefaultRetryPolicy(), func(plan *ir.Plan, err error) {
		rep := report.New("apply", viper.GetString(keyEngine), path)
		rep.Record(plan)
		rep.Finish(err)
		saveReport(cmd.Context(), reports, rep)

		stamp := time.Now().Format(time.TimeOnly)
		if err != nil {
			logging.Error("reconciliation pass failed", "run_id", rep.RunID, "error", err)
			fmt.Fprintf(out, "[%s] pass failed: %v\n", stamp, err)
			return
		}
		s := plan.Summary
		fmt.Fprintf(out, "[%s] %d created, %d recreated, %d destroyed, %d unchanged\n",
			stamp, s.Create, s.Recreate, s.Destroy, s.NoOp)
	})
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
