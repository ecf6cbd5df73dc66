package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	planJSON    bool
	planDestroy bool
)

var planCmd = &cobra.Command{
	Use:   "plan [declaration]",
	Short: "Generate an execution plan",
	Long: `Generates an execution plan showing what actions Converge will take
to bring the engine to the declared state.

The plan shows:
  • Containers to be created
  • Containers to be recreated (with the drifted properties)
  • Containers to be removed`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planJSON, "json", false, "Output the plan in JSON format")
	planCmd.Flags().BoolVar(&planDestroy, "destroy", false, "Plan the removal of every declared container")
}

func runPlan(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	path, err := resolveDeclaration(args)
	if err != nil {
		return err
	}
	eng, err := newEngine()
	if err != nil {
		return err
	}

	cfg, err := loadDeclaration(ctx, path)
	if err != nil {
		return err
	}

	makePlan := eng.CreatePlan
	if planDestroy {
		makePlan = eng.DestroyPlan
	}
	plan, err := makePlan(ctx, cfg)
	if err != nil {
		return fmt.Errorf("plan generation failed: %w", err)
	}

	if planJSON {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal plan: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(plan.Changes) == 0 {
		fmt.Fprintln(out, "No changes. Containers are up-to-date.")
		return nil
	}
	fmt.Fprintln(out, "Converge will perform the following actions:")
	renderPlan(out, plan)
	renderSummary(out, plan.Summary)
	return nil
}
