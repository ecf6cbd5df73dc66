package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var destroyAutoApprove bool

var destroyCmd = &cobra.Command{
	Use:   "destroy [declaration]",
	Short: "Remove every declared container",
	Long: `Removes every container named in the declaration, whatever its ensure
value. Containers the declaration does not name are left alone.

This command is the inverse of 'converge apply'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval before destroying")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	path, err := resolveDeclaration(args)
	if err != nil {
		return err
	}
	eng, err := newEngine()
	if err != nil {
		return err
	}

	reports, err := openReports(ctx, path)
	if err != nil {
		return err
	}
	unlock, err := lockReports(ctx, reports)
	if err != nil {
		return err
	}
	defer unlock()

	cfg, err := loadDeclaration(ctx, path)
	if err != nil {
		return err
	}

	plan, err := eng.DestroyPlan(ctx, cfg)
	if err != nil {
		return fmt.Errorf("plan generation failed: %w", err)
	}
	return executePlan(cmd, eng, plan, "destroy", destroyAutoApprove, reports, path)
}
