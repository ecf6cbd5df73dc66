package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [declaration]",
	Short: "Validate a declaration",
	Long: `Loads a declaration and checks every container in it without contacting
the container engine.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path, err := resolveDeclaration(args)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Checking %s... ", path)
	cfg, err := loadDeclaration(cmd.Context(), path)
	if err != nil {
		fmt.Fprintln(out, "FAILED")
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(out, "FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Fprintln(out, "OK")

	fmt.Fprintf(out, "\nDeclaration is valid! %d container(s) declared.\n", len(cfg.Containers))
	return nil
}
