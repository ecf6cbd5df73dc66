package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/picklr-io/converge/internal/report"
	"github.com/spf13/cobra"
)

var reportJSON bool

var reportCmd = &cobra.Command{
	Use:   "report [declaration]",
	Short: "Show the latest run report",
	Long: `Reads the report of the most recent apply or destroy pass for a
declaration, from the local report directory or from S3.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Output in JSON format")
}

func runReport(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path, err := resolveDeclaration(args)
	if err != nil {
		return err
	}

	reports, err := openReports(cmd.Context(), path)
	if err != nil {
		return err
	}
	if reports == nil {
		return fmt.Errorf("run reports are disabled")
	}

	rep, err := reports.Latest(cmd.Context())
	if errors.Is(err, report.ErrNoReport) {
		fmt.Fprintln(out, "No reports yet. Run 'converge apply' first.")
		return nil
	}
	if err != nil {
		return err
	}

	if reportJSON {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	renderReport(out, rep)
	return nil
}
