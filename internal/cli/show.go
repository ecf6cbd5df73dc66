package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the containers the engine runs",
	Long: `Discovers every container the engine knows about and prints the normalized
view the reconciler compares declarations against.`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
}

func runShow(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	snaps, err := eng.Discover(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showJSON {
		data, err := json.MarshalIndent(snaps, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal containers: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(snaps) == 0 {
		fmt.Fprintln(out, "No containers found.")
		return nil
	}
	renderSnapshots(out, snaps)
	return nil
}
