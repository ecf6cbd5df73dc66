package cli

import (
	"context"
	"strings"

	"github.com/picklr-io/converge/internal/logging"
	"github.com/picklr-io/converge/internal/provider"
	"github.com/picklr-io/converge/providers/dockercli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config keys. Each is also a persistent flag and a CONVERGE_* variable.
const (
	keyEngine          = "engine"
	keyDockerBinary    = "docker-binary"
	keyCommandTimeout  = "command-timeout"
	keyLogLevel        = "log-level"
	keyLogFormat       = "log-format"
	keyNoColor         = "no-color"
	keyReportDir       = "report-dir"
	keyNoReport        = "no-report"
	keyReportS3Bucket  = "report-s3-bucket"
	keyReportS3Prefix  = "report-s3-prefix"
	keyReportS3Region  = "report-s3-region"
	keyReportLockTable = "report-lock-table"
)

var properties map[string]string

var rootCmd = &cobra.Command{
	Use:   "converge",
	Short: "Declarative container state reconciliation",
	Long: `Converge drives a container engine toward a declared set of containers.

Each pass discovers what the engine runs, compares every declared property
and replaces any container that has drifted:
  • Missing containers are created
  • Drifted containers are destroyed and created again
  • Containers declared absent are removed`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setColor(!viper.GetBool(keyNoColor))
		return logging.Init(viper.GetString(keyLogLevel), viper.GetString(keyLogFormat))
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is cancelled to
// interrupt a pass or a watch loop.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String(keyEngine, provider.DefaultBackend, "Engine backend: cli, sdk or null")
	pf.String(keyDockerBinary, dockercli.DefaultBinary, "Container CLI the cli backend runs")
	pf.Duration(keyCommandTimeout, 0, "Bound on each engine command of the cli backend (0 for none)")
	pf.String(keyLogLevel, "info", "Log level: debug, info, warn or error")
	pf.String(keyLogFormat, "text", "Log format: text or json")
	pf.Bool(keyNoColor, false, "Disable colored output")
	pf.String(keyReportDir, ".converge/reports", "Directory for run reports, relative to the declaration")
	pf.Bool(keyNoReport, false, "Do not write run reports")
	pf.String(keyReportS3Bucket, "", "Store run reports in this S3 bucket instead of locally")
	pf.String(keyReportS3Prefix, "", "Key prefix for run reports in S3")
	pf.String(keyReportS3Region, "", "AWS region of the report bucket")
	pf.String(keyReportLockTable, "", "DynamoDB table used to lock passes when reports are in S3")
	pf.StringToStringVarP(&properties, "prop", "D", nil, "Set external properties for Pkl declarations (format: key=value)")

	viper.SetEnvPrefix("CONVERGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(pf); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(fmtCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
}
