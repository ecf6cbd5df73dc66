package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/picklr-io/converge/internal/engine"
	"github.com/picklr-io/converge/internal/eval"
	"github.com/picklr-io/converge/internal/ir"
	"github.com/picklr-io/converge/internal/logging"
	"github.com/picklr-io/converge/internal/provider"
	"github.com/picklr-io/converge/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRegistry builds the engine backend registry from configuration.
var newRegistry = func() *provider.Registry {
	return provider.NewRegistry(provider.Options{
		DockerBinary:   viper.GetString(keyDockerBinary),
		CommandTimeout: viper.GetDuration(keyCommandTimeout),
	})
}

func newEngine() (*engine.Engine, error) {
	client, err := newRegistry().Get(viper.GetString(keyEngine))
	if err != nil {
		return nil, err
	}
	return engine.NewEngine(client, logging.Component("engine")), nil
}

// resolveDeclaration returns the absolute path of the declaration named by
// args. A directory means the default declaration inside it.
func resolveDeclaration(args []string) (string, error) {
	path := eval.DefaultDeclaration
	if len(args) > 0 {
		path = args[0]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat path %s: %w", path, err)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, eval.DefaultDeclaration)
	}
	return absPath, nil
}

func loadDeclaration(ctx context.Context, path string) (*ir.Config, error) {
	cfg, err := eval.NewEvaluator(filepath.Dir(path)).LoadDeclaration(ctx, path, properties)
	if err != nil {
		return nil, fmt.Errorf("failed to load declaration: %w", err)
	}
	return cfg, nil
}

// openReports returns the configured report backend, or nil when reports
// are disabled.
func openReports(ctx context.Context, declPath string) (report.Backend, error) {
	if viper.GetBool(keyNoReport) {
		return nil, nil
	}
	if bucket := viper.GetString(keyReportS3Bucket); bucket != "" {
		return report.NewBackend(ctx, &report.BackendConfig{
			Type:      "s3",
			Bucket:    bucket,
			Prefix:    viper.GetString(keyReportS3Prefix),
			Region:    viper.GetString(keyReportS3Region),
			LockTable: viper.GetString(keyReportLockTable),
		})
	}

	dir := viper.GetString(keyReportDir)
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(declPath), dir)
	}
	return report.NewBackend(ctx, &report.BackendConfig{Type: "local", Dir: dir})
}

// lockReports takes the run lock and returns its release.
func lockReports(ctx context.Context, reports report.Backend) (func(), error) {
	if reports == nil {
		return func() {}, nil
	}
	if err := reports.Lock(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := reports.Unlock(context.WithoutCancel(ctx)); err != nil {
			logging.Warn("failed to release run lock", "error", err)
		}
	}, nil
}

// saveReport stores rep. A storage failure is logged, never returned: the
// containers have already been changed by then.
func saveReport(ctx context.Context, reports report.Backend, rep *report.Report) {
	if reports == nil {
		return
	}
	if err := reports.Write(context.WithoutCancel(ctx), rep); err != nil {
		logging.Warn("failed to write run report", "run_id", rep.RunID, "error", err)
		return
	}
	logging.Debug("run report written", "run_id", rep.RunID)
}

// confirm asks for approval on the command's input.
func confirm(cmd *cobra.Command, question string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s (y/n): ", question)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes"
}
