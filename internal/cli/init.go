package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/picklr-io/converge/internal/ir"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initFormat string

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a starter declaration",
	Long: `Writes a starter declaration with one container into dir (default: the
current directory). Existing files are left untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initFormat, "format", "pkl", "Declaration format: pkl or yaml")
}

const starterPkl = `// Containers converge keeps running.
// Run 'converge plan' to preview changes and 'converge apply' to make them.

class Container {
  name: String(startsWith("/"))
  image: String
  labels: Mapping<String, String>?
  env: Listing<String>?
  portBindings: Listing<String>?
  networks: Listing<String>?
  volumes: Listing<String>?
  hostname: String?
  domainname: String?
  status: String?
  ensure: ("present"|"absent")?
}

containers: Listing<Container> = new {
  new {
    name = "/web"
    image = "nginx:latest"
    portBindings { "8080:80" }
  }
}
`

func starterConfig() *ir.Config {
	return &ir.Config{Containers: []*ir.Resource{{
		Name:         "/web",
		Image:        "nginx:latest",
		PortBindings: []string{"8080:80"},
	}}}
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	var (
		name    string
		content []byte
	)
	switch initFormat {
	case "pkl":
		name, content = "converge.pkl", []byte(starterPkl)
	case "yaml":
		data, err := yaml.Marshal(starterConfig())
		if err != nil {
			return fmt.Errorf("failed to render starter declaration: %w", err)
		}
		name, content = "converge.yaml", data
	default:
		return fmt.Errorf("unknown format %q: expected pkl or yaml", initFormat)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "%s already exists.\n", path)
		return nil
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	fmt.Fprintf(out, "Created %s\n", path)

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to declare your containers\n", name)
	fmt.Fprintf(out, "  2. Run 'converge plan %s' to see what will change\n", path)
	fmt.Fprintf(out, "  3. Run 'converge apply %s' to converge the engine\n", path)
	return nil
}
