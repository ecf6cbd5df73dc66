package cli

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var fmtCheck bool

var fmtCmd = &cobra.Command{
	Use:   "fmt [paths...]",
	Short: "Format declaration files",
	Long: `Formats .pkl, .yaml and .yml declarations to a canonical style.

By default, formats every declaration under the current directory.
Use --check to verify formatting without making changes.

Formatting rules:
  - Pkl: trailing whitespace trimmed, at most one blank line in a row
  - YAML: two-space indentation, comments kept
  - Every file ends with a single newline`,
	RunE: runFmt,
}

func init() {
	fmtCmd.Flags().BoolVar(&fmtCheck, "check", false, "Check formatting without making changes (exit 1 if not formatted)")
}

func runFmt(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	paths := args
	if len(paths) == 0 {
		paths = []string{"."}
	}

	var files []string
	for _, p := range paths {
		found, err := findDeclarations(p)
		if err != nil {
			return err
		}
		files = append(files, found...)
	}

	if len(files) == 0 {
		fmt.Fprintln(out, "No declaration files found.")
		return nil
	}

	unformatted := 0
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		formatted, err := formatDeclaration(file, data)
		if err != nil {
			return fmt.Errorf("failed to format %s: %w", file, err)
		}
		if bytes.Equal(data, formatted) {
			continue
		}

		unformatted++
		if fmtCheck {
			fmt.Fprintf(out, "%s: not formatted\n", file)
			continue
		}
		if err := os.WriteFile(file, formatted, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", file, err)
		}
		fmt.Fprintf(out, "%s: formatted\n", file)
	}

	if fmtCheck && unformatted > 0 {
		return fmt.Errorf("%d file(s) not formatted", unformatted)
	}
	if unformatted == 0 {
		fmt.Fprintf(out, "All %d file(s) are properly formatted.\n", len(files))
	} else {
		fmt.Fprintf(out, "Formatted %d file(s).\n", unformatted)
	}
	return nil
}

func isDeclaration(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pkl", ".yaml", ".yml":
		return true
	}
	return false
}

// findDeclarations returns path itself for a file, or every declaration
// below it for a directory. Hidden directories are skipped.
func findDeclarations(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if !d.IsDir() && isDeclaration(p) {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

func formatDeclaration(path string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML(data)
	case ".pkl":
		return []byte(formatPkl(string(data))), nil
	}
	return nil, fmt.Errorf("unsupported declaration format %q", filepath.Ext(path))
}

// formatPkl applies basic formatting rules to Pkl content.
func formatPkl(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	result := strings.Join(lines, "\n")

	if !strings.HasSuffix(result, "\n") {
		result += "\n"
	}
	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}
	return result
}

// formatYAML re-encodes a YAML document through its node tree.
func formatYAML(data []byte) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return data, nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
