package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Manager keeps reports as JSON files in a local directory.
type Manager struct {
	dir string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

// Write saves the report as <run id>.json and as latest.json.
func (m *Manager) Write(ctx context.Context, r *Report) error {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := encode(r)
	if err != nil {
		return err
	}

	for _, name := range []string{r.RunID + ".json", latestName} {
		if err := writeAtomic(filepath.Join(m.dir, name), data); err != nil {
			return err
		}
	}
	return nil
}

// Latest loads latest.json.
func (m *Manager) Latest(ctx context.Context) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, latestName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return decode(data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write report file %s: %w", path, err)
	}
	return nil
}
