// Package eval loads container declarations from Pkl, YAML or JSON files.
package eval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/apple/pkl-go/pkl"
	"github.com/picklr-io/converge/internal/ir"
	"gopkg.in/yaml.v3"
)

// DefaultDeclaration is the file loaded when none is named.
const DefaultDeclaration = "converge.pkl"

// Evaluator handles declaration loading into IR types.
type Evaluator struct {
	projectDir string
}

func NewEvaluator(projectDir string) *Evaluator {
	return &Evaluator{
		projectDir: projectDir,
	}
}

// LoadDeclaration reads path with the loader its extension selects.
// Properties are passed to Pkl evaluation only.
func (e *Evaluator) LoadDeclaration(ctx context.Context, path string, properties map[string]string) (*ir.Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pkl":
		return e.LoadConfig(ctx, path, properties)
	case ".yaml", ".yml":
		return loadFile(path, decodeYAML)
	case ".json":
		return loadFile(path, decodeJSON)
	}
	return nil, fmt.Errorf("unsupported declaration format %q: expected .pkl, .yaml, .yml or .json", filepath.Ext(path))
}

// LoadConfig evaluates a Pkl declaration and returns the IR. Inside a Pkl
// project the project's dependencies are available to the module.
func (e *Evaluator) LoadConfig(ctx context.Context, entryPoint string, properties map[string]string) (*ir.Config, error) {
	opts := []func(*pkl.EvaluatorOptions){pkl.PreconfiguredOptions}
	if len(properties) > 0 {
		opts = append(opts, func(o *pkl.EvaluatorOptions) {
			if o.Properties == nil {
				o.Properties = make(map[string]string)
			}
			for k, v := range properties {
				o.Properties[k] = v
			}
		})
	}

	var (
		evaluator pkl.Evaluator
		err       error
	)
	if e.isPklProject() {
		u, perr := url.Parse("file://" + e.projectDir + "/")
		if perr != nil {
			return nil, fmt.Errorf("failed to parse project directory URL: %w", perr)
		}
		evaluator, err = pkl.NewProjectEvaluator(ctx, u, opts...)
	} else {
		evaluator, err = pkl.NewEvaluator(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var cfg ir.Config
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(entryPoint), &cfg); err != nil {
		return nil, fmt.Errorf("failed to evaluate config: %w", err)
	}

	return &cfg, nil
}

func (e *Evaluator) isPklProject() bool {
	if e.projectDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(e.projectDir, "PklProject"))
	return err == nil
}

func loadFile(path string, decode func([]byte, *ir.Config) error) (*ir.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read declaration: %w", err)
	}
	var cfg ir.Config
	if err := decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func decodeYAML(data []byte, cfg *ir.Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeJSON(data []byte, cfg *ir.Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(cfg)
}
