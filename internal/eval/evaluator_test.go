package eval

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/picklr-io/converge/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDeclaration_YAML(t *testing.T) {
	path := writeFile(t, "converge.yaml", `
containers:
  - name: /web
    image: nginx:latest
    labels:
      team: edge
    env: [A=1, B=2]
    port_bindings: ["8080:80"]
    networks: [frontend]
    volumes: ["data:/data:ro"]
    hostname: web
  - name: /old
    image: nginx:1.25
    ensure: absent
`)

	cfg, err := NewEvaluator("").LoadDeclaration(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, cfg.Containers, 2)

	web := cfg.Containers[0]
	assert.Equal(t, "/web", web.Name)
	assert.Equal(t, map[string]string{"team": "edge"}, web.Labels)
	assert.Equal(t, []string{"A=1", "B=2"}, web.Env)
	assert.Equal(t, []string{"8080:80"}, web.PortBindings)
	require.NotNil(t, web.Hostname)
	assert.Equal(t, "web", *web.Hostname)
	assert.Nil(t, web.Domainname)
	assert.Equal(t, ir.EnsurePresent, web.DesiredEnsure())

	assert.Equal(t, ir.EnsureAbsent, cfg.Containers[1].Ensure)
	assert.Nil(t, cfg.Containers[1].Env)
}

func TestLoadDeclaration_YAMLEmptyListIsDeclared(t *testing.T) {
	path := writeFile(t, "converge.yml", `
containers:
  - name: /web
    image: nginx:latest
    env: []
`)
	cfg, err := NewEvaluator("").LoadDeclaration(context.Background(), path, nil)
	require.NoError(t, err)
	assert.NotNil(t, cfg.Containers[0].Env)
	assert.Empty(t, cfg.Containers[0].Env)
}

func TestLoadDeclaration_JSON(t *testing.T) {
	path := writeFile(t, "converge.json", `{"containers":[{"name":"/web","image":"nginx:latest","port_bindings":["80:8080","443:8443"],"domainname":"example.org"}]}`)

	cfg, err := NewEvaluator("").LoadDeclaration(context.Background(), path, nil)
	require.NoError(t, err)
	require.Len(t, cfg.Containers, 1)
	assert.Equal(t, []string{"80:8080", "443:8443"}, cfg.Containers[0].PortBindings)
	assert.Equal(t, "example.org", *cfg.Containers[0].Domainname)
}

func TestLoadDeclaration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		errMsg  string
	}{
		{"unknown extension", "converge.toml", "", "unsupported declaration format"},
		{"unknown yaml field", "converge.yaml", "containers:\n  - name: /web\n    image: nginx\n    restart: always\n", "field restart not found"},
		{"unknown json field", "converge.json", `{"containers":[{"name":"/web","cmd":["sh"]}]}`, "unknown field"},
		{"malformed json", "converge.json", `{"containers":`, "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := NewEvaluator("").LoadDeclaration(context.Background(), path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadDeclaration_MissingFile(t *testing.T) {
	_, err := NewEvaluator("").LoadDeclaration(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read declaration")
}

func TestEvaluator_LoadConfig(t *testing.T) {
	if _, err := exec.LookPath("pkl"); err != nil {
		t.Skip("pkl binary not available")
	}

	path := writeFile(t, "converge.pkl", `
class Container {
  name: String
  image: String
  env: Listing<String>?
  portBindings: Listing<String>?
}

containers: Listing<Container> = new {
  new {
    name = "/web"
    image = "nginx:\(read?("prop:tag") ?? "latest")"
    portBindings { "8080:80" }
  }
}
`)

	cfg, err := NewEvaluator(filepath.Dir(path)).LoadDeclaration(context.Background(), path, map[string]string{"tag": "1.27"})
	require.NoError(t, err)
	require.Len(t, cfg.Containers, 1)
	assert.Equal(t, "nginx:1.27", cfg.Containers[0].Image)
	assert.Equal(t, []string{"8080:80"}, cfg.Containers[0].PortBindings)
	assert.Nil(t, cfg.Containers[0].Env)
}
