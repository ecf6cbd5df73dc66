package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestResource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		res     Resource
		field   string
		wantErr bool
	}{
		{
			name: "minimal",
			res:  Resource{Name: "/web", Image: "nginx:latest"},
		},
		{
			name: "full",
			res: Resource{
				Name:         "/web",
				Image:        "docker.io/library/nginx:1.27",
				Labels:       map[string]string{"team": "edge"},
				Env:          []string{"A=1", "EMPTY="},
				PortBindings: []string{"80:8080", "127.0.0.1:443:8443", "53:53/udp"},
				Networks:     []string{"frontend"},
				Volumes:      []string{"data:/var/lib/data", "/etc/app:/etc/app:ro"},
				Hostname:     strPtr("web"),
				Ensure:       EnsurePresent,
			},
		},
		{
			name: "image id",
			res:  Resource{Name: "/web", Image: "sha256:4c0fdaa8b6341bfdeca5f18f7837462c80cff90527ee35ef185571e1c327beac"},
		},
		{
			name:    "missing leading separator",
			res:     Resource{Name: "web", Image: "nginx:latest"},
			field:   "name",
			wantErr: true,
		},
		{
			name:    "bad name characters",
			res:     Resource{Name: "/we b", Image: "nginx:latest"},
			field:   "name",
			wantErr: true,
		},
		{
			name:    "missing image",
			res:     Resource{Name: "/web"},
			field:   "image",
			wantErr: true,
		},
		{
			name:    "malformed image",
			res:     Resource{Name: "/web", Image: "NGINX:Latest!"},
			field:   "image",
			wantErr: true,
		},
		{
			name:    "stopped is not a state",
			res:     Resource{Name: "/web", Image: "nginx", Ensure: "stopped"},
			field:   "ensure",
			wantErr: true,
		},
		{
			name:    "env without separator",
			res:     Resource{Name: "/web", Image: "nginx", Env: []string{"NOPE"}},
			field:   "env",
			wantErr: true,
		},
		{
			name:    "bad port binding",
			res:     Resource{Name: "/web", Image: "nginx", PortBindings: []string{"80:http"}},
			field:   "port_bindings",
			wantErr: true,
		},
		{
			name:    "port range",
			res:     Resource{Name: "/web", Image: "nginx:latest", PortBindings: []string{"8000-8001:9000-9001"}},
			field:   "port_bindings",
			wantErr: true,
		},
		{
			name:    "container port published twice",
			res:     Resource{Name: "/web", Image: "nginx:latest", PortBindings: []string{"80:8080", "81:8080/tcp"}},
			field:   "port_bindings",
			wantErr: true,
		},
		{
			name: "same port number over udp",
			res:  Resource{Name: "/web", Image: "nginx:latest", PortBindings: []string{"53:53", "53:53/udp"}},
		},
		{
			name:    "empty hostname",
			res:     Resource{Name: "/web", Image: "nginx:latest", Hostname: strPtr("")},
			field:   "hostname",
			wantErr: true,
		},
		{
			name: "empty domainname",
			res:  Resource{Name: "/web", Image: "nginx:latest", Domainname: strPtr("")},
		},
		{
			name:    "rw mode",
			res:     Resource{Name: "/web", Image: "nginx", Volumes: []string{"a:/b:rw"}},
			field:   "volumes",
			wantErr: true,
		},
		{
			name:    "volume without destination",
			res:     Resource{Name: "/web", Image: "nginx", Volumes: []string{"data"}},
			field:   "volumes",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.res.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestConfig_ValidateDuplicateNames(t *testing.T) {
	cfg := &Config{Containers: []*Resource{
		{Name: "/web", Image: "nginx"},
		{Name: "/web", Image: "httpd"},
	}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared more than once")
}

func TestResource_DesiredEnsure(t *testing.T) {
	r := &Resource{Name: "/web", Image: "nginx"}
	assert.Equal(t, EnsurePresent, r.DesiredEnsure())

	absent := r.Absent()
	assert.Equal(t, EnsureAbsent, absent.DesiredEnsure())
	assert.Equal(t, Ensure(""), r.Ensure)
}

func TestPlanSummary_Count(t *testing.T) {
	s := &PlanSummary{}
	for _, a := range []Action{ActionCreate, ActionRecreate, ActionRecreate, ActionDestroy, ActionNoOp} {
		s.Count(a)
	}
	assert.Equal(t, PlanSummary{Create: 1, Recreate: 2, Destroy: 1, NoOp: 1}, *s)
}
