package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/picklr-io/converge/internal/ir"
	"github.com/picklr-io/converge/internal/normalize"
	"github.com/picklr-io/converge/pkg/engineapi"
	"github.com/picklr-io/converge/providers/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	infos []string
}

func (r *recordingLogger) Debug(msg string, args ...any) {}

func (r *recordingLogger) Info(msg string, args ...any) {
	r.infos = append(r.infos, msg)
}

func strPtr(s string) *string { return &s }

func newTestEngine(t *testing.T) (*Engine, *null.Provider) {
	t.Helper()
	p := null.New()
	p.AddImage("nginx:latest", null.Image{
		ID:     "sha256:nginx-latest",
		Env:    []string{"PATH=/usr/local/sbin:/usr/bin", "NGINX_VERSION=1.27.0"},
		Labels: map[string]string{"maintainer": "NGINX Docker Maintainers"},
	})
	p.AddImage("nginx:1.26", null.Image{ID: "sha256:nginx-126"})
	return NewEngine(p, nil), p
}

// seed creates a container directly on the engine and forgets the calls.
func seed(t *testing.T, p *null.Provider, spec *engineapi.RunSpec) string {
	t.Helper()
	require.NoError(t, p.RunContainer(context.Background(), spec))
	c, ok := p.Container(spec.Name)
	require.True(t, ok)
	p.ResetCalls()
	return c.ID
}

func TestEngine_CreatePlan_Absent(t *testing.T) {
	eng, p := newTestEngine(t)
	ctx := context.Background()

	cfg := &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "nginx:latest", Ensure: ir.EnsurePresent},
	}}

	plan, err := eng.CreatePlan(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, ir.ActionCreate, plan.Changes[0].Action)
	assert.Nil(t, plan.Changes[0].Prior)
	assert.Equal(t, ir.PlanSummary{Create: 1}, *plan.Summary)

	// Planning alone never changes anything.
	assert.Equal(t, []string{"container list --all"}, p.Calls())
}

func TestEngine_Scenario1_CreateMissing(t *testing.T) {
	eng, p := newTestEngine(t)
	ctx := context.Background()

	cfg := &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "nginx:latest", Ensure: ir.EnsurePresent},
	}}

	plan, err := eng.Reconcile(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, plan.Summary.Create)

	runs := p.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, []string{"--name", "/web", "nginx:latest"}, runs[0].Args())
	assert.Equal(t, []string{"/web"}, p.Names())
}

func TestEngine_Scenario2_EnvDriftRecreates(t *testing.T) {
	eng, p := newTestEngine(t)
	ctx := context.Background()
	oldID := seed(t, p, &engineapi.RunSpec{Name: "/web", Env: []string{"A=1"}, Image: "nginx:latest"})

	cfg := &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "nginx:latest", Env: []string{"A=1", "B=2"}},
	}}

	plan, err := eng.Reconcile(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, ir.ActionRecreate, plan.Changes[0].Action)
	require.Len(t, plan.Changes[0].Drift, 1)
	assert.Equal(t, "env", plan.Changes[0].Drift[0].Property)

	assert.Equal(t, []string{
		"container list --all",
		"container inspect " + oldID,
		"image inspect sha256:nginx-latest",
		"container rm -f /web",
		"container run --detach --name /web --env A=1 --env B=2 nginx:latest",
	}, p.Calls())

	c, ok := p.Container("/web")
	require.True(t, ok)
	assert.NotEqual(t, oldID, c.ID)
}

func TestEngine_Scenario3_PortOrderIgnored(t *testing.T) {
	eng, p := newTestEngine(t)
	ctx := context.Background()
	seed(t, p, &engineapi.RunSpec{Name: "/web", PortBindings: []string{"80:8080", "443:8443"}, Image: "nginx:latest"})

	cfg := &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "nginx:latest", PortBindings: []string{"443:8443", "80:8080"}},
	}}

	plan, err := eng.Reconcile(ctx, cfg)
	require.NoError(t, err)
	assert.Empty(t, plan.Changes)
	assert.Equal(t, 1, plan.Summary.NoOp)
	assert.Empty(t, p.Runs())
	assert.NotContains(t, p.Calls(), "container rm -f /web")
}

func TestEngine_Scenario4_EnsureAbsentDestroys(t *testing.T) {
	eng, p := newTestEngine(t)
	ctx := context.Background()
	seed(t, p, &engineapi.RunSpec{Name: "/web", Image: "nginx:latest"})

	cfg := &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "nginx:latest", Ensure: ir.EnsureAbsent},
	}}

	plan, err := eng.Reconcile(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, ir.ActionDestroy, plan.Changes[0].Action)

	calls := p.Calls()
	assert.Equal(t, "container rm -f /web", calls[len(calls)-1])
	assert.Empty(t, p.Runs())
	assert.Empty(t, p.Names())

	// Absent and already gone is a no-op.
	p.ResetCalls()
	plan, err = eng.Reconcile(ctx, cfg)
	require.NoError(t, err)
	assert.Empty(t, plan.Changes)
	assert.Equal(t, []string{"container list --all"}, p.Calls())
}

func TestEngine_Scenario5_ValidationBeforeEngine(t *testing.T) {
	eng, p := newTestEngine(t)

	cfg := &ir.Config{Containers: []*ir.Resource{
		{Name: "web", Image: "nginx:latest"},
	}}

	_, err := eng.Reconcile(context.Background(), cfg)
	var verr *ir.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "name", verr.Field)
	assert.Empty(t, p.Calls())
}

func fullResource() *ir.Resource {
	return &ir.Resource{
		Name:         "/web",
		Image:        "nginx:latest",
		Labels:       map[string]string{"team": "edge", "tier": "front"},
		Env:          []string{"A=1", "PATH=/usr/local/sbin:/usr/bin"},
		PortBindings: []string{"80:8080", "127.0.0.1:443:8443"},
		Networks:     []string{"frontend"},
		Volumes:      []string{"data:/data", "/etc/web:/etc/web:ro"},
		Hostname:     strPtr("web"),
		Domainname:   strPtr("example.org"),
		Ensure:       ir.EnsurePresent,
	}
}

func TestEngine_ConvergedIsFixedPoint(t *testing.T) {
	eng, p := newTestEngine(t)
	ctx := context.Background()
	cfg := &ir.Config{Containers: []*ir.Resource{fullResource()}}

	_, err := eng.Reconcile(ctx, cfg)
	require.NoError(t, err)

	plan, err := eng.CreatePlan(ctx, cfg)
	require.NoError(t, err)
	assert.Empty(t, plan.Changes)
	assert.Equal(t, ir.PlanSummary{NoOp: 1}, *plan.Summary)
	require.Len(t, p.Runs(), 1)
}

func TestEngine_PortBindingSyntaxConverges(t *testing.T) {
	tests := []struct {
		name  string
		ports []string
	}{
		{"host and container port", []string{"80:8080"}},
		{"explicit tcp", []string{"80:8080/tcp"}},
		{"host ip", []string{"127.0.0.1:80:8080"}},
		{"container port only", []string{"8080"}},
		{"udp", []string{"53:53/udp"}},
		{"mixed", []string{"443:8443/tcp", "127.0.0.1:80:8080", "53:53/udp"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, p := newTestEngine(t)
			ctx := context.Background()
			cfg := &ir.Config{Containers: []*ir.Resource{
				{Name: "/web", Image: "nginx:latest", PortBindings: tt.ports},
			}}

			_, err := eng.Reconcile(ctx, cfg)
			require.NoError(t, err)

			plan, err := eng.CreatePlan(ctx, cfg)
			require.NoError(t, err)
			assert.Empty(t, plan.Changes)
			assert.Len(t, p.Runs(), 1)
		})
	}
}

func TestEngine_UnconvergeableDeclarationsRejected(t *testing.T) {
	tests := map[string]*ir.Resource{
		"port range":     {Name: "/web", Image: "nginx:latest", PortBindings: []string{"8000-8001:9000-9001"}},
		"empty hostname": {Name: "/web", Image: "nginx:latest", Hostname: strPtr("")},
	}

	for name, res := range tests {
		t.Run(name, func(t *testing.T) {
			eng, p := newTestEngine(t)

			_, err := eng.Reconcile(context.Background(), &ir.Config{Containers: []*ir.Resource{res}})
			var verr *ir.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Empty(t, p.Calls())
		})
	}
}

func TestEngine_AnySingleDriftRecreates(t *testing.T) {
	mutations := map[string]func(r *ir.Resource){
		"image":         func(r *ir.Resource) { r.Image = "nginx:1.26" },
		"labels":        func(r *ir.Resource) { r.Labels["team"] = "core" },
		"env":           func(r *ir.Resource) { r.Env = append(r.Env, "B=2") },
		"port_bindings": func(r *ir.Resource) { r.PortBindings[0] = "81:8080" },
		"networks":      func(r *ir.Resource) { r.Networks = []string{"backend"} },
		"volumes":       func(r *ir.Resource) { r.Volumes = r.Volumes[:1] },
		"hostname":      func(r *ir.Resource) { r.Hostname = strPtr("web2") },
		"domainname":    func(r *ir.Resource) { r.Domainname = strPtr("example.com") },
		"status":        func(r *ir.Resource) { r.Status = strPtr("exited") },
	}

	for prop, mutate := range mutations {
		t.Run(prop, func(t *testing.T) {
			eng, p := newTestEngine(t)
			ctx := context.Background()
			_, err := eng.Reconcile(ctx, &ir.Config{Containers: []*ir.Resource{fullResource()}})
			require.NoError(t, err)
			p.ResetCalls()

			res := fullResource()
			mutate(res)
			plan, err := eng.Reconcile(ctx, &ir.Config{Containers: []*ir.Resource{res}})
			require.NoError(t, err)

			require.Len(t, plan.Changes, 1)
			change := plan.Changes[0]
			assert.Equal(t, ir.ActionRecreate, change.Action)
			require.Len(t, change.Drift, 1)
			assert.Equal(t, prop, change.Drift[0].Property)

			var rm, run int
			for _, c := range p.Calls() {
				switch {
				case c == "container rm -f /web":
					rm++
				case len(c) > len("container run") && c[:len("container run")] == "container run":
					run++
					assert.Equal(t, 1, rm, "destroy must come before create")
				}
			}
			assert.Equal(t, 1, rm)
			assert.Equal(t, 1, run)
		})
	}
}

func TestEngine_DiscoveryFailure(t *testing.T) {
	eng, p := newTestEngine(t)
	seed(t, p, &engineapi.RunSpec{Name: "/web", Image: "nginx:latest"})
	p.FailOn("inspect", errors.New("daemon hung up"))

	_, err := eng.Reconcile(context.Background(), &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "nginx:latest"},
	}})
	var derr *normalize.DiscoveryError
	require.True(t, errors.As(err, &derr))
	assert.Empty(t, p.Runs())
}

func TestEngine_ImageResolutionFailure(t *testing.T) {
	eng, p := newTestEngine(t)
	seed(t, p, &engineapi.RunSpec{Name: "/web", Image: "nginx:latest"})

	_, err := eng.CreatePlan(context.Background(), &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "ghost:1"},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost:1")

	var pulls int
	for _, c := range p.Calls() {
		if c == "image pull ghost:1" {
			pulls++
		}
	}
	assert.Equal(t, 1, pulls)
}

func TestEngine_ImageAliasInSync(t *testing.T) {
	eng, p := newTestEngine(t)
	p.AddRemoteImage("docker.io/library/nginx:1.27.0", null.Image{ID: "sha256:nginx-latest"})
	seed(t, p, &engineapi.RunSpec{Name: "/web", Image: "nginx:latest"})

	plan, err := eng.CreatePlan(context.Background(), &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "docker.io/library/nginx:1.27.0"},
	}})
	require.NoError(t, err)
	assert.Empty(t, plan.Changes)
}

func TestEngine_LoggerCalledAtDecisionPoints(t *testing.T) {
	p := null.New()
	p.AddImage("nginx:latest", null.Image{ID: "sha256:nginx"})
	log := &recordingLogger{}
	eng := NewEngine(p, log)
	seed(t, p, &engineapi.RunSpec{Name: "/web", Env: []string{"A=1"}, Image: "nginx:latest"})

	_, err := eng.Reconcile(context.Background(), &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "nginx:latest", Env: []string{"A=2"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, []string{"checking if container exists", "removing container", "creating container"}, log.infos)
}

func TestEngine_DestroyPlan(t *testing.T) {
	eng, p := newTestEngine(t)
	seed(t, p, &engineapi.RunSpec{Name: "/web", Image: "nginx:latest"})

	cfg := &ir.Config{Containers: []*ir.Resource{
		{Name: "/web", Image: "nginx:latest"},
		{Name: "/api", Image: "nginx:latest"},
	}}
	plan, err := eng.DestroyPlan(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, "/web", plan.Changes[0].Name)
	assert.Equal(t, ir.ActionDestroy, plan.Changes[0].Action)
	assert.Equal(t, ir.PlanSummary{Destroy: 1, NoOp: 1}, *plan.Summary)

	// The declaration itself is left untouched.
	assert.Equal(t, ir.Ensure(""), cfg.Containers[0].Ensure)
}

func TestBuildRunSpec(t *testing.T) {
	spec := BuildRunSpec(fullResource())
	assert.Equal(t, []string{
		"--name", "/web",
		"--label", "team=edge", "--label", "tier=front",
		"--env", "A=1", "--env", "PATH=/usr/local/sbin:/usr/bin",
		"--publish", "80:8080", "--publish", "127.0.0.1:443:8443",
		"--network", "frontend",
		"--volume", "data:/data", "--volume", "/etc/web:/etc/web:ro",
		"--hostname", "web",
		"--domainname", "example.org",
		"nginx:latest",
	}, spec.Args())

	multi := &ir.Resource{Name: "/web", Image: "nginx", Networks: []string{"a", "b"}}
	assert.Equal(t, "a", BuildRunSpec(multi).Network)
}
