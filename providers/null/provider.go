// Package null is an in-memory container engine. It renders list and
// inspect output in the same shape the docker command line does, so the
// whole reconciliation path can run without a daemon.
package null

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/picklr-io/converge/pkg/engineapi"
)

// Image is an image known to the engine.
type Image struct {
	ID     string
	Env    []string
	Labels map[string]string
}

// Container is the engine-side record of one container.
type Container struct {
	ID           string
	Name         string
	Image        string
	ImageID      string
	Hostname     string
	Domainname   string
	Status       string
	Env          []string
	Labels       map[string]string
	PortBindings []string
	Volumes      []string
	Networks     []string
}

type Provider struct {
	mu         sync.Mutex
	containers []*Container
	local      map[string]*Image
	remote     map[string]*Image
	failures   map[string]error

	calls []string
	runs  []*engineapi.RunSpec
}

func New() *Provider {
	return &Provider{
		local:    make(map[string]*Image),
		remote:   make(map[string]*Image),
		failures: make(map[string]error),
	}
}

// AddImage makes ref available locally. The image is also reachable by id.
func (p *Provider) AddImage(ref string, img Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := img
	p.local[ref] = &i
	p.local[img.ID] = &i
}

// AddRemoteImage makes ref available to pulls only.
func (p *Provider) AddRemoteImage(ref string, img Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := img
	p.remote[ref] = &i
}

// FailOn makes every later call of op ("list", "inspect", "image", "pull",
// "run" or "rm") return err. A nil err clears the failure.
func (p *Provider) FailOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Mutate changes the stored record of the named container in place,
// simulating drift made behind the reconciler's back.
func (p *Provider) Mutate(name string, fn func(c *Container)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.find(name)
	if c == nil {
		return fmt.Errorf("container %s: %w", name, engineapi.ErrNotFound)
	}
	fn(c)
	return nil
}

// Container returns a copy of the named container's record.
func (p *Provider) Container(name string) (Container, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.find(name)
	if c == nil {
		return Container{}, false
	}
	return *c, true
}

// Calls returns every engine command received, in order.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Runs returns the spec of every run command received.
func (p *Provider) Runs() []*engineapi.RunSpec {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*engineapi.RunSpec(nil), p.runs...)
}

// ResetCalls forgets the recorded calls.
func (p *Provider) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
	p.runs = nil
}

func (p *Provider) record(op, call string) error {
	p.calls = append(p.calls, call)
	return p.failures[op]
}

func (p *Provider) ListContainers(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("list", "container list --all"); err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("CONTAINER ID   IMAGE   STATUS   NAMES\n")
	for _, c := range p.containers {
		fmt.Fprintf(&b, "%s   %s   %s   %s\n", c.ID, c.Image, c.Status, strings.TrimPrefix(c.Name, "/"))
	}
	return []byte(b.String()), nil
}

func (p *Provider) InspectContainer(ctx context.Context, ref string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("inspect", "container inspect "+ref); err != nil {
		return nil, err
	}

	c := p.find(ref)
	if c == nil {
		return nil, fmt.Errorf("no such container %s: %w", ref, engineapi.ErrNotFound)
	}
	return json.Marshal([]any{renderInspect(c)})
}

func (p *Provider) InspectImage(ctx context.Context, ref string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("image", "image inspect "+ref); err != nil {
		return nil, err
	}

	img, ok := p.local[ref]
	if !ok {
		return nil, fmt.Errorf("no such image %s: %w", ref, engineapi.ErrNotFound)
	}
	return json.Marshal([]any{map[string]any{
		"Id":     img.ID,
		"Config": map[string]any{"Env": img.Env, "Labels": img.Labels},
	}})
}

func (p *Provider) PullImage(ctx context.Context, ref string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("pull", "image pull "+ref); err != nil {
		return err
	}
	return p.pull(ref)
}

func (p *Provider) pull(ref string) error {
	img, ok := p.remote[ref]
	if !ok {
		return fmt.Errorf("pull access denied for %s: %w", ref, engineapi.ErrNotFound)
	}
	p.local[ref] = img
	p.local[img.ID] = img
	return nil
}

func (p *Provider) RunContainer(ctx context.Context, spec *engineapi.RunSpec) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("run", "container run --detach "+strings.Join(spec.Args(), " ")); err != nil {
		return err
	}
	p.runs = append(p.runs, spec)

	name := spec.Name
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if p.find(name) != nil {
		return fmt.Errorf("conflict: the container name %q is already in use", name)
	}

	img, ok := p.local[spec.Image]
	if !ok {
		if err := p.pull(spec.Image); err != nil {
			return fmt.Errorf("unable to find image %s: %w", spec.Image, err)
		}
		img = p.local[spec.Image]
	}
	if _, _, err := nat.ParsePortSpecs(spec.PortBindings); err != nil {
		return fmt.Errorf("invalid publish spec: %w", err)
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	c := &Container{
		ID:           id,
		Name:         name,
		Image:        spec.Image,
		ImageID:      img.ID,
		Hostname:     spec.Hostname,
		Domainname:   spec.Domainname,
		Status:       "running",
		Env:          mergeEnv(img.Env, spec.Env),
		Labels:       mergeLabels(img.Labels, spec.LabelMap()),
		PortBindings: append([]string(nil), spec.PortBindings...),
		Volumes:      append([]string(nil), spec.Volumes...),
		Networks:     []string{"bridge"},
	}
	if c.Hostname == "" {
		c.Hostname = id[:12]
	}
	if spec.Network != "" {
		c.Networks = []string{spec.Network}
	}
	p.containers = append(p.containers, c)
	return nil
}

func (p *Provider) RemoveContainer(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.record("rm", "container rm -f "+name); err != nil {
		return err
	}

	for i, c := range p.containers {
		if matches(c, name) {
			p.containers = append(p.containers[:i], p.containers[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no such container %s: %w", name, engineapi.ErrNotFound)
}

func (p *Provider) find(ref string) *Container {
	for _, c := range p.containers {
		if matches(c, ref) {
			return c
		}
	}
	return nil
}

func matches(c *Container, ref string) bool {
	return c.ID == ref || c.Name == ref || c.Name == "/"+ref
}

// renderInspect lays a record out the way a container inspection does.
func renderInspect(c *Container) map[string]any {
	_, bindings, _ := nat.ParsePortSpecs(c.PortBindings)

	mounts := make([]map[string]any, 0, len(c.Volumes))
	for _, v := range c.Volumes {
		parts := strings.Split(v, ":")
		m := map[string]any{"Destination": parts[1], "RW": !(len(parts) > 2 && parts[2] == "ro")}
		if strings.HasPrefix(parts[0], "/") {
			m["Type"] = "bind"
			m["Source"] = parts[0]
		} else {
			m["Type"] = "volume"
			m["Name"] = parts[0]
			m["Source"] = "/var/lib/docker/volumes/" + parts[0] + "/_data"
		}
		mounts = append(mounts, m)
	}

	networks := make(map[string]any, len(c.Networks))
	for _, n := range c.Networks {
		networks[n] = map[string]any{"NetworkID": n}
	}

	return map[string]any{
		"Id":    c.ID,
		"Name":  c.Name,
		"Image": c.ImageID,
		"State": map[string]any{"Status": c.Status, "Running": c.Status == "running"},
		"HostConfig": map[string]any{
			"PortBindings": bindings,
		},
		"Mounts": mounts,
		"Config": map[string]any{
			"Hostname":   c.Hostname,
			"Domainname": c.Domainname,
			"Env":        c.Env,
			"Image":      c.Image,
			"Labels":     c.Labels,
		},
		"NetworkSettings": map[string]any{"Networks": networks},
	}
}

// mergeEnv applies run-time entries over the image's, replacing entries
// with the same key the way the engine does.
func mergeEnv(base, overrides []string) []string {
	out := append([]string(nil), base...)
	for _, e := range overrides {
		key, _, _ := strings.Cut(e, "=")
		replaced := false
		for i, b := range out {
			if k, _, _ := strings.Cut(b, "="); k == key {
				out[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return out
}

func mergeLabels(base, overrides map[string]string) map[string]string {
	if len(base) == 0 && len(overrides) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Names returns the names of every container, sorted.
func (p *Provider) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.containers))
	for _, c := range p.containers {
		names = append(names, c.Name)
	}
	sort.Strings(names)
	return names
}
