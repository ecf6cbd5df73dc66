// Package provider selects the engine client a pass talks to.
package provider

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/picklr-io/converge/pkg/engineapi"
	"github.com/picklr-io/converge/providers/docker"
	"github.com/picklr-io/converge/providers/dockercli"
	"github.com/picklr-io/converge/providers/null"
)

// DefaultBackend is the backend used when none is named.
const DefaultBackend = "cli"

// ErrUnknownBackend is returned for a backend name nothing is registered under.
var ErrUnknownBackend = errors.New("unknown engine backend")

// Options configure the built-in backends.
type Options struct {
	// DockerBinary is the executable the cli backend runs.
	DockerBinary string
	// CommandTimeout bounds each cli engine command. Zero means no bound.
	CommandTimeout time.Duration
}

// Factory builds an engine client.
type Factory func(opts Options) (engineapi.Client, error)

// Registry manages the lifecycle of engine clients. A client is built once
// per backend and reused afterwards.
type Registry struct {
	mu        sync.RWMutex
	opts      Options
	factories map[string]Factory
	clients   map[string]engineapi.Client
}

// NewRegistry returns a registry with the cli, sdk and null backends.
func NewRegistry(opts Options) *Registry {
	r := &Registry{
		opts:      opts,
		factories: make(map[string]Factory),
		clients:   make(map[string]engineapi.Client),
	}
	r.Register("cli", func(o Options) (engineapi.Client, error) {
		return dockercli.New(o.DockerBinary, o.CommandTimeout), nil
	})
	r.Register("sdk", func(Options) (engineapi.Client, error) {
		return docker.New(), nil
	})
	r.Register("null", func(Options) (engineapi.Client, error) {
		return null.New(), nil
	})
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	delete(r.clients, name)
}

// Get returns the client for name, building it on first use. An empty name
// selects DefaultBackend.
func (r *Registry) Get(name string) (engineapi.Client, error) {
	if name == "" {
		name = DefaultBackend
	}

	r.mu.RLock()
	c, ok := r.clients[name]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[name]; ok {
		return c, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, r.namesLocked())
	}
	c, err := f(r.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", name, err)
	}
	r.clients[name] = c
	return c, nil
}

// Names lists the registered backends, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
