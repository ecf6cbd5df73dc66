package ir

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/distribution/reference"
	"github.com/docker/go-connections/nat"
)

// NamePrefix is the separator the engine puts in front of every container name.
const NamePrefix = "/"

var validName = regexp.MustCompile(`^/[a-zA-Z0-9][a-zA-Z0-9_.-]+$`)

// ValidationError is returned for a declaration that can never be applied.
type ValidationError struct {
	Resource string
	Field    string
	Value    string
	Reason   string
}

func (e *ValidationError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("container %s: invalid %s %q: %s", e.Resource, e.Field, e.Value, e.Reason)
}

// Validate checks a declared resource without talking to the engine.
func (r *Resource) Validate() error {
	if !strings.HasPrefix(r.Name, NamePrefix) {
		return &ValidationError{Field: "name", Value: r.Name, Reason: "container names must start with '/'"}
	}
	if !validName.MatchString(r.Name) {
		return &ValidationError{Field: "name", Value: r.Name, Reason: "only [a-zA-Z0-9][a-zA-Z0-9_.-] are allowed after '/'"}
	}

	invalid := func(field, value, reason string) error {
		return &ValidationError{Resource: r.Name, Field: field, Value: value, Reason: reason}
	}

	switch r.Ensure {
	case "", EnsurePresent, EnsureAbsent:
	case "stopped":
		return invalid("ensure", string(r.Ensure), "stopped containers cannot be represented; use present or absent")
	default:
		return invalid("ensure", string(r.Ensure), "must be present or absent")
	}

	if r.Image == "" {
		return invalid("image", r.Image, "image is required")
	}
	if _, err := reference.ParseAnyReference(r.Image); err != nil {
		return invalid("image", r.Image, err.Error())
	}

	for k := range r.Labels {
		if k == "" {
			return invalid("labels", k, "label keys must not be empty")
		}
	}

	for _, e := range r.Env {
		if k, _, ok := strings.Cut(e, "="); !ok || k == "" {
			return invalid("env", e, "entries must be KEY=VALUE")
		}
	}

	published := make(map[nat.Port]bool, len(r.PortBindings))
	for _, p := range r.PortBindings {
		mappings, err := nat.ParsePortSpec(p)
		if err != nil {
			return invalid("port_bindings", p, err.Error())
		}
		// The engine records a range as one binding per port.
		if len(mappings) != 1 {
			return invalid("port_bindings", p, "port ranges are not supported; publish each port separately")
		}
		port := mappings[0].Port
		if published[port] {
			return invalid("port_bindings", p, fmt.Sprintf("container port %s is already published", port))
		}
		published[port] = true
	}

	if r.Hostname != nil && *r.Hostname == "" {
		return invalid("hostname", "", "must not be empty; leave it undeclared to let the engine choose")
	}

	for _, n := range r.Networks {
		if n == "" {
			return invalid("networks", n, "network names must not be empty")
		}
	}

	for _, v := range r.Volumes {
		if err := validateVolume(v); err != nil {
			return invalid("volumes", v, err.Error())
		}
	}

	return nil
}

func validateVolume(v string) error {
	parts := strings.Split(v, ":")
	switch len(parts) {
	case 2:
	case 3:
		if parts[2] != "ro" {
			return fmt.Errorf("unsupported mode %q, only ro is observable", parts[2])
		}
	default:
		return fmt.Errorf("expected source:destination[:ro]")
	}
	if parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("source and destination are required")
	}
	return nil
}

// Validate checks every declared container and rejects duplicate names.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Containers))
	for _, res := range c.Containers {
		if res == nil {
			continue
		}
		if err := res.Validate(); err != nil {
			return err
		}
		if seen[res.Name] {
			return &ValidationError{Field: "name", Value: res.Name, Reason: "declared more than once"}
		}
		seen[res.Name] = true
	}
	return nil
}
