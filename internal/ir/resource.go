package ir

// Ensure is the desired lifecycle state of a container.
type Ensure string

const (
	EnsurePresent Ensure = "present"
	EnsureAbsent  Ensure = "absent"
)

// Resource represents a single declared container.
//
// Nil fields are not declared and are left out of sync checks.
type Resource struct {
	Name         string            `pkl:"name" yaml:"name" json:"name"`
	Image        string            `pkl:"image" yaml:"image" json:"image"`
	Labels       map[string]string `pkl:"labels" yaml:"labels,omitempty" json:"labels,omitempty"`
	Env          []string          `pkl:"env" yaml:"env,omitempty" json:"env,omitempty"`
	PortBindings []string          `pkl:"portBindings" yaml:"port_bindings,omitempty" json:"port_bindings,omitempty"`
	Networks     []string          `pkl:"networks" yaml:"networks,omitempty" json:"networks,omitempty"`
	Volumes      []string          `pkl:"volumes" yaml:"volumes,omitempty" json:"volumes,omitempty"`
	Hostname     *string           `pkl:"hostname" yaml:"hostname,omitempty" json:"hostname,omitempty"`
	Domainname   *string           `pkl:"domainname" yaml:"domainname,omitempty" json:"domainname,omitempty"`
	Status       *string           `pkl:"status" yaml:"status,omitempty" json:"status,omitempty"`
	Ensure       Ensure            `pkl:"ensure" yaml:"ensure,omitempty" json:"ensure,omitempty"`
}

// DesiredEnsure returns the declared ensure value, defaulting to present.
func (r *Resource) DesiredEnsure() Ensure {
	if r.Ensure == "" {
		return EnsurePresent
	}
	return r.Ensure
}

// Absent returns a copy of r declared as absent.
func (r *Resource) Absent() *Resource {
	c := *r
	c.Ensure = EnsureAbsent
	return &c
}
