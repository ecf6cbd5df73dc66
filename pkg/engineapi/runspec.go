package engineapi

// RunSpec is everything a create passes to the engine's run command.
type RunSpec struct {
	Name         string
	Labels       []Label
	Env          []string
	PortBindings []string
	// Network is empty when no network was declared. Only one network can be
	// attached at create time.
	Network    string
	Volumes    []string
	Hostname   string
	Domainname string
	Image      string
}

// Label is one key/value pair, kept ordered so that argument lists are stable.
type Label struct {
	Key   string
	Value string
}

// Args renders the run options in their fixed group order: name, labels,
// env, publish, network, volumes, hostname, domainname and finally the image.
func (s *RunSpec) Args() []string {
	args := []string{"--name", s.Name}
	for _, l := range s.Labels {
		args = append(args, "--label", l.Key+"="+l.Value)
	}
	for _, e := range s.Env {
		args = append(args, "--env", e)
	}
	for _, p := range s.PortBindings {
		args = append(args, "--publish", p)
	}
	if s.Network != "" {
		args = append(args, "--network", s.Network)
	}
	for _, v := range s.Volumes {
		args = append(args, "--volume", v)
	}
	if s.Hostname != "" {
		args = append(args, "--hostname", s.Hostname)
	}
	if s.Domainname != "" {
		args = append(args, "--domainname", s.Domainname)
	}
	return append(args, s.Image)
}

// LabelMap returns the labels as a map.
func (s *RunSpec) LabelMap() map[string]string {
	if len(s.Labels) == 0 {
		return nil
	}
	m := make(map[string]string, len(s.Labels))
	for _, l := range s.Labels {
		m[l.Key] = l.Value
	}
	return m
}
