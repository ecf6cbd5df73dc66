package ir

// Snapshot is the observed state of one existing container.
//
// Snapshots are produced by a discovery pass and discarded after one
// reconciliation decision.
type Snapshot struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Image        string            `json:"image"`
	ImageID      string            `json:"image_id"`
	Hostname     string            `json:"hostname"`
	Domainname   string            `json:"domainname"`
	Status       string            `json:"status"`
	Labels       map[string]string `json:"labels"`
	Env          []string          `json:"env"`
	PortBindings []string          `json:"port_bindings"`
	Volumes      []string          `json:"volumes"`
	Networks     []string          `json:"networks"`
	Ensure       Ensure            `json:"ensure"`
}
