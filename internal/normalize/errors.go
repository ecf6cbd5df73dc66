package normalize

import "fmt"

// DiscoveryError reports engine output that could not be turned into
// snapshots. A discovery pass that hits one returns no snapshots at all.
type DiscoveryError struct {
	Stage string // "list", "inspect" or "image"
	Ref   string
	Err   error
}

func (e *DiscoveryError) Error() string {
	if e.Ref == "" {
		return fmt.Sprintf("discovery failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("discovery failed at %s %s: %v", e.Stage, e.Ref, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}
