package normalize

import (
	"context"

	"github.com/picklr-io/converge/internal/ir"
	"github.com/picklr-io/converge/pkg/engineapi"
)

// Discover lists every container the engine knows about and inspects each
// one. The first failure aborts the pass.
func Discover(ctx context.Context, client engineapi.Client) ([]*ir.Snapshot, error) {
	out, err := client.ListContainers(ctx)
	if err != nil {
		return nil, &DiscoveryError{Stage: "list", Err: err}
	}

	ids, err := ParseContainerList(out)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*ir.Snapshot, 0, len(ids))
	for _, id := range ids {
		raw, err := client.InspectContainer(ctx, id)
		if err != nil {
			return nil, &DiscoveryError{Stage: "inspect", Ref: id, Err: err}
		}
		snap, err := ParseContainerInspect(raw)
		if err != nil {
			return nil, &DiscoveryError{Stage: "inspect", Ref: id, Err: err}
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}
