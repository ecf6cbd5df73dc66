package insync

import (
	"context"
	"fmt"

	"github.com/picklr-io/converge/internal/ir"
	"github.com/picklr-io/converge/internal/normalize"
	"github.com/picklr-io/converge/pkg/engineapi"
)

// Lookup carries the engine queries the image, env and labels comparisons
// depend on for one matched snapshot.
type Lookup struct {
	client   engineapi.Client
	snapshot *ir.Snapshot
	baseline *normalize.ImageRecord
}

// NewLookup returns a lookup scoped to snap. It must not be reused across
// resources or reconciliation passes.
func NewLookup(client engineapi.Client, snap *ir.Snapshot) *Lookup {
	return &Lookup{client: client, snapshot: snap}
}

// ResolveImage returns the canonical id of a local image.
func (l *Lookup) ResolveImage(ctx context.Context, ref string) (string, error) {
	img, err := l.inspectImage(ctx, ref)
	if err != nil {
		return "", err
	}
	return img.ID, nil
}

// ResolveDesiredImage is ResolveImage with one pull and retry when ref is not
// available locally yet.
func (l *Lookup) ResolveDesiredImage(ctx context.Context, ref string) (string, error) {
	id, err := l.ResolveImage(ctx, ref)
	if err == nil {
		return id, nil
	}
	if pullErr := l.client.PullImage(ctx, ref); pullErr != nil {
		return "", fmt.Errorf("failed to pull image %s: %w", ref, pullErr)
	}
	return l.ResolveImage(ctx, ref)
}

// Baseline returns the configuration of the image the snapshot's container
// was created from. The inspection runs at most once per lookup.
func (l *Lookup) Baseline(ctx context.Context) (*normalize.ImageRecord, error) {
	if l.baseline != nil {
		return l.baseline, nil
	}
	ref := l.snapshot.ImageID
	if ref == "" {
		ref = l.snapshot.Image
	}
	img, err := l.inspectImage(ctx, ref)
	if err != nil {
		return nil, err
	}
	l.baseline = img
	return img, nil
}

func (l *Lookup) inspectImage(ctx context.Context, ref string) (*normalize.ImageRecord, error) {
	out, err := l.client.InspectImage(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect image %s: %w", ref, err)
	}
	img, err := normalize.ParseImageInspect(out)
	if err != nil {
		return nil, fmt.Errorf("failed to parse image %s: %w", ref, err)
	}
	return img, nil
}
