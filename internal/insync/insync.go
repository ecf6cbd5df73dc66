package insync

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/picklr-io/converge/internal/ir"
	"github.com/picklr-io/converge/internal/normalize"
)

// Property names, in the order Compare evaluates them.
const (
	PropImage        = "image"
	PropLabels       = "labels"
	PropEnv          = "env"
	PropPortBindings = "port_bindings"
	PropNetworks     = "networks"
	PropVolumes      = "volumes"
	PropHostname     = "hostname"
	PropDomainname   = "domainname"
	PropStatus       = "status"
)

// ImageResolver maps image references to canonical image ids.
type ImageResolver interface {
	ResolveImage(ctx context.Context, ref string) (string, error)
	ResolveDesiredImage(ctx context.Context, ref string) (string, error)
}

// SetInSync reports whether two lists hold the same elements. Order is
// ignored, duplicates are not.
func SetInSync(desired, observed []string) bool {
	return slices.Equal(sorted(desired), sorted(observed))
}

// ImageInSync reports whether desired and observed refer to the same image
// content. Identical strings are in sync without any lookup.
func ImageInSync(ctx context.Context, desired, observed string, r ImageResolver) (bool, error) {
	if desired == observed {
		return true, nil
	}

	want, err := r.ResolveDesiredImage(ctx, desired)
	if err != nil {
		return false, fmt.Errorf("failed to resolve image %s: %w", desired, err)
	}
	have, err := r.ResolveImage(ctx, observed)
	if err != nil {
		return false, fmt.Errorf("failed to resolve image %s: %w", observed, err)
	}
	return want == have, nil
}

// EnvInSync compares environments after dropping observed entries inherited
// from the image. An inherited entry the user also declared is kept.
func EnvInSync(desired, observed, baseline []string) bool {
	inherited := make(map[string]bool, len(baseline))
	for _, e := range baseline {
		inherited[e] = true
	}
	declared := make(map[string]bool, len(desired))
	for _, e := range desired {
		declared[e] = true
	}

	explicit := make([]string, 0, len(observed))
	for _, e := range observed {
		if inherited[e] && !declared[e] {
			continue
		}
		explicit = append(explicit, e)
	}
	return SetInSync(desired, explicit)
}

// LabelsInSync compares label maps after dropping observed labels the image
// sets with the same value, unless the user declared that key.
func LabelsInSync(desired, observed, baseline map[string]string) bool {
	explicit := make(map[string]string, len(observed))
	for k, v := range observed {
		if bv, ok := baseline[k]; ok && bv == v {
			if _, declared := desired[k]; !declared {
				continue
			}
		}
		explicit[k] = v
	}
	return maps.Equal(desired, explicit)
}

// Compare runs every declared property of desired through its sync check
// against snap and returns the ones that are out of sync.
func Compare(ctx context.Context, desired *ir.Resource, snap *ir.Snapshot, l *Lookup) ([]*ir.PropertyDiff, error) {
	var drift []*ir.PropertyDiff
	out := func(prop string, want, have any) {
		drift = append(drift, &ir.PropertyDiff{Property: prop, Desired: want, Observed: have})
	}

	ok, err := ImageInSync(ctx, desired.Image, snap.Image, l)
	if err != nil {
		return nil, err
	}
	if !ok {
		out(PropImage, desired.Image, snap.Image)
	}

	if desired.Labels != nil {
		base, err := l.Baseline(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read baseline labels: %w", err)
		}
		if !LabelsInSync(desired.Labels, snap.Labels, base.Labels) {
			out(PropLabels, desired.Labels, snap.Labels)
		}
	}

	if desired.Env != nil {
		base, err := l.Baseline(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read baseline env: %w", err)
		}
		if !EnvInSync(desired.Env, snap.Env, base.Env) {
			out(PropEnv, desired.Env, snap.Env)
		}
	}

	ports := desired.PortBindings
	if ports != nil {
		if ports, err = normalize.CanonicalPortBindings(ports); err != nil {
			return nil, err
		}
	}

	for _, p := range []struct {
		name           string
		want, observed []string
	}{
		{PropPortBindings, ports, snap.PortBindings},
		{PropNetworks, desired.Networks, snap.Networks},
		{PropVolumes, desired.Volumes, snap.Volumes},
	} {
		if p.want != nil && !SetInSync(p.want, p.observed) {
			out(p.name, p.want, p.observed)
		}
	}

	for _, p := range []struct {
		name     string
		want     *string
		observed string
	}{
		{PropHostname, desired.Hostname, snap.Hostname},
		{PropDomainname, desired.Domainname, snap.Domainname},
		{PropStatus, desired.Status, snap.Status},
	} {
		if p.want != nil && *p.want != p.observed {
			out(p.name, *p.want, p.observed)
		}
	}

	return drift, nil
}

func sorted(s []string) []string {
	c := slices.Clone(s)
	slices.Sort(c)
	return c
}
