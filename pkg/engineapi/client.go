// Package engineapi defines the boundary between the reconciler and a
// container engine.
//
// Every method maps to one engine command. Outputs are returned raw, exactly
// as the engine's command line prints them, so that all parsing happens in
// one place (internal/normalize) whichever backend produced them.
package engineapi

import (
	"context"
	"errors"
)

// ErrNotFound is wrapped by clients when the referenced container or image
// does not exist.
var ErrNotFound = errors.New("not found")

// Client executes container engine commands.
type Client interface {
	// ListContainers returns a header row followed by one row per
	// container, running or not. The first column is the container id.
	ListContainers(ctx context.Context) ([]byte, error)

	// InspectContainer returns a JSON array holding one inspection record.
	InspectContainer(ctx context.Context, ref string) ([]byte, error)

	// InspectImage returns a JSON array holding one image record.
	InspectImage(ctx context.Context, ref string) ([]byte, error)

	// PullImage fetches ref into the local image store.
	PullImage(ctx context.Context, ref string) error

	// RunContainer creates and starts a container.
	RunContainer(ctx context.Context, spec *RunSpec) error

	// RemoveContainer force-removes the named container, running or not.
	RemoveContainer(ctx context.Context, name string) error
}
