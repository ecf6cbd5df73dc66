// Package docker is an engine client backed by the Docker Engine API.
//
// Output is laid out the way the docker command line prints it, so the
// same normalizer serves both backends.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/picklr-io/converge/pkg/engineapi"
)

// dockerAPI is the part of the Engine API client the provider uses.
type dockerAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspectWithRaw(ctx context.Context, containerID string, getSize bool) (types.ContainerJSON, []byte, error)
	ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *v1.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

type Provider struct {
	client dockerAPI
}

func New() *Provider {
	return &Provider{}
}

func (p *Provider) ensureClient() error {
	if p.client != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	p.client = cli
	return nil
}

func (p *Provider) ListContainers(ctx context.Context) ([]byte, error) {
	if err := p.ensureClient(); err != nil {
		return nil, err
	}
	containers, err := p.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("CONTAINER ID   IMAGE   STATUS   NAMES\n")
	for _, c := range containers {
		names := make([]string, 0, len(c.Names))
		for _, n := range c.Names {
			names = append(names, strings.TrimPrefix(n, "/"))
		}
		fmt.Fprintf(&b, "%s   %s   %s   %s\n", c.ID, c.Image, c.State, strings.Join(names, ","))
	}
	return b.Bytes(), nil
}

func (p *Provider) InspectContainer(ctx context.Context, ref string) ([]byte, error) {
	if err := p.ensureClient(); err != nil {
		return nil, err
	}
	_, raw, err := p.client.ContainerInspectWithRaw(ctx, ref, false)
	if err != nil {
		return nil, wrapNotFound(err, "failed to inspect container %s", ref)
	}
	return asList(raw), nil
}

func (p *Provider) InspectImage(ctx context.Context, ref string) ([]byte, error) {
	if err := p.ensureClient(); err != nil {
		return nil, err
	}
	_, raw, err := p.client.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		return nil, wrapNotFound(err, "failed to inspect image %s", ref)
	}
	return asList(raw), nil
}

func (p *Provider) PullImage(ctx context.Context, ref string) error {
	if err := p.ensureClient(); err != nil {
		return err
	}
	reader, err := p.client.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	return nil
}

// RunContainer creates and starts a container. A missing image is pulled
// once, as the command line does.
func (p *Provider) RunContainer(ctx context.Context, spec *engineapi.RunSpec) error {
	if err := p.ensureClient(); err != nil {
		return err
	}
	config, hostConfig, platform, err := containerConfig(spec)
	if err != nil {
		return err
	}

	resp, err := p.client.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, platform, spec.Name)
	if err != nil && client.IsErrNotFound(err) {
		if pullErr := p.PullImage(ctx, spec.Image); pullErr != nil {
			return fmt.Errorf("unable to find image %s: %w", spec.Image, pullErr)
		}
		resp, err = p.client.ContainerCreate(ctx, config, hostConfig, &network.NetworkingConfig{}, platform, spec.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

func (p *Provider) RemoveContainer(ctx context.Context, name string) error {
	if err := p.ensureClient(); err != nil {
		return err
	}
	if err := p.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil {
		return wrapNotFound(err, "failed to remove container %s", name)
	}
	return nil
}

// containerConfig translates a run command into Engine API create options.
func containerConfig(spec *engineapi.RunSpec) (*container.Config, *container.HostConfig, *v1.Platform, error) {
	exposed, bindings, err := nat.ParsePortSpecs(spec.PortBindings)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid port bindings for %s: %w", spec.Name, err)
	}

	config := &container.Config{
		Image:        spec.Image,
		Hostname:     spec.Hostname,
		Domainname:   spec.Domainname,
		Env:          spec.Env,
		Labels:       spec.LabelMap(),
		ExposedPorts: exposed,
	}

	hostConfig := &container.HostConfig{
		PortBindings: bindings,
		Binds:        spec.Volumes,
	}
	if spec.Network != "" {
		hostConfig.NetworkMode = container.NetworkMode(spec.Network)
	}

	return config, hostConfig, &v1.Platform{}, nil
}

func wrapNotFound(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if client.IsErrNotFound(err) {
		return fmt.Errorf("%s: %v: %w", msg, err, engineapi.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// asList wraps a single inspect record in a JSON array.
func asList(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+2)
	out = append(out, '[')
	out = append(out, bytes.TrimSpace(raw)...)
	return append(out, ']')
}
