// Package dockercli is an engine client that runs the docker command line.
package dockercli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/picklr-io/converge/internal/logging"
	"github.com/picklr-io/converge/pkg/engineapi"
)

// DefaultBinary is the executable used when none is configured.
const DefaultBinary = "docker"

// execCommandContext is a variable to allow mocking in tests
var execCommandContext = exec.CommandContext

// Client implements engineapi.Client by executing the docker CLI. Every
// method blocks until the command exits.
type Client struct {
	binary  string
	timeout time.Duration
}

// New returns a client running binary. A positive timeout bounds every
// command; zero leaves commands unbounded.
func New(binary string, timeout time.Duration) *Client {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Client{binary: binary, timeout: timeout}
}

// Binary returns the executable the client runs.
func (c *Client) Binary() string {
	return c.binary
}

func (c *Client) ListContainers(ctx context.Context) ([]byte, error) {
	return c.run(ctx, "container", "list", "--all")
}

func (c *Client) InspectContainer(ctx context.Context, ref string) ([]byte, error) {
	return c.run(ctx, "container", "inspect", ref)
}

func (c *Client) InspectImage(ctx context.Context, ref string) ([]byte, error) {
	return c.run(ctx, "image", "inspect", ref)
}

func (c *Client) PullImage(ctx context.Context, ref string) error {
	_, err := c.run(ctx, "image", "pull", "--quiet", ref)
	return err
}

func (c *Client) RunContainer(ctx context.Context, spec *engineapi.RunSpec) error {
	args := append([]string{"container", "run", "--detach"}, spec.Args()...)
	out, err := c.run(ctx, args...)
	if err != nil {
		return err
	}
	logging.Debug("container started", "name", spec.Name, "id", shortID(strings.TrimSpace(string(out))))
	return nil
}

func (c *Client) RemoveContainer(ctx context.Context, name string) error {
	_, err := c.run(ctx, "container", "rm", "-f", name)
	return err
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	command := c.binary + " " + strings.Join(args, " ")
	logging.Debug("running engine command", "command", command)

	var stdout, stderr bytes.Buffer
	cmd := execCommandContext(ctx, c.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", command, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if isNotFound(msg) {
			return nil, fmt.Errorf("%s: %w", msg, engineapi.ErrNotFound)
		}
		if msg == "" {
			return nil, fmt.Errorf("%s failed: %w", command, err)
		}
		return nil, fmt.Errorf("%s failed: %w\nOutput: %s", command, err, msg)
	}
	return stdout.Bytes(), nil
}

func isNotFound(stderr string) bool {
	return strings.Contains(stderr, "No such container") ||
		strings.Contains(stderr, "No such image") ||
		strings.Contains(stderr, "No such object")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
