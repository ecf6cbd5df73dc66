// Package normalize turns raw container engine output into snapshots.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/picklr-io/converge/internal/ir"
)

// inspectRecord maps every property a snapshot carries to the engine field
// it is read from. Sub-objects are pointers so that a record missing one is
// detected instead of decoding to zero values.
type inspectRecord struct {
	ID              string           `json:"Id"`
	Name            string           `json:"Name"`
	Image           string           `json:"Image"`
	Config          *configSection   `json:"Config"`
	State           *stateSection    `json:"State"`
	HostConfig      *hostSection     `json:"HostConfig"`
	Mounts          []mountPoint     `json:"Mounts"`
	NetworkSettings *networkSettings `json:"NetworkSettings"`
}

type configSection struct {
	Image      string            `json:"Image"`
	Labels     map[string]string `json:"Labels"`
	Env        []string          `json:"Env"`
	Hostname   string            `json:"Hostname"`
	Domainname string            `json:"Domainname"`
}

type stateSection struct {
	Status string `json:"Status"`
}

type hostSection struct {
	PortBindings nat.PortMap `json:"PortBindings"`
}

type mountPoint struct {
	Name        string `json:"Name"`
	Source      string `json:"Source"`
	Destination string `json:"Destination"`
	RW          bool   `json:"RW"`
}

type networkSettings struct {
	Networks map[string]json.RawMessage `json:"Networks"`
}

// ParseContainerList extracts container ids from list output. The first line
// is a header; the id is the first field of every following line.
func ParseContainerList(out []byte) ([]string, error) {
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, &DiscoveryError{Stage: "list", Err: errors.New("missing header row")}
	}

	var ids []string
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		ids = append(ids, fields[0])
	}
	return ids, nil
}

// ParseContainerInspect builds a snapshot from the output of a container
// inspection.
func ParseContainerInspect(out []byte) (*ir.Snapshot, error) {
	rec, err := decodeSingle[inspectRecord](out)
	if err != nil {
		return nil, err
	}

	var missing []string
	if rec.ID == "" {
		missing = append(missing, "Id")
	}
	if rec.Config == nil {
		missing = append(missing, "Config")
	}
	if rec.State == nil {
		missing = append(missing, "State")
	}
	if rec.HostConfig == nil {
		missing = append(missing, "HostConfig")
	}
	if rec.NetworkSettings == nil {
		missing = append(missing, "NetworkSettings")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("inspection record is missing %s", strings.Join(missing, ", "))
	}

	return &ir.Snapshot{
		ID:           rec.ID,
		Name:         rec.Name,
		Image:        rec.Config.Image,
		ImageID:      rec.Image,
		Hostname:     rec.Config.Hostname,
		Domainname:   rec.Config.Domainname,
		Status:       rec.State.Status,
		Labels:       rec.Config.Labels,
		Env:          rec.Config.Env,
		PortBindings: portBindings(rec.HostConfig.PortBindings),
		Volumes:      volumes(rec.Mounts),
		Networks:     networkNames(rec.NetworkSettings.Networks),
		Ensure:       ir.EnsurePresent,
	}, nil
}

// portBindings renders each container port in publish syntax,
// [hostIp:]hostPort:containerPort[/proto]. Only the first host binding of
// a port is kept.
func portBindings(pm nat.PortMap) []string {
	ports := make([]string, 0, len(pm))
	for p := range pm {
		ports = append(ports, string(p))
	}
	sort.Strings(ports)

	out := make([]string, 0, len(ports))
	for _, key := range ports {
		port := nat.Port(key)
		bindings := pm[port]
		if len(bindings) == 0 {
			continue
		}
		out = append(out, PortBinding(port, bindings[0]))
	}
	return out
}

// PortBinding renders one host binding of port in publish syntax. The
// protocol is left out for tcp.
func PortBinding(port nat.Port, b nat.PortBinding) string {
	containerPort := port.Port()
	if proto := port.Proto(); proto != "" && proto != "tcp" {
		containerPort += "/" + proto
	}
	return joinNonEmpty(b.HostIP, b.HostPort, containerPort)
}

// CanonicalPortBindings renders declared publish specs the way discovery
// renders the engine's bindings, so "80:8080/tcp" and "80:8080" compare
// equal.
func CanonicalPortBindings(specs []string) ([]string, error) {
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		mappings, err := nat.ParsePortSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid port binding %q: %w", spec, err)
		}
		if len(mappings) != 1 {
			return nil, fmt.Errorf("invalid port binding %q: expected a single port", spec)
		}
		out = append(out, PortBinding(mappings[0].Port, mappings[0].Binding))
	}
	return out, nil
}

func volumes(mounts []mountPoint) []string {
	out := make([]string, 0, len(mounts))
	for _, m := range mounts {
		src := m.Name
		if src == "" {
			src = m.Source
		}
		v := src + ":" + m.Destination
		if !m.RW {
			v += ":ro"
		}
		out = append(out, v)
	}
	return out
}

func networkNames(nets map[string]json.RawMessage) []string {
	out := make([]string, 0, len(nets))
	for name := range nets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}

// decodeSingle decodes a JSON array that must hold exactly one record.
func decodeSingle[T any](out []byte) (*T, error) {
	dec := json.NewDecoder(bytes.NewReader(out))
	var recs []T
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to decode inspection output: %w", err)
	}
	if len(recs) != 1 {
		return nil, fmt.Errorf("expected exactly one inspection record, got %d", len(recs))
	}
	return &recs[0], nil
}
