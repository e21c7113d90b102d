// Package docker implements the container runtime port against the Docker
// Engine API.
package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
)

// Adapter implements ports.ContainerService using the Docker SDK.
type Adapter struct {
	cli *client.Client
}

// NewAdapter creates a new Docker adapter instance, configured from the
// usual DOCKER_* environment.
func NewAdapter() (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli}, nil
}

// FindByName looks up a container by name, running or not.
func (a *Adapter) FindByName(ctx context.Context, name string) (domain.Container, error) {
	insp, err := a.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return domain.Container{}, domain.ErrNotFound
		}
		return domain.Container{}, fmt.Errorf("failed to inspect container: %w", err)
	}

	c := domain.Container{
		ID:   domain.ShortID(insp.ID),
		Name: strings.TrimPrefix(insp.Name, "/"),
	}
	if insp.Config != nil {
		c.Image = insp.Config.Image
	}
	if insp.State != nil {
		c.State = insp.State.Status
		c.Status = insp.State.Status
	}
	return c, nil
}

// engineSpec translates a service spec into the engine-side container and
// host configuration: published ports, bind mount, restart policy, and the
// service command.
func engineSpec(spec domain.ServiceSpec) (*container.Config, *container.HostConfig, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range spec.Ports {
		port, err := nat.NewPort("tcp", strconv.Itoa(int(p.Container)))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid container port %d: %w", p.Container, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = []nat.PortBinding{{
			HostIP:   "0.0.0.0",
			HostPort: strconv.Itoa(int(p.Host)),
		}}
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          strslice.StrSlice(spec.Command),
		WorkingDir:   spec.MountTarget,
		ExposedPorts: exposed,
		// The service is run interactively attached in the original
		// operator workflow; keep a TTY and open stdin on the container.
		Tty:       true,
		OpenStdin: true,
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
	}
	if spec.RestartPolicy != "" {
		hostCfg.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(spec.RestartPolicy),
		}
	}
	if spec.MountSource != "" {
		hostCfg.Mounts = []mount.Mount{{
			Type:   mount.TypeBind,
			Source: spec.MountSource,
			Target: spec.MountTarget,
		}}
	}
	return cfg, hostCfg, nil
}

// Create creates a container for the spec. It does not start it.
func (a *Adapter) Create(ctx context.Context, spec domain.ServiceSpec) (string, error) {
	cfg, hostCfg, err := engineSpec(spec)
	if err != nil {
		return "", err
	}

	resp, err := a.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	return resp.ID, nil
}

// Start starts a created container.
func (a *Adapter) Start(ctx context.Context, id string) error {
	if err := a.cli.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}
	return nil
}

// Stop stops the named container.
func (a *Adapter) Stop(ctx context.Context, name string) error {
	// Timeout can be configurable, but keeping it simple for now
	timeout := 10 * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := a.cli.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Remove deletes the named container's metadata.
func (a *Adapter) Remove(ctx context.Context, name string) error {
	if err := a.cli.ContainerRemove(ctx, name, types.ContainerRemoveOptions{}); err != nil {
		if errdefs.IsNotFound(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// List returns all containers, running or not.
func (a *Adapter) List(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, types.ContainerListOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var result []domain.Container
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		result = append(result, domain.Container{
			ID:     domain.ShortID(c.ID),
			Name:   name,
			Image:  c.Image,
			Status: c.Status,
			State:  c.State,
		})
	}
	return result, nil
}

// Logs returns a stream of the named container's logs.
func (a *Adapter) Logs(ctx context.Context, name string) (io.ReadCloser, error) {
	options := types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
	}
	rc, err := a.cli.ContainerLogs(ctx, name, options)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch container logs: %w", err)
	}
	return rc, nil
}
