package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PortBinding is a static host-to-container port publication.
type PortBinding struct {
	Host      uint16 `json:"host"`
	Container uint16 `json:"container"`
}

// ParsePortBinding parses "host:container" notation, e.g. "5000:5000".
// A bare "5000" publishes the same port on both sides.
func ParsePortBinding(s string) (PortBinding, error) {
	host, cont, found := strings.Cut(s, ":")
	if !found {
		cont = host
	}
	h, err := parsePort(host)
	if err != nil {
		return PortBinding{}, fmt.Errorf("invalid port binding %q: %w", s, err)
	}
	c, err := parsePort(cont)
	if err != nil {
		return PortBinding{}, fmt.Errorf("invalid port binding %q: %w", s, err)
	}
	return PortBinding{Host: h, Container: c}, nil
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%q is not a valid port", s)
	}
	return uint16(n), nil
}

func (p PortBinding) String() string {
	return fmt.Sprintf("%d:%d", p.Host, p.Container)
}

// RestartPolicy mirrors the container runtime's restart policies.
type RestartPolicy string

const (
	RestartNever         RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// Valid reports whether the policy is one the runtime understands.
func (r RestartPolicy) Valid() bool {
	switch r {
	case RestartNever, RestartAlways, RestartOnFailure, RestartUnlessStopped:
		return true
	}
	return false
}

// ServiceSpec describes the single managed container slot: its name, the
// image it runs, and how it is wired to the host. The name doubles as the
// lock key for replace operations, so at most one instance exists per name.
type ServiceSpec struct {
	Name          string        `json:"name"`
	Image         string        `json:"image"`
	Ports         []PortBinding `json:"ports"`
	MountSource   string        `json:"mount_source"`
	MountTarget   string        `json:"mount_target"`
	RestartPolicy RestartPolicy `json:"restart_policy"`
	Command       []string      `json:"command"`
}

// Validate checks the invariants a spec must hold before it reaches the
// runtime.
func (s ServiceSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if s.Image == "" {
		return fmt.Errorf("service image is required")
	}
	if s.MountSource != "" && s.MountTarget == "" {
		return fmt.Errorf("mount target is required when a mount source is set")
	}
	if s.RestartPolicy != "" && !s.RestartPolicy.Valid() {
		return fmt.Errorf("unknown restart policy %q", s.RestartPolicy)
	}
	return nil
}

// LibrarySpec points at a third-party library installed from source during
// the image build. An empty Revision means the default branch head; setting
// one pins the build to that commit, tag, or branch.
type LibrarySpec struct {
	URL      string `json:"url"`
	Revision string `json:"revision,omitempty"`
}

// ImageSpec is everything the builder needs to produce a tagged image.
type ImageSpec struct {
	Tag          string      `json:"tag"`
	BaseImage    string      `json:"base_image"`
	Packages     []string    `json:"packages"`
	Library      LibrarySpec `json:"library"`
	Requirements string      `json:"requirements"`
}

// Validate checks the spec is complete enough to build.
func (s ImageSpec) Validate() error {
	if s.Tag == "" {
		return fmt.Errorf("image tag is required")
	}
	if s.BaseImage == "" {
		return fmt.Errorf("base image is required")
	}
	for _, p := range s.Packages {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("package names must be non-empty")
		}
	}
	if s.Library.URL == "" {
		return fmt.Errorf("library url is required")
	}
	if s.Requirements == "" {
		return fmt.Errorf("requirements file path is required")
	}
	return nil
}
