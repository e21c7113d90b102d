// Package config loads the deploy.yaml describing the managed service and
// its image build.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
)

// DefaultPath is where Load looks when no config flag is given.
const DefaultPath = "deploy.yaml"

// MountConfig describes the bind mount of host files into the container.
type MountConfig struct {
	// Source is the host directory. Empty means the working directory the
	// tool is invoked from.
	Source string `yaml:"source,omitempty"`
	Target string `yaml:"target"`
}

// ServiceConfig describes the managed container slot.
type ServiceConfig struct {
	Name    string      `yaml:"name"`
	Image   string      `yaml:"image"`
	Ports   []string    `yaml:"ports"`
	Mount   MountConfig `yaml:"mount"`
	Restart string      `yaml:"restart"`
	Command []string    `yaml:"command"`
}

// LibraryConfig points at the third-party library installed from source.
type LibraryConfig struct {
	URL string `yaml:"url"`
	// Revision pins the library to a commit, tag, or branch. Empty means
	// the default branch head.
	Revision string `yaml:"revision,omitempty"`
}

// BuildConfig describes the image build.
type BuildConfig struct {
	BaseImage    string        `yaml:"base_image"`
	Packages     []string      `yaml:"packages"`
	Library      LibraryConfig `yaml:"library"`
	Requirements string        `yaml:"requirements"`
}

// ServeConfig configures the REST surface of serve mode.
type ServeConfig struct {
	Listen string `yaml:"listen"`
}

// Config is the full deploy.yaml.
type Config struct {
	Service   ServiceConfig `yaml:"service"`
	Build     BuildConfig   `yaml:"build"`
	Serve     ServeConfig   `yaml:"serve"`
	HistoryDB string        `yaml:"history_db"`
}

// Default returns the configuration for the stock bitboard-rest deployment.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the config at path. A missing file is not an error: the
// defaults fully describe the stock deployment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "bitboard-rest"
	}
	if c.Service.Image == "" {
		c.Service.Image = "bitboard-rest:latest"
	}
	if len(c.Service.Ports) == 0 {
		c.Service.Ports = []string{"5000:5000"}
	}
	if c.Service.Mount.Target == "" {
		c.Service.Mount.Target = "/code"
	}
	if c.Service.Restart == "" {
		c.Service.Restart = string(domain.RestartUnlessStopped)
	}
	if len(c.Service.Command) == 0 {
		c.Service.Command = []string{"python3", "run.py"}
	}
	if c.Build.BaseImage == "" {
		c.Build.BaseImage = "python:3.11-slim"
	}
	if len(c.Build.Packages) == 0 {
		c.Build.Packages = []string{"git", "build-essential"}
	}
	if c.Build.Library.URL == "" {
		c.Build.Library.URL = "https://github.com/bitboard/east.git"
	}
	if c.Build.Requirements == "" {
		c.Build.Requirements = "requirements.txt"
	}
	if c.Serve.Listen == "" {
		c.Serve.Listen = ":8080"
	}
	if c.HistoryDB == "" {
		c.HistoryDB = "deployments.db"
	}
}

// Validate checks the config is coherent; spec-level invariants are checked
// again by the specs themselves.
func (c *Config) Validate() error {
	for _, p := range c.Service.Ports {
		if _, err := domain.ParsePortBinding(p); err != nil {
			return err
		}
	}
	if r := domain.RestartPolicy(c.Service.Restart); !r.Valid() {
		return fmt.Errorf("unknown restart policy %q", c.Service.Restart)
	}
	return nil
}

// ServiceSpec materializes the service section. The mount source defaults
// to the current working directory, matching the operator contract of
// deploying whatever directory the tool is invoked from.
func (c *Config) ServiceSpec() (domain.ServiceSpec, error) {
	source := c.Service.Mount.Source
	if source == "" {
		wd, err := os.Getwd()
		if err != nil {
			return domain.ServiceSpec{}, fmt.Errorf("resolve working directory: %w", err)
		}
		source = wd
	}

	var ports []domain.PortBinding
	for _, p := range c.Service.Ports {
		b, err := domain.ParsePortBinding(p)
		if err != nil {
			return domain.ServiceSpec{}, err
		}
		ports = append(ports, b)
	}

	spec := domain.ServiceSpec{
		Name:          c.Service.Name,
		Image:         c.Service.Image,
		Ports:         ports,
		MountSource:   source,
		MountTarget:   c.Service.Mount.Target,
		RestartPolicy: domain.RestartPolicy(c.Service.Restart),
		Command:       c.Service.Command,
	}
	return spec, spec.Validate()
}

// ImageSpec materializes the build section, tagged with the service image.
func (c *Config) ImageSpec() domain.ImageSpec {
	return domain.ImageSpec{
		Tag:       c.Service.Image,
		BaseImage: c.Build.BaseImage,
		Packages:  c.Build.Packages,
		Library: domain.LibrarySpec{
			URL:      c.Build.Library.URL,
			Revision: c.Build.Library.Revision,
		},
		Requirements: c.Build.Requirements,
	}
}
