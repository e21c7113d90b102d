package domain

import "errors"

// ErrNotFound is returned when no container exists under a given name.
// Runtime adapters translate their own not-found errors into this one so
// the orchestration layer can treat "already gone" as a no-op.
var ErrNotFound = errors.New("container not found")

// Container represents a container instance known to the runtime,
// whether running or stopped.
type Container struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	Status string `json:"status"`
	State  string `json:"state"` // running, exited, created, ...
}

// Running reports whether the instance is currently running.
func (c Container) Running() bool {
	return c.State == "running"
}

// ShortID truncates a runtime container ID to the usual 12 characters.
func ShortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
