package ports

import (
	"context"
	"io"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
)

// ContainerService defines the runtime operations the deployer needs.
// This interface keeps the core free of the Docker SDK, so the runtime
// could be swapped (Podman, a fake in tests) without changing the
// orchestration logic.
type ContainerService interface {
	// FindByName looks up a container by its name, running or not.
	// Returns domain.ErrNotFound when no such container exists.
	FindByName(ctx context.Context, name string) (domain.Container, error)
	// Create creates (but does not start) a container for the spec and
	// returns its ID.
	Create(ctx context.Context, spec domain.ServiceSpec) (string, error)
	Start(ctx context.Context, id string) error
	// Stop stops the named container. Returns domain.ErrNotFound when the
	// container does not exist.
	Stop(ctx context.Context, name string) error
	// Remove deletes the named container's metadata. Returns
	// domain.ErrNotFound when the container does not exist.
	Remove(ctx context.Context, name string) error
	List(ctx context.Context) ([]domain.Container, error)
	Logs(ctx context.Context, name string) (io.ReadCloser, error)
}
