package ports

import (
	"context"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
)

// BuilderService defines the operation for producing container images.
type BuilderService interface {
	// BuildImage stages a build context for the spec, drives the image
	// build, and returns the tag the result was addressed under.
	BuildImage(ctx context.Context, spec domain.ImageSpec) (string, error)
}
