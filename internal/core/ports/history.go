package ports

import (
	"context"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
)

// HistoryStore persists the deployment ledger.
type HistoryStore interface {
	Record(ctx context.Context, d domain.Deployment) error
	// List returns the most recent entries, newest first. A limit of zero
	// or less means no limit.
	List(ctx context.Context, limit int) ([]domain.Deployment, error)
	Close() error
}
