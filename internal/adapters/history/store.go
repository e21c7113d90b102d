// Package history keeps a sqlite-backed ledger of lifecycle operations, one
// row per replace or teardown.
package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/bitboard/bitboard-deploy/internal/core/domain"
)

// Store implements ports.HistoryStore on a sqlite database file.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the ledger at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS deployments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			service TEXT NOT NULL,
			image TEXT,
			container_id TEXT,
			outcome TEXT NOT NULL,
			error TEXT,
			created_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends one ledger entry.
func (s *Store) Record(ctx context.Context, d domain.Deployment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (action, service, image, container_id, outcome, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.Action, d.Service, d.Image, d.ContainerID, d.Outcome, d.Error, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("record deployment: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first. A limit of zero or
// less means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]domain.Deployment, error) {
	if limit <= 0 {
		limit = -1 // sqlite treats a negative LIMIT as unlimited
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action, service, image, container_id, outcome, error, created_at
		FROM deployments
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var out []domain.Deployment
	for rows.Next() {
		var d domain.Deployment
		if err := rows.Scan(&d.ID, &d.Action, &d.Service, &d.Image, &d.ContainerID, &d.Outcome, &d.Error, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
