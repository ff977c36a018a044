package database

import (
	"database/sql"
	"fmt"
	"time"
)

// StoredSnapshot is one persisted world snapshot blob. Data holds the
// zstd-compressed payload produced by the snapshot codec; the database only
// stores and orders it.
type StoredSnapshot struct {
	ID        int64
	Seed      int64
	SavedAt   time.Time
	Data      []byte
	CreatedAt time.Time
}

// SnapshotStorage handles world snapshot persistence.
type SnapshotStorage struct {
	db *sql.DB
}

// NewSnapshotStorage creates a new snapshot storage instance.
func NewSnapshotStorage(db *sql.DB) *SnapshotStorage {
	return &SnapshotStorage{db: db}
}

// Store inserts a snapshot blob and returns its row ID.
func (s *SnapshotStorage) Store(seed int64, savedAt time.Time, data []byte) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO world_snapshots (seed, saved_at, data)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		seed, savedAt, data,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storing snapshot: %w", err)
	}
	return id, nil
}

// Latest retrieves the most recent snapshot. Returns nil without error when
// none exists yet.
func (s *SnapshotStorage) Latest() (*StoredSnapshot, error) {
	var snapshot StoredSnapshot
	err := s.db.QueryRow(
		`SELECT id, seed, saved_at, data, created_at
		 FROM world_snapshots
		 ORDER BY saved_at DESC
		 LIMIT 1`,
	).Scan(&snapshot.ID, &snapshot.Seed, &snapshot.SavedAt, &snapshot.Data, &snapshot.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return &snapshot, nil
}

// Prune deletes all but the newest keep snapshots.
func (s *SnapshotStorage) Prune(keep int) error {
	if keep < 1 {
		keep = 1
	}
	if _, err := s.db.Exec(
		`DELETE FROM world_snapshots
		 WHERE id NOT IN (
			SELECT id FROM world_snapshots ORDER BY saved_at DESC LIMIT $1
		 )`, keep,
	); err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}
	return nil
}
