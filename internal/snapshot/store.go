package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// fileExtension marks compressed snapshot files on disk.
const fileExtension = ".json.zst"

// Store persists snapshots as timestamped files in one directory. Writes go
// through a temp file plus rename so a crash mid-save never corrupts the
// newest snapshot.
type Store struct {
	dir   string
	codec *Codec
}

// NewStore creates the snapshot directory if needed.
func NewStore(dir string, codec *Codec) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	return &Store{dir: dir, codec: codec}, nil
}

// Save writes a snapshot and returns its path.
func (s *Store) Save(snapshot *Snapshot) (string, error) {
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now().UTC()
	}
	data, err := s.codec.Encode(snapshot)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("world-%s%s", snapshot.SavedAt.Format("20060102-150405.000000000"), fileExtension)
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, "world-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("publishing snapshot: %w", err)
	}
	return path, nil
}

// Load reads one snapshot file.
func (s *Store) Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return s.codec.Decode(data)
}

// Latest returns the newest snapshot in the store, or os.ErrNotExist when
// the directory holds none.
func (s *Store) Latest() (*Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), fileExtension) {
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, os.ErrNotExist
	}
	// Timestamped names sort chronologically.
	sort.Strings(names)
	return s.Load(filepath.Join(s.dir, names[len(names)-1]))
}

// Prune deletes all but the newest keep snapshots.
func (s *Store) Prune(keep int) error {
	if keep < 1 {
		keep = 1
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("listing snapshots: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), fileExtension) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for len(names) > keep {
		if err := os.Remove(filepath.Join(s.dir, names[0])); err != nil {
			return fmt.Errorf("pruning snapshot: %w", err)
		}
		names = names[1:]
	}
	return nil
}
