// Package filestore persists the service snapshot as JSON files on
// local disk. It is the zero-dependency default backend.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bundlebot/bundle"
	"bundlebot/core/logger"
)

const (
	ordersFile  = "orders.json"
	offlineFile = "offline_users.json"
	statusFile  = "bot_status.json"
)

// Store reads and writes the snapshot under a single directory.
// Each Save rewrites all three files via temp file plus rename so a
// crash mid-write never leaves a truncated document behind.
type Store struct {
	dir string
}

// New creates the snapshot directory if needed and returns the store.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("filestore: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load reads the snapshot. Missing files yield first-run defaults so a
// fresh deployment starts clean without manual setup.
func (s *Store) Load(ctx context.Context) (bundle.Snapshot, error) {
	snap := bundle.EmptySnapshot()

	if err := s.readJSON(ordersFile, &snap.Orders); err != nil {
		return bundle.Snapshot{}, err
	}
	if snap.Orders == nil {
		snap.Orders = make(map[string]bundle.Order)
	}
	if err := s.readJSON(offlineFile, &snap.OfflineQueue); err != nil {
		return bundle.Snapshot{}, err
	}
	if err := s.readJSON(statusFile, &snap.Status); err != nil {
		return bundle.Snapshot{}, err
	}
	if snap.Status.OfflineNotice == "" {
		snap.Status.OfflineNotice = bundle.DefaultOfflineNotice
	}

	logger.Debug(ctx, "store", "load.done",
		slog.String("backend", "file"),
		slog.Int("orders", len(snap.Orders)),
		slog.Int("offline_queue", len(snap.OfflineQueue)),
		slog.Bool("online", snap.Status.Online),
	)
	return snap, nil
}

// Save rewrites the whole snapshot.
func (s *Store) Save(ctx context.Context, snap bundle.Snapshot) error {
	if err := s.writeJSON(ordersFile, snap.Orders); err != nil {
		return err
	}
	queue := snap.OfflineQueue
	if queue == nil {
		queue = []int64{}
	}
	if err := s.writeJSON(offlineFile, queue); err != nil {
		return err
	}
	return s.writeJSON(statusFile, snap.Status)
}

// Close is a no-op for the file backend.
func (s *Store) Close() error { return nil }

func (s *Store) readJSON(name string, v any) error {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("filestore: read %s: %w", name, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("filestore: parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("filestore: encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("filestore: replace %s: %w", name, err)
	}
	return nil
}
