package state

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const snapshotName = "backup.json"

// snapshotFile is the on-disk layout: one object keyed by category name,
// each mapping room identifier to its last payload.
type snapshotFile map[Category]map[string]json.RawMessage

// Saver persists the store to a single snapshot file. Publishes mark the
// store dirty; a periodic flush collapses bursts into one write per
// interval, and a final flush runs on shutdown.
type Saver struct {
	store    *Store
	dir      string
	path     string
	interval time.Duration
}

func NewSaver(store *Store, dir string, interval time.Duration) *Saver {
	return &Saver{
		store:    store,
		dir:      dir,
		path:     filepath.Join(dir, snapshotName),
		interval: interval,
	}
}

// Load restores the store from the snapshot file. A missing file leaves
// the store empty; a malformed file is logged and likewise falls back to
// an empty store rather than failing startup.
func (s *Saver) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Error("snapshot load failed", "path", s.path, "error", err)
		}
		return
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		slog.Error("snapshot malformed, starting empty", "path", s.path, "error", err)
		return
	}

	rooms := make(map[string]map[Category]json.RawMessage)
	for _, cat := range categories {
		for room, payload := range file[cat] {
			r, ok := rooms[room]
			if !ok {
				r = make(map[Category]json.RawMessage)
				rooms[room] = r
			}
			r[cat] = payload
		}
	}
	s.store.restore(rooms)
	slog.Info("snapshot loaded", "path", s.path)
}

// Run flushes the store on every interval tick while dirty, and once more
// when ctx is cancelled.
func (s *Saver) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-ctx.Done():
			s.Flush()
			return
		}
	}
}

// Flush writes the snapshot file if the store is dirty. It holds the store
// lock across marshal and write so a flush never observes a half-applied
// publish. A failed write leaves the dirty flag set so the next tick
// retries.
func (s *Saver) Flush() error {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()

	if !s.store.dirty {
		return nil
	}

	out := make(snapshotFile, len(categories))
	for _, cat := range categories {
		out[cat] = make(map[string]json.RawMessage)
	}
	for room, byCat := range s.store.rooms {
		for cat, payload := range byCat {
			out[cat][room] = payload
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		slog.Error("snapshot marshal failed", "error", err)
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		slog.Error("snapshot dir create failed", "dir", s.dir, "error", err)
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		slog.Error("snapshot save failed", "path", s.path, "error", err)
		return err
	}

	s.store.dirty = false
	slog.Debug("snapshot saved", "path", s.path)
	return nil
}
