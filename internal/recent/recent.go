// Package recent persists the recently opened files list. Entries are
// keyed by an opaque id so callers can remove or rename them without
// trusting the path to stay unique.
package recent

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Entry is one recently opened document.
type Entry struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	OpenedAt time.Time `json:"opened_at"`
}

// Store persists the recent list to disk.
type Store interface {
	// Add records a file as most recently opened, deduplicating by
	// path and applying the cap. It returns the entry's id.
	Add(path string) (string, error)
	// List returns entries newest first.
	List() ([]Entry, error)
	Remove(id string) error
	Rename(id, newName string) error
}

// diskStore is the concrete Store that writes to the XDG data
// directory.
type diskStore struct {
	path string // full path to recent.json
	cap  int
}

// NewStore returns a Store backed by the XDG data directory.
// Path: $XDG_DATA_HOME/pagemark/recent.json or
// ~/.local/share/pagemark/recent.json
func NewStore(limit int) (Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if limit < 1 {
		limit = 20
	}
	return &diskStore{path: filepath.Join(dir, "recent.json"), cap: limit}, nil
}

// dataDir returns the pagemark-specific XDG data directory.
func dataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "pagemark"), nil
}

func (d *diskStore) Add(path string) (string, error) {
	entries, err := d.load()
	if err != nil {
		return "", err
	}

	// Dedupe by path, keeping the fresh entry at the front.
	kept := entries[:0]
	for _, e := range entries {
		if e.Path != path {
			kept = append(kept, e)
		}
	}
	entry := Entry{
		ID:       uuid.NewString(),
		Path:     path,
		Name:     filepath.Base(path),
		OpenedAt: time.Now(),
	}
	entries = append([]Entry{entry}, kept...)
	if len(entries) > d.cap {
		entries = entries[:d.cap]
	}
	if err := d.save(entries); err != nil {
		return "", err
	}
	return entry.ID, nil
}

func (d *diskStore) List() ([]Entry, error) {
	return d.load()
}

func (d *diskStore) Remove(id string) error {
	entries, err := d.load()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return d.save(kept)
}

func (d *diskStore) Rename(id, newName string) error {
	entries, err := d.load()
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].ID == id {
			entries[i].Name = newName
		}
	}
	return d.save(entries)
}

func (d *diskStore) load() ([]Entry, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read recent files: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse recent files: %w", err)
	}
	return entries, nil
}

// save marshals entries to JSON and writes them atomically via a temp
// file + os.Rename.
func (d *diskStore) save(entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to persist recent files: %w", err)
	}

	// Write to a temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(d.path), "recent-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist recent files: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist recent files: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist recent files: %w", err)
	}

	if err = os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("failed to persist recent files: %w", err)
	}
	return nil
}
