package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var errInvalidSnapshot = errors.New("invalid index snapshot")

func loadSnapshot(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidSnapshot, err)
	}
	for i, e := range entries {
		if e.DisplayName == "" || e.Path == "" {
			return nil, fmt.Errorf("%w: entry %d is incomplete", errInvalidSnapshot, i)
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// saveSnapshot replaces the file at path through a rename so that a crash
// leaves either the old or the new snapshot.
func saveSnapshot(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".launchd-index-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
