// Package runindex counts how often each entry was launched.
package runindex

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// DBFile is the database file name inside the cache directory.
	DBFile        = "launchd.run-index"
	bucketName    = "run_index"
	dbPermissions = 0600
)

// RunIndex manages the launch counters using bbolt DB.
type RunIndex struct {
	mu sync.Mutex
	db *bbolt.DB
}

// NewRunIndex opens the run index in the user cache directory.
func NewRunIndex() (*RunIndex, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return NewRunIndexWithCacheDir(filepath.Join(cacheDir, "ade"))
}

// NewRunIndexWithCacheDir creates or opens the database in dir.
func NewRunIndexWithCacheDir(dir string) (*RunIndex, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(dir, DBFile), dbPermissions, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketName)); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &RunIndex{db: db}, nil
}

// Increment increases the launch count for path.
func (ri *RunIndex) Increment(path string) error {
	return ri.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		var count uint64
		if val := b.Get([]byte(path)); len(val) == 8 {
			count = binary.BigEndian.Uint64(val)
		}
		count++

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, count)
		return b.Put([]byte(path), buf)
	})
}

// GetFrequencies returns the launch count of every path, 0 for paths never
// launched.
func (ri *RunIndex) GetFrequencies(paths []string) map[string]uint64 {
	frequencies := make(map[string]uint64, len(paths))
	ri.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		for _, path := range paths {
			frequencies[path] = 0
			if b == nil {
				continue
			}
			if val := b.Get([]byte(path)); len(val) == 8 {
				frequencies[path] = binary.BigEndian.Uint64(val)
			}
		}
		return nil
	})
	return frequencies
}

// Close closes the database. Further calls are no-ops.
func (ri *RunIndex) Close() error {
	ri.mu.Lock()
	defer ri.mu.Unlock()
	if ri.db == nil {
		return nil
	}
	err := ri.db.Close()
	ri.db = nil
	return err
}
