package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var localStorageBucket = []byte("local_storage")

// BoltBackend keeps storage keys in a single bbolt bucket on local disk.
type BoltBackend struct {
	db *bolt.DB
}

// OpenBolt opens (creating if needed) the bbolt file at path.
func OpenBolt(path string) (*BoltBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("repository: bolt path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("repository: create bolt directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("repository: open bolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(localStorageBucket)
		return e
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: create bolt bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

// Close releases the file lock.
func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func (b *BoltBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(localStorageBucket)
		if bucket == nil {
			return nil
		}
		// Values are only valid for the life of the transaction.
		if v := bucket.Get([]byte(key)); v != nil {
			out = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("repository: bolt get: %w", err)
	}
	return out, out != nil, nil
}

func (b *BoltBackend) Put(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, e := tx.CreateBucketIfNotExists(localStorageBucket)
		if e != nil {
			return e
		}
		return bucket.Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("repository: bolt put: %w", err)
	}
	return nil
}

func (b *BoltBackend) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(localStorageBucket)
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("repository: bolt delete: %w", err)
	}
	return nil
}
