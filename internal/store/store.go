// Package store provides bbolt-backed persistence for accounts, realms,
// auth tokens and managed domain roots.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketAccounts       = []byte("accounts")
	bucketAccountsByName = []byte("accounts_by_username")
	bucketRealms         = []byte("realms")
	bucketRealmScopes    = []byte("realm_scopes")
	bucketTokens         = []byte("tokens")
	bucketTokensByPrefix = []byte("tokens_by_prefix")
	bucketRoots          = []byte("domain_roots")
	bucketLastApplied    = []byte("last_applied")
)

// Store wraps the bbolt database holding all credential and permission state.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the store at path and ensures all buckets exist.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketAccounts, bucketAccountsByName,
			bucketRealms, bucketRealmScopes,
			bucketTokens, bucketTokensByPrefix,
			bucketRoots, bucketLastApplied,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// DB exposes the underlying bolt handle so other components (the rate
// limiter) can share the same file.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
