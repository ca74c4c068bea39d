package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/zonegate/zonegate/internal/model"
)

// PutRoot creates or replaces a managed domain root, keyed by domain.
func (s *Store) PutRoot(root *model.DomainRoot) error {
	root.Domain = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(root.Domain), "."))
	if root.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if root.ID == "" {
		root.ID = uuid.New().String()
		root.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(root)
		if err != nil {
			return fmt.Errorf("failed to marshal domain root: %w", err)
		}
		return tx.Bucket(bucketRoots).Put([]byte(root.Domain), data)
	})
}

// GetRoot returns the root for an exact domain, or nil.
func (s *Store) GetRoot(domain string) (*model.DomainRoot, error) {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	var root *model.DomainRoot
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRoots).Get([]byte(domain))
		if data == nil {
			return nil
		}
		var r model.DomainRoot
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("failed to unmarshal domain root: %w", err)
		}
		root = &r
		return nil
	})
	return root, err
}

// RootFor walks a target domain up label by label and returns the
// longest managed root it falls under, or nil if none matches.
func (s *Store) RootFor(domain string) (*model.DomainRoot, error) {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	for domain != "" {
		root, err := s.GetRoot(domain)
		if err != nil {
			return nil, err
		}
		if root != nil {
			return root, nil
		}
		idx := strings.IndexByte(domain, '.')
		if idx < 0 {
			break
		}
		domain = domain[idx+1:]
	}
	return nil, nil
}

// DeleteRoot removes a managed domain root.
func (s *Store) DeleteRoot(domain string) error {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRoots)
		if b.Get([]byte(domain)) == nil {
			return fmt.Errorf("domain root not found")
		}
		return b.Delete([]byte(domain))
	})
}

// ListRoots returns all managed domain roots ordered by domain.
func (s *Store) ListRoots() ([]*model.DomainRoot, error) {
	var roots []*model.DomainRoot
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRoots).ForEach(func(_, v []byte) error {
			var r model.DomainRoot
			if err := json.Unmarshal(v, &r); err != nil {
				return nil
			}
			roots = append(roots, &r)
			return nil
		})
	})
	return roots, err
}
