package store

import (
	"strings"

	bolt "go.etcd.io/bbolt"
)

// lastAppliedKey identifies the last value pushed for (domain, record type).
func lastAppliedKey(domain, recordType string) []byte {
	return []byte(strings.ToLower(domain) + "|" + recordType)
}

// LastApplied returns the last record value applied for a domain and
// record type, or "" when nothing has been applied yet. Used to detect
// no-change dynamic DNS updates without a backend round trip.
func (s *Store) LastApplied(domain, recordType string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketLastApplied).Get(lastAppliedKey(domain, recordType))
		if v != nil {
			value = string(v)
		}
		return nil
	})
	return value, err
}

// SetLastApplied records the value just applied for (domain, record type).
func (s *Store) SetLastApplied(domain, recordType, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketLastApplied).Put(lastAppliedKey(domain, recordType), []byte(value))
	})
}
