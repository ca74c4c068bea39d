package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/zonegate/zonegate/internal/model"
)

// CreateToken stores a new auth token record. The caller generates the
// secret and passes only its hash; the prefix must be globally unique.
func (s *Store) CreateToken(tok *model.AuthToken) error {
	if tok.RealmID == "" || tok.Prefix == "" || tok.SecretHash == "" {
		return fmt.Errorf("realm, prefix and secret hash are required")
	}

	tok.ID = uuid.New().String()
	tok.Active = true
	tok.CreatedAt = time.Now().UTC()

	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketRealms).Get([]byte(tok.RealmID)) == nil {
			return fmt.Errorf("realm not found")
		}

		byPrefix := tx.Bucket(bucketTokensByPrefix)
		if byPrefix.Get([]byte(tok.Prefix)) != nil {
			return fmt.Errorf("token prefix collision")
		}

		data, err := json.Marshal(tok)
		if err != nil {
			return fmt.Errorf("failed to marshal token: %w", err)
		}
		if err := tx.Bucket(bucketTokens).Put([]byte(tok.ID), data); err != nil {
			return err
		}
		return byPrefix.Put([]byte(tok.Prefix), []byte(tok.ID))
	})
}

// GetToken returns a token by ID, or nil if it does not exist.
func (s *Store) GetToken(id string) (*model.AuthToken, error) {
	var tok *model.AuthToken
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketTokens).Get([]byte(id))
		if data == nil {
			return nil
		}
		var t model.AuthToken
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("failed to unmarshal token: %w", err)
		}
		tok = &t
		return nil
	})
	return tok, err
}

// GetTokenByPrefix is the single indexed lookup used during
// authentication. Returns nil if no token carries the prefix.
func (s *Store) GetTokenByPrefix(prefix string) (*model.AuthToken, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTokensByPrefix).Get([]byte(prefix))
		if v != nil {
			id = string(v)
		}
		return nil
	})
	if err != nil || id == "" {
		return nil, err
	}
	return s.GetToken(id)
}

// TouchToken updates last_used_at. Callers treat this as best-effort;
// it never sits on the authentication decision path.
func (s *Store) TouchToken(id string, when time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokens)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("token not found")
		}
		var tok model.AuthToken
		if err := json.Unmarshal(data, &tok); err != nil {
			return fmt.Errorf("failed to unmarshal token: %w", err)
		}
		when = when.UTC()
		tok.LastUsedAt = &when
		updated, err := json.Marshal(&tok)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}

// RevokeToken flips a token inactive without deleting it.
func (s *Store) RevokeToken(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokens)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("token not found")
		}
		var tok model.AuthToken
		if err := json.Unmarshal(data, &tok); err != nil {
			return fmt.Errorf("failed to unmarshal token: %w", err)
		}
		tok.Active = false
		updated, err := json.Marshal(&tok)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}

// DeleteToken permanently removes a token.
func (s *Store) DeleteToken(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokens)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("token not found")
		}
		var tok model.AuthToken
		if err := json.Unmarshal(data, &tok); err != nil {
			return fmt.Errorf("failed to unmarshal token: %w", err)
		}
		if err := tx.Bucket(bucketTokensByPrefix).Delete([]byte(tok.Prefix)); err != nil {
			return err
		}
		return b.Delete([]byte(tok.ID))
	})
}

// ListTokens returns all tokens for a realm (all realms if empty).
func (s *Store) ListTokens(realmID string) ([]*model.AuthToken, error) {
	var tokens []*model.AuthToken
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTokens).ForEach(func(_, v []byte) error {
			var t model.AuthToken
			if err := json.Unmarshal(v, &t); err != nil {
				return nil
			}
			if realmID != "" && t.RealmID != realmID {
				return nil
			}
			tokens = append(tokens, &t)
			return nil
		})
	})
	return tokens, err
}
