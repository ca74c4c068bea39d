package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/zonegate/zonegate/internal/model"
)

// scopeKey is the uniqueness index key for (account, value, type).
func scopeKey(accountID, value string, typ model.RealmType) []byte {
	return []byte(accountID + "\x00" + strings.ToLower(value) + "\x00" + string(typ))
}

// CreateRealm stores a new realm for an account. The combination of
// (account, value, type) must be unique.
func (s *Store) CreateRealm(realm *model.Realm) error {
	if realm.AccountID == "" || realm.Value == "" {
		return fmt.Errorf("account and value are required")
	}
	switch realm.Type {
	case model.RealmHost, model.RealmSubdomain, model.RealmWildcard:
	default:
		return fmt.Errorf("invalid realm type %q", realm.Type)
	}

	realm.ID = uuid.New().String()
	realm.Value = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(realm.Value), "."))
	realm.CreatedAt = time.Now().UTC()
	realm.UpdatedAt = realm.CreatedAt

	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketAccounts).Get([]byte(realm.AccountID)) == nil {
			return fmt.Errorf("account not found")
		}

		scopes := tx.Bucket(bucketRealmScopes)
		key := scopeKey(realm.AccountID, realm.Value, realm.Type)
		if scopes.Get(key) != nil {
			return fmt.Errorf("realm %s/%s already exists for account", realm.Type, realm.Value)
		}

		data, err := json.Marshal(realm)
		if err != nil {
			return fmt.Errorf("failed to marshal realm: %w", err)
		}
		if err := tx.Bucket(bucketRealms).Put([]byte(realm.ID), data); err != nil {
			return err
		}
		return scopes.Put(key, []byte(realm.ID))
	})
}

// GetRealm returns a realm by ID, or nil if it does not exist.
func (s *Store) GetRealm(id string) (*model.Realm, error) {
	var realm *model.Realm
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketRealms).Get([]byte(id))
		if data == nil {
			return nil
		}
		var r model.Realm
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("failed to unmarshal realm: %w", err)
		}
		realm = &r
		return nil
	})
	return realm, err
}

// UpdateRealm persists changes to an existing realm. Scope fields
// (account, value, type) are immutable after creation.
func (s *Store) UpdateRealm(realm *model.Realm) error {
	realm.UpdatedAt = time.Now().UTC()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRealms)
		data := b.Get([]byte(realm.ID))
		if data == nil {
			return fmt.Errorf("realm not found")
		}
		var old model.Realm
		if err := json.Unmarshal(data, &old); err != nil {
			return fmt.Errorf("failed to unmarshal realm: %w", err)
		}
		if old.AccountID != realm.AccountID || old.Value != realm.Value || old.Type != realm.Type {
			return fmt.Errorf("realm scope is immutable")
		}
		updated, err := json.Marshal(realm)
		if err != nil {
			return fmt.Errorf("failed to marshal realm: %w", err)
		}
		return b.Put([]byte(realm.ID), updated)
	})
}

// DeleteRealm removes a realm and cascades to its tokens.
func (s *Store) DeleteRealm(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return deleteRealmTx(tx, id)
	})
}

func deleteRealmTx(tx *bolt.Tx, id string) error {
	realms := tx.Bucket(bucketRealms)
	data := realms.Get([]byte(id))
	if data == nil {
		return fmt.Errorf("realm not found")
	}
	var realm model.Realm
	if err := json.Unmarshal(data, &realm); err != nil {
		return fmt.Errorf("failed to unmarshal realm: %w", err)
	}

	// Cascade: drop every token bound to this realm.
	tokens := tx.Bucket(bucketTokens)
	byPrefix := tx.Bucket(bucketTokensByPrefix)
	c := tokens.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var tok model.AuthToken
		if err := json.Unmarshal(v, &tok); err != nil {
			continue
		}
		if tok.RealmID != id {
			continue
		}
		if err := byPrefix.Delete([]byte(tok.Prefix)); err != nil {
			return err
		}
		if err := c.Delete(); err != nil {
			return err
		}
	}

	key := scopeKey(realm.AccountID, realm.Value, realm.Type)
	if err := tx.Bucket(bucketRealmScopes).Delete(key); err != nil {
		return err
	}
	return realms.Delete([]byte(id))
}

// ListRealms returns all realms for an account (all accounts if empty).
func (s *Store) ListRealms(accountID string) ([]*model.Realm, error) {
	var realms []*model.Realm
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRealms).ForEach(func(_, v []byte) error {
			var r model.Realm
			if err := json.Unmarshal(v, &r); err != nil {
				return nil
			}
			if accountID != "" && r.AccountID != accountID {
				return nil
			}
			realms = append(realms, &r)
			return nil
		})
	})
	return realms, err
}

func realmIDsForAccount(tx *bolt.Tx, accountID string) ([]string, error) {
	var ids []string
	prefix := []byte(accountID + "\x00")
	c := tx.Bucket(bucketRealmScopes).Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		ids = append(ids, string(v))
	}
	return ids, nil
}
