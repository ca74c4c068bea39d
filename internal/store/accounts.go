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

// CreateAccount stores a new account. Username and email must be unique.
func (s *Store) CreateAccount(username, email, passwordHash string) (*model.Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	acc := &model.Account{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		Approved:     false,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		byName := tx.Bucket(bucketAccountsByName)
		if byName.Get([]byte(username)) != nil {
			return fmt.Errorf("username %q already exists", username)
		}

		data, err := json.Marshal(acc)
		if err != nil {
			return fmt.Errorf("failed to marshal account: %w", err)
		}
		if err := tx.Bucket(bucketAccounts).Put([]byte(acc.ID), data); err != nil {
			return err
		}
		return byName.Put([]byte(username), []byte(acc.ID))
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// GetAccount returns an account by ID, or nil if it does not exist.
func (s *Store) GetAccount(id string) (*model.Account, error) {
	var acc *model.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketAccounts).Get([]byte(id))
		if data == nil {
			return nil
		}
		var a model.Account
		if err := json.Unmarshal(data, &a); err != nil {
			return fmt.Errorf("failed to unmarshal account: %w", err)
		}
		acc = &a
		return nil
	})
	return acc, err
}

// GetAccountByUsername returns an account by username, or nil if unknown.
func (s *Store) GetAccountByUsername(username string) (*model.Account, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAccountsByName).Get([]byte(username))
		if v != nil {
			id = string(v)
		}
		return nil
	})
	if err != nil || id == "" {
		return nil, err
	}
	return s.GetAccount(id)
}

// UpdateAccount persists changes to an existing account.
func (s *Store) UpdateAccount(acc *model.Account) error {
	acc.UpdatedAt = time.Now().UTC()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		if b.Get([]byte(acc.ID)) == nil {
			return fmt.Errorf("account not found")
		}
		data, err := json.Marshal(acc)
		if err != nil {
			return fmt.Errorf("failed to marshal account: %w", err)
		}
		return b.Put([]byte(acc.ID), data)
	})
}

// DeleteAccount removes an account and cascades to its realms and tokens.
func (s *Store) DeleteAccount(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(bucketAccounts)
		data := accounts.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("account not found")
		}
		var acc model.Account
		if err := json.Unmarshal(data, &acc); err != nil {
			return fmt.Errorf("failed to unmarshal account: %w", err)
		}

		realmIDs, err := realmIDsForAccount(tx, id)
		if err != nil {
			return err
		}
		for _, realmID := range realmIDs {
			if err := deleteRealmTx(tx, realmID); err != nil {
				return err
			}
		}

		if err := tx.Bucket(bucketAccountsByName).Delete([]byte(acc.Username)); err != nil {
			return err
		}
		return accounts.Delete([]byte(id))
	})
}

// ListAccounts returns all accounts ordered by username.
func (s *Store) ListAccounts() ([]*model.Account, error) {
	var accounts []*model.Account
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccountsByName).ForEach(func(_, id []byte) error {
			data := tx.Bucket(bucketAccounts).Get(id)
			if data == nil {
				return nil
			}
			var a model.Account
			if err := json.Unmarshal(data, &a); err != nil {
				return nil
			}
			accounts = append(accounts, &a)
			return nil
		})
	})
	return accounts, err
}
