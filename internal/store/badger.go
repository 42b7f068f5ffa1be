package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/gmsas95/dosewise/internal/medication"
)

// Badger keeps the user record as one JSON value in BadgerDB
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a BadgerDB directory at path
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1).
		WithCompactL0OnClose(true).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(16 << 20)

	return openBadger(opts)
}

// OpenBadgerInMemory opens a BadgerDB that never touches disk
func OpenBadgerInMemory() (*Badger, error) {
	return openBadger(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
}

func openBadger(opts badger.Options) (*Badger, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) GetUser(ctx context.Context) (*medication.User, error) {
	var user *medication.User
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(UserKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			user = &medication.User{}
			return json.Unmarshal(v, user)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read user record: %w", err)
	}
	return user, nil
}

func (b *Badger) SaveUser(ctx context.Context, user *medication.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user record: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(UserKey), data)
	})
}

func (b *Badger) DeleteUser(ctx context.Context) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(UserKey))
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}
