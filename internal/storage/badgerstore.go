package storage

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"
)

// BadgerStore persists mappings in an embedded badger database, one key
// per extension. Badger transactions give the same all-or-nothing
// replacement semantics as the file backend's rename.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at path
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Load reads the mapping for an extension
func (s *BadgerStore) Load(extensionID string) ([]byte, bool, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(extensionID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read mapping: %w", err)
	}
	return data, true, nil
}

// Save replaces the mapping in one transaction
func (s *BadgerStore) Save(extensionID string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(extensionID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}
	return nil
}

// Delete removes the mapping
func (s *BadgerStore) Delete(extensionID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(extensionID))
	})
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	return nil
}

// Close closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) key(extensionID string) []byte {
	return []byte("storage/" + extensionID)
}
