package engine

import (
	"errors"
	"fmt"
	"os"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/epokhe/bitcask/core"
)

// SledStore is the sibling embedded-store backend: a single badger LSM
// instance rooted at "<dir>/sled-store", standing in for the sled-backed
// engine the original system could also select at startup. It exists
// so the exclusivity rule (I4) has two real backends to guard between,
// not just a stub.
type SledStore struct {
	db *badger.DB
}

// OpenSled opens a sled-backed Store rooted at dir. It refuses to open
// if a bitcask-store directory is already present under dir (I4,
// enforced from both directions).
func OpenSled(dir string) (*SledStore, error) {
	if info, err := os.Stat(core.BitcaskStoreDir(dir)); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: bitcask-store present under %q", core.ErrBackendConflict, dir)
	}

	storeDir := core.SledStoreDir(dir)
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", storeDir, err)
	}

	opts := badger.DefaultOptions(storeDir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open sled store: %w", err)
	}
	return &SledStore{db: db}, nil
}

// Get returns the value for key, or ok=false if absent.
func (s *SledStore) Get(key string) (string, bool, error) {
	var val string
	found := true

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		val = string(raw)
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return val, found, nil
}

// Set stores value under key.
func (s *SledStore) Set(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. It fails with core.ErrKeyNotFound if the key is
// not currently present.
func (s *SledStore) Remove(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %q", core.ErrKeyNotFound, key)
			}
			return err
		}
		return txn.Delete([]byte(key))
	})
	return err
}

// Close releases the underlying badger instance.
func (s *SledStore) Close() error {
	return s.db.Close()
}
