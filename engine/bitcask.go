package engine

import "github.com/epokhe/bitcask/core"

// BitcaskStore adapts core.Engine to the Store interface.
type BitcaskStore struct {
	eng *core.Engine
}

// OpenBitcask opens a bitcask-backed Store rooted at dir.
func OpenBitcask(dir string, opts ...core.Option) (*BitcaskStore, error) {
	eng, err := core.Open(dir, opts...)
	if err != nil {
		return nil, err
	}
	return &BitcaskStore{eng: eng}, nil
}

func (s *BitcaskStore) Get(key string) (string, bool, error) { return s.eng.Get(key) }
func (s *BitcaskStore) Set(key, value string) error          { return s.eng.Set(key, value) }
func (s *BitcaskStore) Remove(key string) error              { return s.eng.Remove(key) }
func (s *BitcaskStore) Close() error                         { return s.eng.Close() }
