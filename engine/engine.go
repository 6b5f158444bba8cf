// Package engine exposes the narrow capability set shared by the two
// storage backends (bitcask and sled) behind a single interface, so the
// network dispatcher and CLI never need to know which one is active.
// Per spec §9, variant dispatch is a single enum-like decision made once
// at startup — not a chain of virtual calls threaded through the
// request path.
package engine

import (
	"errors"
	"fmt"

	"github.com/epokhe/bitcask/core"
)

// ErrKeyNotFound is returned by Remove when the key is not present.
// Both backends surface this sentinel so the dispatcher can map it to
// the protocol's "Key not found" line uniformly.
var ErrKeyNotFound = core.ErrKeyNotFound

// ErrUnknownEngine is returned by Open for any kind other than
// "bitcask" or "sled".
var ErrUnknownEngine = errors.New("unknown storage engine")

// Store is the capability set the rest of this repo depends on: get,
// set, remove, close. Both BitcaskStore and SledStore implement it.
type Store interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Open opens the named engine ("bitcask" or "sled") rooted at dir.
func Open(kind, dir string) (Store, error) {
	switch kind {
	case "bitcask":
		return OpenBitcask(dir)
	case "sled":
		return OpenSled(dir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, kind)
	}
}
