// Package core implements the Bitcask log-structured storage engine: a
// segmented append-only log on disk, an in-memory key index, and the
// compaction routine that reclaims space from overwritten keys.
package core

import "errors"

// Sentinel errors surfaced by the engine. Callers should compare with
// errors.Is; I/O and codec failures are wrapped with fmt.Errorf rather
// than mapped onto a sentinel, mirroring how the teacher passes through
// os/io errors with added context instead of re-typing them.
var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrBackendConflict = errors.New("sibling backend already initialized at this root")
	ErrInvalidPath     = errors.New("invalid store path")
	ErrMissingReader   = errors.New("index references a segment with no open reader")
	ErrCompaction      = errors.New("key present in index was absent on disk during compaction")
)
