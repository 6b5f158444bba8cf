package core

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// Engine is the Bitcask storage engine: get/set/remove over a segmented
// append-only log, backed by an in-memory index and a compactor. All
// mutable state (the active writer, the reader pool, the index, and the
// active segment id) is guarded by a single coarse mutex, per spec §5 —
// fine-grained sharding is not worth the complexity given compaction,
// not per-key contention, dominates this workload's cost.
type Engine struct {
	root string
	segs *segmentSet
	idx  *index

	mu sync.Mutex

	maxFileSize    int64
	syncOnWrite    bool
	verifyChecksum bool
	now            func() time.Time

	compacting bool // guards against overlapping compaction runs
}

// Open opens (or creates) a Bitcask store rooted at root. It fails if
// root has a file extension, or if the sibling backend's directory
// exists under root (I4).
func Open(root string, opts ...Option) (*Engine, error) {
	if filepath.Ext(root) != "" {
		return nil, fmt.Errorf("%w: %q has a file extension", ErrInvalidPath, root)
	}

	if info, err := os.Stat(SledStoreDir(root)); err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: sled-store present under %q", ErrBackendConflict, root)
	}

	e := &Engine{
		root:           root,
		idx:            newIndex(),
		maxFileSize:    defaultMaxFileSize,
		verifyChecksum: true,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := recoverCompaction(root); err != nil {
		return nil, fmt.Errorf("recover interrupted compaction: %w", err)
	}

	logsDir := LogsDir(root)
	e.segs = newSegmentSet(logsDir)

	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", logsDir, err)
	}

	ids, err := discoverSegmentIDs(logsDir)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		e.segs.currentID = 1
		if _, err := e.segs.activeWriter(); err != nil {
			return nil, err
		}
		return e, nil
	}

	e.segs.currentID = slices.Max(ids)

	for _, id := range ids {
		entries, err := e.segs.scan(id, e.verifyChecksum)
		if err != nil {
			return nil, fmt.Errorf("replay segment %d: %w", id, err)
		}
		for _, se := range entries {
			e.idx.applyReplayedEntry(se.entry, IndexEntry{
				SegmentID: id,
				Offset:    se.off,
				Timestamp: se.entry.Timestamp,
			})
		}
	}

	if info, err := os.Stat(segmentPath(logsDir, e.segs.currentID)); err == nil {
		e.segs.setActiveSize(info.Size())
	}

	return e, nil
}

// recoverCompaction resolves an interrupted compaction swap, covering
// a crash at any of the three steps core/compactor.go's commit performs
// (rename logs/ aside, rename compacted-logs/ into place, remove the
// aside copy). A crash after the commit rename is finished by removing
// the aside copy; a crash before it is rolled back by restoring the
// aside copy as logs/. Any leftover compacted-logs/ is discarded.
// See spec §9 and SPEC_FULL.md §5.
func recoverCompaction(root string) error {
	logs := LogsDir(root)
	old := oldLogsDir(root)
	compacted := CompactedLogsDir(root)

	_, logsErr := os.Stat(logs)
	_, oldErr := os.Stat(old)
	_, compactedErr := os.Stat(compacted)

	logsExists := logsErr == nil
	oldExists := oldErr == nil
	compactedExists := compactedErr == nil

	switch {
	case logsExists && oldExists:
		// crash after the commit rename but before removing the aside copy.
		if err := os.RemoveAll(old); err != nil {
			return fmt.Errorf("remove stale %q: %w", old, err)
		}
	case !logsExists && oldExists:
		// crash after renaming logs/ aside but before the commit rename.
		if err := os.Rename(old, logs); err != nil {
			return fmt.Errorf("restore %q from %q: %w", logs, old, err)
		}
	}

	// A compacted-logs/ directory left over at this point never reached
	// its commit rename; it is stale input for a compaction that will
	// simply run again later.
	if compactedExists {
		if err := os.RemoveAll(compacted); err != nil {
			return fmt.Errorf("remove stale %q: %w", compacted, err)
		}
	}

	return nil
}

// Close releases every open file handle. It does not error on repeated
// calls to readers/writer that are already nil.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.segs.closeAll()
}

// Get returns the value stored for key, or ok=false if the key is
// absent or has been removed.
func (e *Engine) Get(key string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loc, ok := e.idx.get(key)
	if !ok {
		return "", false, nil
	}

	entry, err := e.segs.readAt(loc.SegmentID, loc.Offset, e.verifyChecksum)
	if err != nil {
		return "", false, fmt.Errorf("get %q at segment %d offset %d: %w", key, loc.SegmentID, loc.Offset, err)
	}
	if entry.isTombstone() {
		return "", false, nil
	}
	return entry.Val, true, nil
}

// Set stores value under key, durably, then triggers the post-write
// compaction check.
func (e *Engine) Set(key, value string) error {
	if err := e.appendEntry(key, value); err != nil {
		return err
	}
	return e.compactIfNeeded()
}

// Remove deletes key. It fails with ErrKeyNotFound if the key is not
// currently present.
func (e *Engine) Remove(key string) error {
	e.mu.Lock()
	if _, ok := e.idx.get(key); !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	e.idx.remove(key)
	e.mu.Unlock()

	if err := e.appendEntry(key, Tombstone); err != nil {
		return err
	}
	return e.compactIfNeeded()
}

// appendEntry serializes and appends a LogEntry for key/val, then
// updates the index to point at it (unless val is the tombstone, in
// which case the index entry for key has already been evicted by the
// caller). The timestamp is assigned after the lock is held so that
// lock-acquisition order and timestamp order agree on this host, per
// spec §5.
func (e *Engine) appendEntry(key, val string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts := e.now()
	buf, err := encodeEntry(LogEntry{Key: key, Val: val, Timestamp: ts})
	if err != nil {
		return err
	}

	off, err := e.segs.append(buf, e.syncOnWrite)
	if err != nil {
		return err
	}

	if val != Tombstone {
		e.idx.insert(key, IndexEntry{SegmentID: e.segs.currentID, Offset: off, Timestamp: ts})
	}
	return nil
}

// DiskUsage returns the total size in bytes of every segment file under
// logs/.
func (e *Engine) DiskUsage() (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := os.ReadDir(e.segs.dir)
	if err != nil {
		return 0, fmt.Errorf("read logs dir: %w", err)
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := parseSegmentID(entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return 0, fmt.Errorf("stat %q: %w", entry.Name(), err)
		}
		total += info.Size()
	}
	return total, nil
}
