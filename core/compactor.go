package core

import (
	"fmt"
	"os"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

func nanosToTime(n int64) time.Time {
	return time.Unix(0, n)
}

// compactIfNeeded compares the active segment's size against
// maxFileSize and runs a compaction pass if it is at or above
// threshold; otherwise it returns immediately. Mirrors spec §4.5's
// trigger, evaluated after every Set/Remove.
func (e *Engine) compactIfNeeded() error {
	e.mu.Lock()
	due := e.segs.activeSize >= e.maxFileSize
	already := e.compacting
	if due && !already {
		e.compacting = true
	}
	e.mu.Unlock()

	if !due || already {
		return nil
	}

	defer func() {
		e.mu.Lock()
		e.compacting = false
		e.mu.Unlock()
	}()

	return e.compact()
}

// compactionTarget accumulates compacted log entries into a fresh
// segment directory, rolling to a new segment file whenever the current
// one reaches maxFileSize.
type compactionTarget struct {
	dir         string
	maxFileSize int64
	id          int64
	f           *os.File
	size        int64
}

func (ct *compactionTarget) ensureCapacity() error {
	if ct.f != nil && ct.size < ct.maxFileSize {
		return nil
	}
	if ct.f != nil {
		if err := ct.f.Close(); err != nil {
			return fmt.Errorf("close compacted segment %d: %w", ct.id, err)
		}
	}
	ct.id++
	ct.size = 0
	f, err := os.OpenFile(segmentPath(ct.dir, ct.id), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create compacted segment %d: %w", ct.id, err)
	}
	ct.f = f
	return nil
}

func (ct *compactionTarget) write(buf []byte) (segID, offset int64, err error) {
	if err := ct.ensureCapacity(); err != nil {
		return 0, 0, err
	}
	offset = ct.size
	if _, err := ct.f.Write(buf); err != nil {
		return 0, 0, fmt.Errorf("write compacted segment %d: %w", ct.id, err)
	}
	ct.size += int64(len(buf))
	return ct.id, offset, nil
}

func (ct *compactionTarget) close() error {
	if ct.f == nil {
		return nil
	}
	return ct.f.Close()
}

// lookupForCompaction reads a key's current value and timestamp via the
// engine's normal locked read path, per spec §4.5. It returns found=false
// if the key is no longer in the index (removed since the snapshot taken
// before compaction started); a key overwritten since the snapshot is
// found, with its newer value.
func (e *Engine) lookupForCompaction(key string) (val string, tsNanos int64, found bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	loc, ok := e.idx.get(key)
	if !ok {
		return "", 0, false, nil
	}
	entry, err := e.segs.readAt(loc.SegmentID, loc.Offset, e.verifyChecksum)
	if err != nil {
		return "", 0, false, fmt.Errorf("%w: %q indexed at segment %d offset %d: %v", ErrCompaction, key, loc.SegmentID, loc.Offset, err)
	}
	return entry.Val, entry.Timestamp.UnixNano(), true, nil
}

// compact rewrites every live key into a fresh segment directory and
// atomically swaps it in. The rewrite itself runs without holding the
// engine mutex (each key's current value is re-read through the locked
// path); only the final swap is performed under the lock.
func (e *Engine) compact() error {
	e.mu.Lock()
	keys := mapset.NewSet(e.idx.keys()...)
	e.mu.Unlock()

	compactedDir := CompactedLogsDir(e.root)
	if err := os.RemoveAll(compactedDir); err != nil {
		return fmt.Errorf("clear stale %q: %w", compactedDir, err)
	}
	if err := os.MkdirAll(compactedDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %q: %w", compactedDir, err)
	}

	target := &compactionTarget{dir: compactedDir, maxFileSize: e.maxFileSize}
	freshIdx := newIndex()

	for _, key := range keys.ToSlice() {
		val, tsNanos, found, err := e.lookupForCompaction(key)
		if err != nil {
			_ = target.close()
			return err
		}
		if !found {
			// removed since the snapshot; there is nothing to rewrite.
			continue
		}

		ts := nanosToTime(tsNanos)
		buf, err := encodeEntry(LogEntry{Key: key, Val: val, Timestamp: ts})
		if err != nil {
			_ = target.close()
			return err
		}

		segID, offset, err := target.write(buf)
		if err != nil {
			_ = target.close()
			return err
		}
		freshIdx.insert(key, IndexEntry{SegmentID: segID, Offset: offset, Timestamp: ts})
	}

	if err := target.close(); err != nil {
		return err
	}
	lastCompactedID := target.id

	return e.commitCompaction(compactedDir, freshIdx, lastCompactedID)
}

// commitCompaction performs the atomic directory swap and installs the
// fresh index. The commit point is the rename of compacted-logs/ into
// place: a crash before it leaves the old logs/ untouched (besides
// having been staged aside), a crash after it is recovered by
// recoverCompaction on the next Open.
//
// Between the rewrite loop in compact() and this commit, a concurrent
// Remove can delete a key that was already copied into the compacted
// segment, so freshIdx may still point at a value the live index no
// longer considers live. resurrected computes exactly that set —
// rewritten keys absent from the current live index — via a set
// difference, and those entries are dropped from freshIdx before it is
// installed, so compaction never resurrects a key deleted during its
// own run.
func (e *Engine) commitCompaction(compactedDir string, freshIdx *index, lastCompactedID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	liveNow := mapset.NewSet(e.idx.keys()...)
	rewritten := mapset.NewSet(freshIdx.keys()...)
	for _, key := range rewritten.Difference(liveNow).ToSlice() {
		freshIdx.remove(key)
	}

	if err := e.segs.resetReaders(); err != nil {
		return fmt.Errorf("release old segment readers: %w", err)
	}
	if e.segs.writer != nil {
		if err := e.segs.writer.Close(); err != nil {
			return fmt.Errorf("close active segment before swap: %w", err)
		}
		e.segs.writer = nil
	}

	logsDir := e.segs.dir
	old := oldLogsDir(e.root)

	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clear stale %q: %w", old, err)
	}
	if err := os.Rename(logsDir, old); err != nil {
		return fmt.Errorf("stage old logs aside: %w", err)
	}
	if err := os.Rename(compactedDir, logsDir); err != nil {
		return fmt.Errorf("commit compacted logs: %w", err)
	}
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("remove staged-aside old logs: %w", err)
	}

	e.idx = freshIdx
	if err := e.segs.rollover(lastCompactedID + 1); err != nil {
		return fmt.Errorf("roll active segment past compacted range: %w", err)
	}

	return nil
}
