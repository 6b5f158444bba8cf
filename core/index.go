package core

import "time"

// IndexEntry locates the most recent live record for a key.
type IndexEntry struct {
	SegmentID int64
	Offset    int64
	Timestamp time.Time
}

// index is the in-memory key -> location map. Keys are unique;
// insertion order carries no meaning.
type index struct {
	m map[string]IndexEntry
}

func newIndex() *index {
	return &index{m: make(map[string]IndexEntry)}
}

func (idx *index) insert(key string, e IndexEntry) {
	idx.m[key] = e
}

// remove deletes key from the index, returning the prior entry and
// whether it existed.
func (idx *index) remove(key string) (IndexEntry, bool) {
	prev, ok := idx.m[key]
	if ok {
		delete(idx.m, key)
	}
	return prev, ok
}

func (idx *index) get(key string) (IndexEntry, bool) {
	e, ok := idx.m[key]
	return e, ok
}

// keys returns a snapshot of every live key. The slice is owned by the
// caller; mutating the index afterwards does not affect it.
func (idx *index) keys() []string {
	out := make([]string, 0, len(idx.m))
	for k := range idx.m {
		out = append(out, k)
	}
	return out
}

func (idx *index) len() int {
	return len(idx.m)
}

// applyReplayedEntry folds a scanned record into the index under the
// recency rule (I2): install if absent (unless a tombstone), overwrite
// on a strictly-newer-or-equal timestamp, skip on a strictly older one.
// Ties are broken in favor of the later-scanned record, matching the
// teacher's stated rationale that tie events are vanishingly rare under
// monotonic clocks.
func (idx *index) applyReplayedEntry(e LogEntry, loc IndexEntry) {
	existing, ok := idx.get(e.Key)
	if ok && e.Timestamp.Before(existing.Timestamp) {
		return
	}

	if e.isTombstone() {
		idx.remove(e.Key)
		return
	}
	idx.insert(e.Key, loc)
}
