package core

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"
)

// Tombstone is the reserved value written by Remove to mark a deletion
// during replay.
const Tombstone = "!tomb!"

// LogEntry is the on-disk record written once per Set or Remove.
type LogEntry struct {
	Key       string    `msgpack:"key"`
	Val       string    `msgpack:"val"`
	Timestamp time.Time `msgpack:"timestamp"`
}

func (e LogEntry) isTombstone() bool {
	return e.Val == Tombstone
}

// frame layout: [8-byte xxh3 checksum][4-byte LE payload length][msgpack payload]
const frameHeaderLen = 8 + 4

// ErrChecksumMismatch signals that a record's checksum did not match its
// payload; this is a corruption guard layered on top of the
// self-describing msgpack envelope, kept optional via WithVerifyChecksum.
var ErrChecksumMismatch = errors.New("record checksum mismatch")

// encodeEntry serializes e into its on-disk frame.
func encodeEntry(e LogEntry) ([]byte, error) {
	payload, err := msgpack.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal log entry: %w", err)
	}

	buf := make([]byte, frameHeaderLen+len(payload))
	copy(buf[frameHeaderLen:], payload)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(payload)))

	checksum := xxh3.Hash(buf[8:])
	binary.LittleEndian.PutUint64(buf[:8], checksum)

	return buf, nil
}

// decodeEntryAt reads and decodes a single frame starting at off from r.
func decodeEntryAt(r io.ReaderAt, off int64, verifyChecksum bool) (LogEntry, error) {
	var hdr [frameHeaderLen]byte
	if _, err := r.ReadAt(hdr[:], off); err != nil {
		return LogEntry{}, err
	}

	checksum := binary.LittleEndian.Uint64(hdr[:8])
	payloadLen := binary.LittleEndian.Uint32(hdr[8:12])

	buf := make([]byte, frameHeaderLen+int(payloadLen))
	copy(buf, hdr[:])
	if _, err := r.ReadAt(buf[frameHeaderLen:], off+frameHeaderLen); err != nil {
		return LogEntry{}, err
	}

	if verifyChecksum {
		if computed := xxh3.Hash(buf[8:]); computed != checksum {
			return LogEntry{}, fmt.Errorf("%w: expected %x, got %x", ErrChecksumMismatch, checksum, computed)
		}
	}

	var e LogEntry
	if err := msgpack.Unmarshal(buf[frameHeaderLen:], &e); err != nil {
		return LogEntry{}, fmt.Errorf("unmarshal log entry: %w", err)
	}
	return e, nil
}

// scannedEntry is yielded by entryScanner: the LogEntry together with
// the byte offset at which it starts within the segment.
type scannedEntry struct {
	entry LogEntry
	off   int64
}

// entryScanner reads consecutive frames from the start of a segment,
// tolerating a truncated tail (a partial final frame produced by a
// crash mid-append) as end-of-stream: a header or payload cut short by
// the end of the segment ends the scan without error. A complete frame
// that fails its checksum or does not unmarshal is fatal for replay of
// that segment.
type entryScanner struct {
	r              io.ReaderAt
	br             *bufio.Reader
	end            int64
	err            error
	verifyChecksum bool
	cur            scannedEntry
}

func newEntryScanner(r io.ReaderAt, verifyChecksum bool) *entryScanner {
	const maxInt64 = 1<<63 - 1
	sr := io.NewSectionReader(r, 0, maxInt64)
	return &entryScanner{r: r, br: bufio.NewReader(sr), verifyChecksum: verifyChecksum}
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// scan advances to the next record. It returns false at end-of-stream or
// on error; callers should check err afterwards.
func (s *entryScanner) scan() bool {
	if s.err != nil {
		return false
	}

	var hdr [frameHeaderLen]byte
	if _, err := io.ReadFull(s.br, hdr[:]); err != nil {
		if !isEOF(err) {
			s.err = fmt.Errorf("read frame header: %w", err)
		}
		return false
	}

	checksum := binary.LittleEndian.Uint64(hdr[:8])
	payloadLen := binary.LittleEndian.Uint32(hdr[8:12])

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(s.br, payload); err != nil {
		if !isEOF(err) {
			s.err = fmt.Errorf("read frame payload: %w", err)
		}
		// a truncated tail here is tolerated as end-of-stream
		return false
	}

	if s.verifyChecksum {
		buf := make([]byte, 4+len(payload))
		binary.LittleEndian.PutUint32(buf[:4], payloadLen)
		copy(buf[4:], payload)
		if computed := xxh3.Hash(buf); computed != checksum {
			s.err = fmt.Errorf("%w: expected %x, got %x", ErrChecksumMismatch, checksum, computed)
			return false
		}
	}

	var e LogEntry
	if err := msgpack.Unmarshal(payload, &e); err != nil {
		s.err = fmt.Errorf("unmarshal log entry: %w", err)
		return false
	}

	s.cur = scannedEntry{entry: e, off: s.end}
	s.end += int64(frameHeaderLen) + int64(payloadLen)
	return true
}
