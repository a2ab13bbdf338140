// Package store implements the durable pieces of a Raft node: the ordered
// log of replicated entries (LogStore) and the small amount of state that
// must survive a restart untouched (PersistentState: currentTerm,
// votedFor). LogStore is modeled on the crash-safe, checksummed append-only
// file format the sibling bundoc module uses for its write-ahead log
// (internal/wal/segment.go), trimmed down to the single-file case a Raft
// log needs; PersistentState is a small JSON file (see meta.go).
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// LogStore is the durable, ordered sequence of log entries, indexed from 1.
// All methods are safe for concurrent use.
type LogStore struct {
	mu      sync.RWMutex
	path    string
	file    *os.File
	entries []wire.LogEntry
	offsets []int64 // offsets[i] is the byte offset where entries[i] begins
}

// OpenLogStore opens (creating if necessary) the log file at path and
// replays it into memory, discarding any torn tail record left by a crash
// mid-append.
func OpenLogStore(path string) (*LogStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create log dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open log file: %v", ErrStorageFailure, err)
	}

	ls := &LogStore{path: path, file: f}
	if err := ls.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return ls, nil
}

// replay reads every complete record from the file into memory. A torn
// final record (the expected shape of a crash mid-append) is discarded and
// the file truncated to the last good offset.
func (ls *LogStore) replay() error {
	data, err := os.ReadFile(ls.path)
	if err != nil {
		return fmt.Errorf("%w: read log file: %v", ErrStorageFailure, err)
	}

	var off int64
	for int(off) < len(data) {
		e, n, err := decode(data[off:])
		if err != nil {
			// Torn or corrupt tail: stop here and drop it.
			break
		}
		ls.offsets = append(ls.offsets, off)
		ls.entries = append(ls.entries, e)
		off += int64(n)
	}

	if int(off) != len(data) {
		if err := ls.file.Truncate(off); err != nil {
			return fmt.Errorf("%w: truncate torn tail: %v", ErrStorageFailure, err)
		}
		if err := ls.file.Sync(); err != nil {
			return fmt.Errorf("%w: sync after truncate: %v", ErrStorageFailure, err)
		}
	}
	return nil
}

// Append appends entries, in order, to the log. It durably flushes before
// returning.
func (ls *LogStore) Append(entries []wire.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()

	info, err := ls.file.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat log file: %v", ErrStorageFailure, err)
	}
	off := info.Size()

	for _, e := range entries {
		buf, err := encode(e)
		if err != nil {
			return err
		}
		if _, err := ls.file.WriteAt(buf, off); err != nil {
			return fmt.Errorf("%w: write entry: %v", ErrStorageFailure, err)
		}
		ls.offsets = append(ls.offsets, off)
		ls.entries = append(ls.entries, e)
		off += int64(len(buf))
	}

	if err := ls.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync log file: %v", ErrStorageFailure, err)
	}
	return nil
}

// TruncateFrom deletes the entry at index and every entry after it. It is a
// no-op if index is past the end of the log. Durable before returning.
func (ls *LogStore) TruncateFrom(index uint64) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	pos := ls.indexPosLocked(index)
	if pos < 0 {
		return nil // index > lastIndex: nothing to do
	}

	if err := ls.file.Truncate(ls.offsets[pos]); err != nil {
		return fmt.Errorf("%w: truncate log file: %v", ErrStorageFailure, err)
	}
	if err := ls.file.Sync(); err != nil {
		return fmt.Errorf("%w: sync after truncate: %v", ErrStorageFailure, err)
	}

	ls.entries = ls.entries[:pos]
	ls.offsets = ls.offsets[:pos]
	return nil
}

// indexPosLocked returns the slice position of the entry with the given
// logical index, or -1 if no such entry is present. Callers must hold mu.
func (ls *LogStore) indexPosLocked(index uint64) int {
	if len(ls.entries) == 0 {
		return -1
	}
	first := ls.entries[0].Index
	last := ls.entries[len(ls.entries)-1].Index
	if index < first || index > last {
		return -1
	}
	return int(index - first)
}

// Get returns the entry at index, if present.
func (ls *LogStore) Get(index uint64) (wire.LogEntry, bool) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	pos := ls.indexPosLocked(index)
	if pos < 0 {
		return wire.LogEntry{}, false
	}
	return ls.entries[pos], true
}

// Range returns entries with index in [lo, hi), sorted by index. Out-of-range
// bounds are clamped; an empty slice is returned if there is no overlap.
func (ls *LogStore) Range(lo, hi uint64) []wire.LogEntry {
	ls.mu.RLock()
	defer ls.mu.RUnlock()

	if len(ls.entries) == 0 || lo >= hi {
		return nil
	}
	first := ls.entries[0].Index
	last := ls.entries[len(ls.entries)-1].Index
	if hi > last+1 {
		hi = last + 1
	}
	if lo < first {
		lo = first
	}
	if lo >= hi {
		return nil
	}

	out := make([]wire.LogEntry, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, ls.entries[i-first])
	}
	return out
}

// LastIndex returns the index of the last entry in the log, or 0 if empty.
func (ls *LogStore) LastIndex() uint64 {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	if len(ls.entries) == 0 {
		return 0
	}
	return ls.entries[len(ls.entries)-1].Index
}

// LastTerm returns the term of the last entry in the log, or 0 if empty.
func (ls *LogStore) LastTerm() uint64 {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	if len(ls.entries) == 0 {
		return 0
	}
	return ls.entries[len(ls.entries)-1].Term
}

// TermAt returns the term of the entry at index. By convention TermAt(0) is
// always 0, and an out-of-range index also returns 0.
func (ls *LogStore) TermAt(index uint64) uint64 {
	if index == 0 {
		return 0
	}
	e, ok := ls.Get(index)
	if !ok {
		return 0
	}
	return e.Term
}

// Close releases the underlying file handle.
func (ls *LogStore) Close() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.file.Close()
}
