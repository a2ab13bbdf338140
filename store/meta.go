package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// metaFile is the on-disk shape of PersistentState's non-log fields, mirroring
// bundoc's MetadataManager: a small JSON file rewritten in full on every
// change and fsynced before the call that depends on it returns.
type metaFile struct {
	CurrentTerm uint64 `json:"current_term"`
	VotedFor    string `json:"voted_for"`
}

// PersistentState holds the fields a Raft node must never lose or
// misremember across a restart: currentTerm, votedFor, and (by composition)
// the log itself.
type PersistentState struct {
	mu   sync.Mutex
	path string
	meta metaFile
	Log  *LogStore
}

// OpenPersistentState opens the meta file and log store rooted at dir,
// creating them if they don't exist, and replaying whatever is on disk.
func OpenPersistentState(dir string) (*PersistentState, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create state dir: %v", ErrStorageFailure, err)
	}

	ps := &PersistentState{path: filepath.Join(dir, "meta.json")}
	if err := ps.load(); err != nil {
		return nil, err
	}

	log, err := OpenLogStore(filepath.Join(dir, "log.bin"))
	if err != nil {
		return nil, err
	}
	ps.Log = log
	return ps, nil
}

func (ps *PersistentState) load() error {
	data, err := os.ReadFile(ps.path)
	if os.IsNotExist(err) {
		return nil // fresh node: currentTerm=0, votedFor=""
	}
	if err != nil {
		return fmt.Errorf("%w: read meta file: %v", ErrStorageFailure, err)
	}
	if err := json.Unmarshal(data, &ps.meta); err != nil {
		return fmt.Errorf("%w: corrupt meta file: %v", ErrStorageFailure, err)
	}
	return nil
}

// saveLocked writes meta to disk and fsyncs it. Callers must hold ps.mu.
func (ps *PersistentState) saveLocked() error {
	data, err := json.Marshal(ps.meta)
	if err != nil {
		return fmt.Errorf("store: marshal meta: %w", err)
	}

	tmp := ps.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open meta tmp file: %v", ErrStorageFailure, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("%w: write meta tmp file: %v", ErrStorageFailure, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("%w: sync meta tmp file: %v", ErrStorageFailure, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close meta tmp file: %v", ErrStorageFailure, err)
	}
	if err := os.Rename(tmp, ps.path); err != nil {
		return fmt.Errorf("%w: rename meta file: %v", ErrStorageFailure, err)
	}
	return nil
}

// CurrentTerm returns the node's current term.
func (ps *PersistentState) CurrentTerm() uint64 {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.meta.CurrentTerm
}

// VotedFor returns who this node voted for in the current term, or "" if it
// hasn't voted.
func (ps *PersistentState) VotedFor() string {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.meta.VotedFor
}

// SetTerm atomically advances currentTerm to t and clears votedFor. It is a
// no-op (but still returns nil) if t == currentTerm already, so callers can
// call it idempotently while holding the node's own lock.
func (ps *PersistentState) SetTerm(t uint64) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if t == ps.meta.CurrentTerm {
		return nil
	}
	ps.meta.CurrentTerm = t
	ps.meta.VotedFor = ""
	return ps.saveLocked()
}

// RecordVote durably sets votedFor to peer for the current term.
func (ps *PersistentState) RecordVote(peer string) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.meta.VotedFor = peer
	return ps.saveLocked()
}

// Close releases the underlying log store file handle.
func (ps *PersistentState) Close() error {
	return ps.Log.Close()
}
