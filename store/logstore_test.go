package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

func TestLogStoreAppendGetRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")
	ls, err := OpenLogStore(path)
	require.NoError(t, err)
	defer ls.Close()

	entries := []wire.LogEntry{
		{Term: 1, Index: 1, Kind: wire.EntryNoop},
		{Term: 1, Index: 2, Kind: wire.EntryConfigSet, Key: "a", Value: []byte("1")},
		{Term: 2, Index: 3, Kind: wire.EntryConfigSet, Key: "b", Value: []byte("2")},
	}
	require.NoError(t, ls.Append(entries))

	require.Equal(t, uint64(3), ls.LastIndex())
	require.Equal(t, uint64(2), ls.LastTerm())
	require.Equal(t, uint64(0), ls.TermAt(0))
	require.Equal(t, uint64(1), ls.TermAt(1))
	require.Equal(t, uint64(2), ls.TermAt(3))

	e, ok := ls.Get(2)
	require.True(t, ok)
	require.Equal(t, "a", e.Key)

	_, ok = ls.Get(99)
	require.False(t, ok)

	got := ls.Range(2, 4)
	require.Len(t, got, 2)
	require.Equal(t, uint64(2), got[0].Index)
	require.Equal(t, uint64(3), got[1].Index)
}

func TestLogStoreTruncateFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")
	ls, err := OpenLogStore(path)
	require.NoError(t, err)
	defer ls.Close()

	require.NoError(t, ls.Append([]wire.LogEntry{
		{Term: 1, Index: 1, Kind: wire.EntryNoop},
		{Term: 1, Index: 2, Kind: wire.EntryConfigSet, Key: "a"},
		{Term: 1, Index: 3, Kind: wire.EntryConfigSet, Key: "b"},
	}))

	require.NoError(t, ls.TruncateFrom(2))
	require.Equal(t, uint64(1), ls.LastIndex())
	_, ok := ls.Get(2)
	require.False(t, ok)

	// No-op when index is past the end.
	require.NoError(t, ls.TruncateFrom(50))
	require.Equal(t, uint64(1), ls.LastIndex())
}

func TestLogStoreReplayDiscardsTornTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.bin")
	ls, err := OpenLogStore(path)
	require.NoError(t, err)

	require.NoError(t, ls.Append([]wire.LogEntry{
		{Term: 1, Index: 1, Kind: wire.EntryNoop},
		{Term: 1, Index: 2, Kind: wire.EntryConfigSet, Key: "a", Value: []byte("1")},
	}))
	require.NoError(t, ls.Close())

	// Simulate a crash mid-append: chop the last few bytes off the file,
	// leaving a torn final record.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-3))

	ls2, err := OpenLogStore(path)
	require.NoError(t, err)
	defer ls2.Close()

	require.Equal(t, uint64(1), ls2.LastIndex())
	_, ok := ls2.Get(2)
	require.False(t, ok)
}
