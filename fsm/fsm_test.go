package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

func TestKVApplyConfigSet(t *testing.T) {
	k := New()
	k.Apply(wire.LogEntry{Term: 1, Index: 1, Kind: wire.EntryNoop})
	k.Apply(wire.LogEntry{Term: 1, Index: 2, Kind: wire.EntryConfigSet, Key: "cluster.name", Value: []byte("x")})

	v, ok := k.Get("cluster.name")
	require.True(t, ok)
	require.Equal(t, []byte("x"), v)
	require.Equal(t, 1, k.Len())

	_, ok = k.Get("missing")
	require.False(t, ok)
}

func TestKVApplyLaterEntryOverwritesKey(t *testing.T) {
	k := New()
	k.Apply(wire.LogEntry{Index: 1, Kind: wire.EntryConfigSet, Key: "a", Value: []byte("1")})
	k.Apply(wire.LogEntry{Index: 2, Kind: wire.EntryConfigSet, Key: "a", Value: []byte("2")})

	v, ok := k.Get("a")
	require.True(t, ok)
	require.Equal(t, []byte("2"), v)
	require.Equal(t, 1, k.Len())
}
