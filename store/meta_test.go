package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPersistentStateSetTermClearsVote(t *testing.T) {
	ps, err := OpenPersistentState(t.TempDir())
	require.NoError(t, err)
	defer ps.Close()

	require.Equal(t, uint64(0), ps.CurrentTerm())
	require.Equal(t, "", ps.VotedFor())

	require.NoError(t, ps.RecordVote("nodeA"))
	require.Equal(t, "nodeA", ps.VotedFor())

	require.NoError(t, ps.SetTerm(5))
	require.Equal(t, uint64(5), ps.CurrentTerm())
	require.Equal(t, "", ps.VotedFor(), "advancing the term must clear votedFor")

	// Setting the same term again is a no-op, not a vote-clearing event.
	require.NoError(t, ps.RecordVote("nodeB"))
	require.NoError(t, ps.SetTerm(5))
	require.Equal(t, "nodeB", ps.VotedFor())
}

func TestPersistentStateSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	ps, err := OpenPersistentState(dir)
	require.NoError(t, err)
	require.NoError(t, ps.SetTerm(3))
	require.NoError(t, ps.RecordVote("nodeC"))
	require.NoError(t, ps.Close())

	ps2, err := OpenPersistentState(dir)
	require.NoError(t, err)
	defer ps2.Close()

	require.Equal(t, uint64(3), ps2.CurrentTerm())
	require.Equal(t, "nodeC", ps2.VotedFor())
}
