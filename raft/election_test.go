package raft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

func TestExactlyOneLeaderElected(t *testing.T) {
	tc := newTestCluster(t, 3)
	tc.startAll()
	defer tc.stopAll()

	tc.awaitLeader(2 * time.Second)

	// Give any would-be split election time to resolve, then check for
	// exactly one leader sustained over a short window (Election Safety).
	require.Eventually(t, func() bool {
		return tc.leaderCount() == 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, tc.leaderCount())
}

func TestSingleNodeClusterBecomesLeaderImmediately(t *testing.T) {
	tc := newTestCluster(t, 1)
	tc.startAll()
	defer tc.stopAll()

	leader := tc.awaitLeader(500 * time.Millisecond)
	require.NotNil(t, leader)

	res, err := leader.Propose(context.Background(), wire.EntryConfigSet, "k", []byte("v"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), res.Index) // index 1 is the election noop
}

func TestLeaderStepsDownOnHigherTerm(t *testing.T) {
	tc := newTestCluster(t, 3)
	tc.startAll()
	defer tc.stopAll()

	leader := tc.awaitLeader(2 * time.Second)
	require.NotNil(t, leader)

	leader.mu.Lock()
	term := leader.state.CurrentTerm()
	leader.mu.Unlock()

	// Simulate a higher-term RequestVote arriving, as if another node won a
	// later election.
	leader.RequestVote(wire.RequestVoteRequest{Term: term + 5, CandidateID: "outsider"})

	leader.mu.Lock()
	role := leader.role
	leader.mu.Unlock()
	require.Equal(t, Follower, role, "observing a higher term must force step-down")
}
