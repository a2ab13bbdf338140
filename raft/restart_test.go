package raft

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// TestRestartReplaysCommittedLogToSameState covers S6: after restarting
// every node, each one's replay of its durable log (once the surviving
// leader re-establishes commitIndex) reproduces the same key/value mapping.
func TestRestartReplaysCommittedLogToSameState(t *testing.T) {
	tc := newTestCluster(t, 3)
	tc.startAll()

	leader := tc.awaitLeader(2 * time.Second)
	require.NotNil(t, leader)

	_, err := leader.Propose(context.Background(), wire.EntryConfigSet, "cluster.name", []byte("x"))
	require.NoError(t, err)

	for _, n := range tc.nodes {
		require.Eventually(t, func() bool {
			v, ok := n.machine.Get("cluster.name")
			return ok && string(v) == "x"
		}, time.Second, 10*time.Millisecond)
	}

	for i := range tc.nodes {
		tc.restart(i)
	}

	newLeader := tc.awaitLeader(2 * time.Second)
	require.NotNil(t, newLeader)
	defer tc.stopAll()

	for _, n := range tc.nodes {
		require.Eventually(t, func() bool {
			v, ok := n.machine.Get("cluster.name")
			return ok && string(v) == "x"
		}, 2*time.Second, 10*time.Millisecond, "node %s did not re-derive committed state after restart", n.id)
	}
}
