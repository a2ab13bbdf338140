package raft

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kartikbazzad/raftkv/fsm"
	"github.com/kartikbazzad/raftkv/store"
	"github.com/kartikbazzad/raftkv/transport"
)

// testCluster is a harness of in-process nodes wired through a shared
// transport.Loopback, generalizing bundoc/raft_test.go's createCluster/
// MockRPC into something that can drive a *store.PersistentState-backed
// Node instead of the teacher's in-memory-only sketch.
type testCluster struct {
	t       *testing.T
	nodes   []*Node
	dirs    []string
	ids     []string
	lb      *transport.Loopback
}

func newTestCluster(t *testing.T, n int) *testCluster {
	t.Helper()

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}

	lb := transport.NewLoopback()
	tc := &testCluster{t: t, ids: ids, lb: lb}

	for i, id := range ids {
		peers := make([]string, 0, n-1)
		for _, other := range ids {
			if other != id {
				peers = append(peers, other)
			}
		}

		dir := t.TempDir()
		state, err := store.OpenPersistentState(dir)
		require.NoError(t, err)

		cfg := DefaultConfig(id, peers)
		cfg.DataDir = dir
		cfg.ElectionMinTimeout = 40 * time.Millisecond
		cfg.ElectionMaxTimeout = 80 * time.Millisecond
		cfg.HeartbeatInterval = 10 * time.Millisecond
		cfg.RPCTimeout = 50 * time.Millisecond
		cfg.AppendRetryInterval = 10 * time.Millisecond
		cfg.MaxAppendRetries = 2

		node := NewNode(cfg, state, fsm.New(), lb, nil, nil)
		lb.Register(id, node)

		tc.nodes = append(tc.nodes, node)
		tc.dirs = append(tc.dirs, dir)
		_ = i
	}
	return tc
}

func (tc *testCluster) startAll() {
	for _, n := range tc.nodes {
		n.Start()
	}
}

func (tc *testCluster) stopAll() {
	for _, n := range tc.nodes {
		n.Stop()
	}
}

// restart closes node i's storage, reopens it fresh from disk, and builds a
// new Node over it, simulating a process restart.
func (tc *testCluster) restart(i int) {
	tc.t.Helper()
	old := tc.nodes[i]
	old.Stop()
	require.NoError(tc.t, old.state.Close())

	state, err := store.OpenPersistentState(tc.dirs[i])
	require.NoError(tc.t, err)

	peers := make([]string, 0, len(tc.ids)-1)
	for _, other := range tc.ids {
		if other != tc.ids[i] {
			peers = append(peers, other)
		}
	}
	cfg := old.cfg
	node := NewNode(cfg, state, fsm.New(), tc.lb, nil, nil)
	tc.lb.Register(tc.ids[i], node)
	tc.nodes[i] = node
	node.Start()
}

func (tc *testCluster) role(i int) Role {
	n := tc.nodes[i]
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.role
}

func (tc *testCluster) leader() *Node {
	for _, n := range tc.nodes {
		n.mu.Lock()
		isLeader := n.role == Leader
		n.mu.Unlock()
		if isLeader {
			return n
		}
	}
	return nil
}

func (tc *testCluster) leaderCount() int {
	count := 0
	for _, n := range tc.nodes {
		n.mu.Lock()
		if n.role == Leader {
			count++
		}
		n.mu.Unlock()
	}
	return count
}

func (tc *testCluster) awaitLeader(timeout time.Duration) *Node {
	tc.t.Helper()
	var leader *Node
	require.Eventually(tc.t, func() bool {
		leader = tc.leader()
		return leader != nil
	}, timeout, 5*time.Millisecond)
	return leader
}
