package raft

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/kartikbazzad/raftkv/fsm"
	"github.com/kartikbazzad/raftkv/internal/metrics"
	"github.com/kartikbazzad/raftkv/store"
	"github.com/kartikbazzad/raftkv/transport"
)

// Role is the current position of a Node in the Raft role state machine.
type Role int

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// Config holds the tunables for a Node. Timing recommendations follow the
// ones bundoc/raft used (150-300ms election range, 50ms heartbeat), widened
// slightly so Tmax >= 2*Tmin holds exactly.
type Config struct {
	ID      string   // this node's stable id
	Peers   []string // every other node's id, passed as-is to the PeerSender
	DataDir string

	ElectionMinTimeout  time.Duration
	ElectionMaxTimeout  time.Duration
	HeartbeatInterval   time.Duration
	RPCTimeout          time.Duration
	MaxEntriesPerAppend int
	MaxAppendRetries    int
	AppendRetryInterval time.Duration
}

// DefaultConfig returns a Config with the spec's recommended timings.
func DefaultConfig(id string, peers []string) *Config {
	return &Config{
		ID:                  id,
		Peers:               peers,
		DataDir:             "./raft-data",
		ElectionMinTimeout:  150 * time.Millisecond,
		ElectionMaxTimeout:  300 * time.Millisecond,
		HeartbeatInterval:   50 * time.Millisecond,
		RPCTimeout:          200 * time.Millisecond,
		MaxEntriesPerAppend: 64,
		MaxAppendRetries:    3,
		AppendRetryInterval: 200 * time.Millisecond,
	}
}

// proposalWaiter is resolved by the applier (on success) or by a step-down /
// log-truncation path (on failure) that notices index was never going to
// commit under the term it was proposed in.
type proposalWaiter struct {
	term uint64
	done chan error
}

// Node is a single participant in the Raft cluster: the role state machine,
// RPC handlers, election driver, replication driver, and commit bookkeeping.
// It implements transport.InboundSink.
type Node struct {
	mu sync.Mutex

	id    string
	peers []string
	cfg   *Config

	sender  transport.PeerSender
	state   *store.PersistentState
	machine *fsm.KV
	logger  *slog.Logger
	metrics *metrics.Metrics

	role        Role
	leaderHint  string
	commitIndex uint64
	lastApplied uint64

	// Leader-only, cleared on step-down.
	nextIndex  map[string]uint64
	matchIndex map[string]uint64
	peerState  map[string]*peerState

	// committedInCurrentTerm is true once the leader has observed a
	// commitIndex advance past an entry bearing currentTerm (the initial
	// noop, at minimum); Read(consistent) requires this.
	committedInCurrentTerm bool

	waiters map[uint64]*proposalWaiter

	electionTimer   *time.Timer
	heartbeatTicker *time.Ticker

	applyCh chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	started bool
	stopped bool
}

// NewNode constructs a Node over the given durable state, state machine,
// and transport. The node is idle until Start is called.
func NewNode(cfg *Config, state *store.PersistentState, machine *fsm.KV, sender transport.PeerSender, logger *slog.Logger, m *metrics.Metrics) *Node {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewNoop()
	}
	return &Node{
		id:      cfg.ID,
		peers:   cfg.Peers,
		cfg:     cfg,
		sender:  sender,
		state:   state,
		machine: machine,
		logger:  logger.With("node_id", cfg.ID),
		metrics: m,
		role:    Follower,
		waiters: make(map[uint64]*proposalWaiter),
		applyCh: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Start begins the node's background loops: election timer and applier.
// Start is idempotent; calling it twice is a no-op.
func (n *Node) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return
	}
	n.started = true
	n.resetElectionTimerLocked()
	n.metrics.SetRole(n.id, n.role.String())
	n.metrics.SetTerm(n.id, n.state.CurrentTerm())

	n.wg.Add(1)
	go n.runApplier()
}

// Stop cancels all background activity and releases resources. Stop does
// not close the underlying PersistentState; the caller owns that lifetime.
func (n *Node) Stop() {
	n.mu.Lock()
	if n.stopped {
		n.mu.Unlock()
		return
	}
	n.stopped = true
	if n.electionTimer != nil {
		n.electionTimer.Stop()
	}
	if n.heartbeatTicker != nil {
		n.heartbeatTicker.Stop()
	}
	n.failAllWaitersLocked(ErrShuttingDown)
	close(n.stopCh)
	n.mu.Unlock()

	n.wg.Wait()
}

// ID returns the node's stable identifier.
func (n *Node) ID() string { return n.id }

// resetElectionTimerLocked draws a fresh randomized timeout in
// [ElectionMinTimeout, ElectionMaxTimeout) and arms the timer. Callers must
// hold n.mu.
func (n *Node) resetElectionTimerLocked() {
	if n.electionTimer != nil {
		n.electionTimer.Stop()
	}
	spread := n.cfg.ElectionMaxTimeout - n.cfg.ElectionMinTimeout
	d := n.cfg.ElectionMinTimeout
	if spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread)))
	}
	n.electionTimer = time.AfterFunc(d, n.onElectionTimeout)
}

func (n *Node) onElectionTimeout() {
	select {
	case <-n.stopCh:
		return
	default:
	}
	n.startElection()
}

// quorumSizeLocked is the strict majority of the cluster, including self.
func (n *Node) quorumSizeLocked() int {
	total := len(n.peers) + 1
	return total/2 + 1
}

// stepDownLocked transitions to Follower in response to a higher observed
// term. Callers must hold n.mu and have already called n.state.SetTerm.
func (n *Node) stepDownLocked(reason string) {
	wasLeader := n.role == Leader
	n.role = Follower
	n.leaderHint = ""
	n.committedInCurrentTerm = false
	if wasLeader {
		n.peerState = nil
		n.nextIndex = nil
		if n.heartbeatTicker != nil {
			n.heartbeatTicker.Stop()
			n.heartbeatTicker = nil
		}
		n.failAllWaitersLocked(ErrProposalOverwritten)
	}
	n.resetElectionTimerLocked()
	n.metrics.SetRole(n.id, n.role.String())
	n.logger.Info("stepping down to follower", "reason", reason, "term", n.state.CurrentTerm())
}

// observeTermLocked applies Term Monotonicity (I6): if term is newer than
// currentTerm, it persists the advance and steps down. Returns true if a
// step-down occurred.
func (n *Node) observeTermLocked(term uint64) bool {
	if term <= n.state.CurrentTerm() {
		return false
	}
	if err := n.state.SetTerm(term); err != nil {
		n.fatalLocked(err)
		return true
	}
	n.metrics.SetTerm(n.id, term)
	n.stepDownLocked(fmt.Sprintf("observed higher term %d", term))
	return true
}

// fatalLocked handles an unrecoverable storage error: per the error-handling
// policy, storage failures are fatal and the node must stop serving
// requests to preserve safety.
func (n *Node) fatalLocked(err error) {
	n.logger.Error("fatal storage error, node stopping", "error", err)
	n.failAllWaitersLocked(err)
	if !n.stopped {
		n.stopped = true
		close(n.stopCh)
	}
}

func (n *Node) failAllWaitersLocked(err error) {
	for idx, w := range n.waiters {
		w.done <- err
		delete(n.waiters, idx)
	}
}

// wakeApplier signals the applier goroutine without blocking if it's
// already got a pending wakeup queued.
func (n *Node) wakeApplier() {
	select {
	case n.applyCh <- struct{}{}:
	default:
	}
}

// peerState tracks in-flight replication bookkeeping for one peer; see
// replication.go.
type peerState struct {
	mu       sync.Mutex
	inFlight bool
}
