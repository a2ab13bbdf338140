package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// Loopback is an in-process PeerSender that dispatches directly to each
// peer's InboundSink, with no network I/O. It is the harness equivalent of
// bundoc/raft's raft_test.go MockRPC, generalized into a reusable transport
// so the same Node code path that drives a real TCPTransport can be
// exercised deterministically in tests.
type Loopback struct {
	mu    sync.RWMutex
	peers map[string]InboundSink
}

// NewLoopback returns an empty Loopback registry.
func NewLoopback() *Loopback {
	return &Loopback{peers: make(map[string]InboundSink)}
}

// Register makes sink reachable under id.
func (l *Loopback) Register(id string, sink InboundSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.peers[id] = sink
}

// Unregister makes id unreachable; future sends to it fail.
func (l *Loopback) Unregister(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.peers, id)
}

func (l *Loopback) sink(id string) (InboundSink, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.peers[id]
	if !ok {
		return nil, fmt.Errorf("transport: peer %q unreachable", id)
	}
	return s, nil
}

func (l *Loopback) SendRequestVote(ctx context.Context, peer string, req wire.RequestVoteRequest) (wire.RequestVoteReply, error) {
	sink, err := l.sink(peer)
	if err != nil {
		return wire.RequestVoteReply{}, err
	}
	select {
	case <-ctx.Done():
		return wire.RequestVoteReply{}, ctx.Err()
	default:
	}
	return sink.RequestVote(req), nil
}

func (l *Loopback) SendAppendEntries(ctx context.Context, peer string, req wire.AppendEntriesRequest) (wire.AppendEntriesReply, error) {
	sink, err := l.sink(peer)
	if err != nil {
		return wire.AppendEntriesReply{}, err
	}
	select {
	case <-ctx.Done():
		return wire.AppendEntriesReply{}, ctx.Err()
	default:
	}
	return sink.AppendEntries(req), nil
}
