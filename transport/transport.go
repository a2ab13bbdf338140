// Package transport carries RequestVote and AppendEntries RPCs between
// peers. It exists to break the cyclic reference the teacher's bundoc/raft
// package had between the engine and the transport (the transport needs to
// deliver inbound RPCs to the engine, and the engine needs to send outbound
// RPCs through the transport): PeerSender is the capability a raft.Node
// holds to call out to peers, and InboundSink is the capability a transport
// holds to deliver calls into a raft.Node. Neither side needs a concrete
// reference to the other's type.
package transport

import (
	"context"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// PeerSender is how a consensus core reaches its peers. Implementations may
// reorder or fail independent calls; they guarantee nothing about ordering
// across calls to different peers, and per-call cancellation is honored via
// ctx.
type PeerSender interface {
	SendRequestVote(ctx context.Context, peer string, req wire.RequestVoteRequest) (wire.RequestVoteReply, error)
	SendAppendEntries(ctx context.Context, peer string, req wire.AppendEntriesRequest) (wire.AppendEntriesReply, error)
}

// InboundSink is how a transport delivers an RPC it received to the local
// consensus core. A raft.Node implements this.
type InboundSink interface {
	RequestVote(req wire.RequestVoteRequest) wire.RequestVoteReply
	AppendEntries(req wire.AppendEntriesRequest) wire.AppendEntriesReply
}

// ClientSink is how a transport delivers a host-facing client call
// (ProposeConfig / ReadConfig / GetClusterState) to the local consensus
// core. raft.ClientSink implements this by wrapping a *raft.Node.
type ClientSink interface {
	Propose(ctx context.Context, req wire.ProposeRequest) wire.ProposeReply
	Read(req wire.ReadRequest) wire.ReadReply
	ClusterState() wire.ClusterStateReply
}
