package raft

import (
	"context"
	"errors"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// ClientSink adapts a *Node to transport.ClientSink, translating the wire
// client RPCs into Node.Propose / Node.Read / Node.ClusterState calls.
type ClientSink struct {
	node *Node
}

// NewClientSink wraps node for serving over a transport.TCPServer.
func NewClientSink(node *Node) *ClientSink {
	return &ClientSink{node: node}
}

func (s *ClientSink) Propose(ctx context.Context, req wire.ProposeRequest) wire.ProposeReply {
	_, err := s.node.Propose(ctx, wire.EntryConfigSet, req.Key, req.Value)
	if err != nil {
		reply := wire.ProposeReply{Success: false, Error: err.Error()}
		var nle *notLeaderErr
		if errors.As(err, &nle) {
			reply.LeaderID = nle.Hint()
		}
		return reply
	}
	return wire.ProposeReply{Success: true, LeaderID: s.node.id}
}

func (s *ClientSink) Read(req wire.ReadRequest) wire.ReadReply {
	res, err := s.node.Read(req.Key, req.Consistent)
	if err != nil {
		reply := wire.ReadReply{Error: err.Error()}
		var nle *notLeaderErr
		if errors.As(err, &nle) {
			reply.LeaderID = nle.Hint()
		}
		return reply
	}
	return wire.ReadReply{Value: res.Value, Found: res.Found, LeaderID: s.node.ClusterState().LeaderID}
}

func (s *ClientSink) ClusterState() wire.ClusterStateReply {
	return s.node.ClusterState()
}
