package transport

import (
	"context"
	"fmt"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// addressResolvingSender decorates a PeerSender whose "peer" argument is a
// dial address with one whose "peer" argument is a stable node id, so a
// raft.Node (which only ever knows ids) can drive a TCPTransport (which
// only ever knows addresses) without either package knowing about cluster
// configuration directly.
type addressResolvingSender struct {
	inner PeerSender
	addrs map[string]string
}

// WithAddressMap wraps inner so callers can address peers by stable id;
// addrs maps each peer id to the address inner actually expects.
func WithAddressMap(inner PeerSender, addrs map[string]string) PeerSender {
	return &addressResolvingSender{inner: inner, addrs: addrs}
}

func (s *addressResolvingSender) resolve(id string) (string, error) {
	addr, ok := s.addrs[id]
	if !ok {
		return "", fmt.Errorf("transport: no address known for peer %q", id)
	}
	return addr, nil
}

func (s *addressResolvingSender) SendRequestVote(ctx context.Context, peer string, req wire.RequestVoteRequest) (wire.RequestVoteReply, error) {
	addr, err := s.resolve(peer)
	if err != nil {
		return wire.RequestVoteReply{}, err
	}
	return s.inner.SendRequestVote(ctx, addr, req)
}

func (s *addressResolvingSender) SendAppendEntries(ctx context.Context, peer string, req wire.AppendEntriesRequest) (wire.AppendEntriesReply, error) {
	addr, err := s.resolve(peer)
	if err != nil {
		return wire.AppendEntriesReply{}, err
	}
	return s.inner.SendAppendEntries(ctx, addr, req)
}
