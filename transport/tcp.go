package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// TCPTransport implements PeerSender over plain TCP, framing each call with
// the length-prefixed-JSON envelope from raft/wire. It is a generalization
// of bundoc/raft's TCPTransport (which only knew how to dial, not how to
// also serve inbound calls); TCPServer below is the serving half.
type TCPTransport struct {
	DialTimeout time.Duration
	CallTimeout time.Duration
}

// NewTCPTransport returns a TCPTransport with sane default timeouts.
func NewTCPTransport() *TCPTransport {
	return &TCPTransport{
		DialTimeout: 2 * time.Second,
		CallTimeout: 1 * time.Second,
	}
}

func (t *TCPTransport) call(ctx context.Context, peer string, op wire.OpCode, req, reply interface{}) error {
	dialTimeout := t.DialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < dialTimeout {
			dialTimeout = d
		}
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", peer)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", peer, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else if t.CallTimeout > 0 {
		conn.SetDeadline(time.Now().Add(t.CallTimeout))
	}

	if err := wire.WriteMessage(conn, op, req); err != nil {
		return fmt.Errorf("transport: send to %s: %w", peer, err)
	}

	header, err := wire.ReadHeader(conn)
	if err != nil {
		return fmt.Errorf("transport: read header from %s: %w", peer, err)
	}
	if header.OpCode == wire.OpError {
		var errBody wire.ErrorBody
		wire.ReadBody(conn, header.Length, &errBody)
		return fmt.Errorf("transport: %s replied with error: %s", peer, errBody.Error)
	}
	if err := wire.ReadBody(conn, header.Length, reply); err != nil {
		return fmt.Errorf("transport: read body from %s: %w", peer, err)
	}
	return nil
}

func (t *TCPTransport) SendRequestVote(ctx context.Context, peer string, req wire.RequestVoteRequest) (wire.RequestVoteReply, error) {
	var reply wire.RequestVoteReply
	err := t.call(ctx, peer, wire.OpRequestVote, req, &reply)
	return reply, err
}

func (t *TCPTransport) SendAppendEntries(ctx context.Context, peer string, req wire.AppendEntriesRequest) (wire.AppendEntriesReply, error) {
	var reply wire.AppendEntriesReply
	err := t.call(ctx, peer, wire.OpAppendEntries, req, &reply)
	return reply, err
}

// TCPServer accepts connections and dispatches each framed request to an
// InboundSink (peer RPCs) or a ClientSink (host-facing client RPCs).
type TCPServer struct {
	ln         net.Listener
	peerSink   InboundSink
	clientSink ClientSink
	logger     *slog.Logger
}

// ListenTCP starts a TCPServer bound to addr, delivering inbound peer RPCs
// to peerSink and client RPCs to clientSink.
func ListenTCP(addr string, peerSink InboundSink, clientSink ClientSink) (*TCPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &TCPServer{ln: ln, peerSink: peerSink, clientSink: clientSink, logger: slog.Default()}, nil
}

// WithLogger attaches a logger used to trace each accepted connection by a
// per-request correlation id, and returns the server for chaining.
func (s *TCPServer) WithLogger(logger *slog.Logger) *TCPServer {
	s.logger = logger
	return s
}

// Addr returns the server's bound address.
func (s *TCPServer) Addr() string {
	return s.ln.Addr().String()
}

// Serve accepts connections until the listener is closed.
func (s *TCPServer) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go s.handle(conn)
	}
}

// Close stops accepting new connections.
func (s *TCPServer) Close() error {
	return s.ln.Close()
}

func (s *TCPServer) handle(conn net.Conn) {
	defer conn.Close()

	reqID := uuid.NewString()

	header, err := wire.ReadHeader(conn)
	if err != nil {
		return
	}

	s.logger.Debug("transport: request accepted", "req_id", reqID, "op", header.OpCode, "remote", conn.RemoteAddr())

	switch header.OpCode {
	case wire.OpRequestVote:
		var req wire.RequestVoteRequest
		if err := wire.ReadBody(conn, header.Length, &req); err != nil {
			return
		}
		reply := s.peerSink.RequestVote(req)
		wire.WriteMessage(conn, wire.OpReply, reply)

	case wire.OpAppendEntries:
		var req wire.AppendEntriesRequest
		if err := wire.ReadBody(conn, header.Length, &req); err != nil {
			return
		}
		reply := s.peerSink.AppendEntries(req)
		wire.WriteMessage(conn, wire.OpReply, reply)

	case wire.OpPropose:
		var req wire.ProposeRequest
		if err := wire.ReadBody(conn, header.Length, &req); err != nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), proposeDeadline)
		reply := s.clientSink.Propose(ctx, req)
		cancel()
		wire.WriteMessage(conn, wire.OpReply, reply)

	case wire.OpRead:
		var req wire.ReadRequest
		if err := wire.ReadBody(conn, header.Length, &req); err != nil {
			return
		}
		reply := s.clientSink.Read(req)
		wire.WriteMessage(conn, wire.OpReply, reply)

	case wire.OpClusterState:
		reply := s.clientSink.ClusterState()
		wire.WriteMessage(conn, wire.OpReply, reply)

	default:
		wire.WriteMessage(conn, wire.OpError, wire.ErrorBody{Error: "transport: unknown opcode"})
	}
}

// proposeDeadline bounds how long a server will wait for a client's
// Propose to commit before replying; the client itself may retry at a new
// leader if this elapses.
const proposeDeadline = 2 * time.Second
