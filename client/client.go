// Package client is a remote client for a raftkv cluster, modeled on
// bundoc/client's single-connection, mutex-serialized request/reply style
// (minus the authentication handshake, which has no analogue here).
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// Client holds one persistent connection to a single raftkv node. It does
// not itself follow leader redirects across nodes; callers that want that
// should use Cluster (cluster.go).
type Client struct {
	addr string
	conn net.Conn
	mu   sync.Mutex

	callTimeout time.Duration
}

// Connect dials addr and returns a ready-to-use Client.
func Connect(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("client: connect to %s: %w", addr, err)
	}
	return &Client{addr: addr, conn: conn, callTimeout: 5 * time.Second}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) call(op wire.OpCode, req, reply interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetDeadline(time.Now().Add(c.callTimeout))

	if err := wire.WriteMessage(c.conn, op, req); err != nil {
		return fmt.Errorf("client: send to %s: %w", c.addr, err)
	}

	header, err := wire.ReadHeader(c.conn)
	if err != nil {
		return fmt.Errorf("client: read header from %s: %w", c.addr, err)
	}
	if header.OpCode == wire.OpError {
		var errBody wire.ErrorBody
		wire.ReadBody(c.conn, header.Length, &errBody)
		return fmt.Errorf("client: %s replied with error: %s", c.addr, errBody.Error)
	}
	return wire.ReadBody(c.conn, header.Length, reply)
}

// ProposeConfig asks the connected node to append (key, value) to the
// replicated log and waits for it to commit.
func (c *Client) ProposeConfig(key string, value []byte) (wire.ProposeReply, error) {
	var reply wire.ProposeReply
	err := c.call(wire.OpPropose, wire.ProposeRequest{Key: key, Value: value}, &reply)
	return reply, err
}

// ReadConfig asks the connected node for the value of key. If consistent is
// true, the node must be the current leader and have committed in its
// current term: a non-leader replies with an error and its leader hint, a
// leader that has not yet committed in its term replies with an error and
// no hint.
func (c *Client) ReadConfig(key string, consistent bool) (wire.ReadReply, error) {
	var reply wire.ReadReply
	err := c.call(wire.OpRead, wire.ReadRequest{Key: key, Consistent: consistent}, &reply)
	return reply, err
}

// GetClusterState asks the connected node for its view of cluster
// membership, current leader, and current term.
func (c *Client) GetClusterState() (wire.ClusterStateReply, error) {
	var reply wire.ClusterStateReply
	err := c.call(wire.OpClusterState, nil, &reply)
	return reply, err
}
