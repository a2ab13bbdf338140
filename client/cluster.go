package client

import (
	"fmt"

	"github.com/kartikbazzad/raftkv/raft/wire"
)

// Cluster is a thin convenience wrapper that retries a call against the
// leader hint returned by a NotLeader-shaped reply, so callers don't have
// to implement the redirect dance themselves.
type Cluster struct {
	addrs map[string]string // node id -> address
}

// NewCluster builds a Cluster from a node-id -> address map.
func NewCluster(addrs map[string]string) *Cluster {
	return &Cluster{addrs: addrs}
}

// ProposeConfig tries start, following leader redirects up to len(addrs)
// times before giving up.
func (cl *Cluster) ProposeConfig(start, key string, value []byte) (wire.ProposeReply, error) {
	node := start
	for attempt := 0; attempt < len(cl.addrs)+1; attempt++ {
		addr, ok := cl.addrs[node]
		if !ok {
			return wire.ProposeReply{}, fmt.Errorf("client: unknown node %q", node)
		}
		c, err := Connect(addr)
		if err != nil {
			return wire.ProposeReply{}, err
		}
		reply, err := c.ProposeConfig(key, value)
		c.Close()
		if err != nil {
			return wire.ProposeReply{}, err
		}
		if reply.Success || reply.LeaderID == "" || reply.LeaderID == node {
			return reply, nil
		}
		node = reply.LeaderID
	}
	return wire.ProposeReply{}, fmt.Errorf("client: gave up after %d redirects", len(cl.addrs)+1)
}
