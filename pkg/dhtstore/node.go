// Package dhtstore is a reserved Kademlia-style routing table for the
// seeder-discovery DHT for which wire tags 40-45 are reserved (spec.md
// marks the DHT unimplemented). No request loop uses this package and it
// does not encode or decode the pkg/wire DHT shapes; it is exercised by
// its own tests rather than a running service.
package dhtstore

import (
	"fmt"
	"time"

	"github.com/WebFirstLanguage/brisby/pkg/transport"
	"lukechampine.com/blake3"
)

// NodeID is a 256-bit identifier in the DHT keyspace, derived from a
// seeder's NymAddress.
type NodeID [32]byte

// NewNodeID derives a NodeID from addr by BLAKE3-hashing it.
func NewNodeID(addr transport.NymAddress) NodeID {
	return NodeID(blake3.Sum256([]byte(addr)))
}

// Distance computes the XOR distance between two node IDs.
func (id NodeID) Distance(other NodeID) NodeID {
	var out NodeID
	for i := range id {
		out[i] = id[i] ^ other[i]
	}
	return out
}

// Less orders NodeIDs as big-endian unsigned integers, for sorting by
// distance.
func (id NodeID) Less(other NodeID) bool {
	for i := range id {
		if id[i] != other[i] {
			return id[i] < other[i]
		}
	}
	return false
}

// IsZero reports whether id is the all-zero identifier.
func (id NodeID) IsZero() bool {
	return id == NodeID{}
}

// String returns the hex encoding of id.
func (id NodeID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// CommonPrefixLen returns the number of leading bits id and other share.
func (id NodeID) CommonPrefixLen(other NodeID) int {
	for i := range id {
		xor := id[i] ^ other[i]
		if xor == 0 {
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if (xor>>bit)&1 == 1 {
				return i*8 + (7 - bit)
			}
		}
	}
	return len(id) * 8
}

// Node is one peer entry in the routing table: a seeder reachable at a
// NymAddress, tracked for liveness.
type Node struct {
	ID         NodeID
	NymAddress transport.NymAddress
	LastSeen   time.Time
}

// NewNode builds a Node for addr, stamped with the current time.
func NewNode(addr transport.NymAddress) *Node {
	return &Node{ID: NewNodeID(addr), NymAddress: addr, LastSeen: time.Now()}
}

// IsStale reports whether the node hasn't been refreshed within timeout.
func (n *Node) IsStale(timeout time.Duration) bool {
	return time.Since(n.LastSeen) > timeout
}

// Touch refreshes the node's last-seen timestamp.
func (n *Node) Touch() {
	n.LastSeen = time.Now()
}

// Copy returns a shallow copy of n.
func (n *Node) Copy() *Node {
	cp := *n
	return &cp
}
