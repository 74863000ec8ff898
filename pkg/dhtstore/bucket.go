package dhtstore

import (
	"sort"
	"sync"
	"time"
)

// bucket is one k-bucket: up to maxSize live nodes plus a replacement
// cache of the same size. A full cache drops its oldest entry; when a
// live slot frees up, the most recently added replacement is promoted.
type bucket struct {
	mu      sync.RWMutex
	nodes   []*Node
	maxSize int

	replacements []*Node
}

func newBucket(k int) *bucket {
	return &bucket{
		nodes:        make([]*Node, 0, k),
		maxSize:      k,
		replacements: make([]*Node, 0, k),
	}
}

// add inserts node, returning true if it now occupies a live slot
// (existing node refreshed, or a free slot was available) and false if
// it was only placed in the replacement cache.
func (b *bucket) add(node *Node) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, existing := range b.nodes {
		if existing.ID == node.ID {
			b.nodes[i] = node
			b.moveToEnd(i)
			return true
		}
	}

	if len(b.nodes) < b.maxSize {
		b.nodes = append(b.nodes, node)
		return true
	}

	b.addReplacement(node)
	return false
}

func (b *bucket) remove(id NodeID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, node := range b.nodes {
		if node.ID == id {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			b.promoteReplacement()
			return true
		}
	}
	for i, node := range b.replacements {
		if node.ID == id {
			b.replacements = append(b.replacements[:i], b.replacements[i+1:]...)
			return true
		}
	}
	return false
}

func (b *bucket) get(id NodeID) *Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, node := range b.nodes {
		if node.ID == id {
			return node.Copy()
		}
	}
	return nil
}

func (b *bucket) all() []*Node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Node, len(b.nodes))
	for i, node := range b.nodes {
		out[i] = node.Copy()
	}
	return out
}

func (b *bucket) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

func (b *bucket) isFull() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes) >= b.maxSize
}

func (b *bucket) closest(target NodeID, k int) []*Node {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.nodes) == 0 {
		return nil
	}

	nodes := make([]*Node, len(b.nodes))
	for i, node := range b.nodes {
		nodes[i] = node.Copy()
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID.Distance(target).Less(nodes[j].ID.Distance(target))
	})
	if k > len(nodes) {
		k = len(nodes)
	}
	return nodes[:k]
}

func (b *bucket) removeStale(timeout time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	i := 0
	for i < len(b.nodes) {
		if b.nodes[i].IsStale(timeout) {
			b.nodes = append(b.nodes[:i], b.nodes[i+1:]...)
			removed++
			continue
		}
		i++
	}
	for promoted := 0; promoted < removed && len(b.replacements) > 0; promoted++ {
		b.promoteReplacement()
	}
	return removed
}

func (b *bucket) moveToEnd(i int) {
	if i == len(b.nodes)-1 {
		return
	}
	node := b.nodes[i]
	copy(b.nodes[i:], b.nodes[i+1:])
	b.nodes[len(b.nodes)-1] = node
}

func (b *bucket) addReplacement(node *Node) {
	for i, existing := range b.replacements {
		if existing.ID == node.ID {
			b.replacements[i] = node
			return
		}
	}
	if len(b.replacements) < b.maxSize {
		b.replacements = append(b.replacements, node)
		return
	}
	copy(b.replacements, b.replacements[1:])
	b.replacements[len(b.replacements)-1] = node
}

func (b *bucket) promoteReplacement() {
	if len(b.replacements) == 0 || len(b.nodes) >= b.maxSize {
		return
	}
	node := b.replacements[len(b.replacements)-1]
	b.replacements = b.replacements[:len(b.replacements)-1]
	b.nodes = append(b.nodes, node)
}
