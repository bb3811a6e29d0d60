package prompttree

import (
	"sync"
	"time"
)

// IDGenerator hands out strictly increasing node ids seeded from the wall
// clock in milliseconds, so ids created in different sessions rarely collide.
type IDGenerator struct {
	mu   sync.Mutex
	last ID
	now  func() time.Time // for testing
}

// NewIDGenerator creates an IDGenerator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns an id greater than every id issued or observed so far.
func (g *IDGenerator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := ID(g.now().UnixMilli())
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Observe raises the generator past every id found in seqs.
func (g *IDGenerator) Observe(seqs ...[]*Node) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, seq := range seqs {
		Walk(seq, func(n *Node) bool {
			if n.ID > g.last {
				g.last = n.ID
			}
			return true
		})
	}
}

// EnsureUniqueIDs gives a fresh id to every node whose id is non-positive or
// already used earlier in pre-order. It returns the number of nodes changed.
func EnsureUniqueIDs(g *IDGenerator, seqs ...[]*Node) int {
	g.Observe(seqs...)

	seen := make(map[ID]struct{})
	changed := 0
	for _, seq := range seqs {
		Walk(seq, func(n *Node) bool {
			if _, dup := seen[n.ID]; dup || n.ID <= 0 {
				n.ID = g.Next()
				changed++
			}
			seen[n.ID] = struct{}{}
			return true
		})
	}
	return changed
}
