package prompttree

// Match locates a node inside its direct parent sequence.
type Match struct {
	Node   *Node
	Parent *[]*Node
	Index  int
}

// Walk visits every node of seq in depth-first pre-order. Returning false
// from fn skips the children of that node.
func Walk(seq []*Node, fn func(n *Node) bool) {
	for _, n := range seq {
		if n == nil {
			continue
		}
		if fn(n) && n.IsGroup {
			Walk(n.Children, fn)
		}
	}
}

// FindParentAndItem searches seq depth-first in pre-order for id and returns
// the node, its direct parent sequence and its index there.
func FindParentAndItem(id ID, seq *[]*Node) (Match, bool) {
	for i, n := range *seq {
		if n == nil {
			continue
		}
		if n.ID == id {
			return Match{Node: n, Parent: seq, Index: i}, true
		}
		if n.IsGroup {
			if m, ok := FindParentAndItem(id, &n.Children); ok {
				return m, true
			}
		}
	}
	return Match{}, false
}

// Contains reports whether id is n itself or one of its descendants.
func Contains(n *Node, id ID) bool {
	found := false
	Walk([]*Node{n}, func(c *Node) bool {
		if c.ID == id {
			found = true
		}
		return !found
	})
	return found
}

// IndexOf returns the position of the node with the given id directly inside
// seq, or -1.
func IndexOf(seq []*Node, id ID) int {
	for i, n := range seq {
		if n != nil && n.ID == id {
			return i
		}
	}
	return -1
}
