package prompttree

// copySuffix is appended to the name of a duplicated node.
const copySuffix = " (copy)"

// Clone deep-copies n, giving the copy and each of its descendants a fresh id.
func Clone(n *Node, ids *IDGenerator) *Node {
	c := *n
	c.ID = ids.Next()
	if n.Children != nil {
		c.Children = make([]*Node, 0, len(n.Children))
		for _, child := range n.Children {
			if child != nil {
				c.Children = append(c.Children, Clone(child, ids))
			}
		}
	}
	return &c
}

// markDuplicate labels a fresh duplicate by suffixing its name. Unnamed
// nodes are copied unchanged.
func markDuplicate(n *Node) {
	if n.Name != "" {
		n.Name += copySuffix
	}
}
