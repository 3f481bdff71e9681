package graphengine

// Resolve follows incoming supersedes edges from nodeID (to whatever
// replaced it) until it reaches a node that nothing supersedes, returning
// that node, the current, live version of the fact nodeID belongs to.
// Resolving an already-current node returns that same node
// (P-RESOLVE-IDEMPOTENT).
//
// Correct writes exactly one supersedes edge per call, but the same node
// can be corrected more than once; at such a fork Resolve follows the most
// recently added correction. A cap at the graph's node count guards
// against a corrupted on-disk image that introduced a cycle.
func (g *Graph) Resolve(nodeID uint64) (*Node, error) {
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil, &ErrNodeNotFound{ID: nodeID}
	}

	current := n
	seen := map[uint64]bool{current.ID: true}
	limit := len(g.nodes) + 1

	for i := 0; i < limit; i++ {
		// InEdges(current, supersedes) finds the node whose supersedes
		// edge points at current, i.e. whatever replaced it.
		edges := g.InEdges(current.ID, []EdgeType{EdgeSupersedes})
		if len(edges) == 0 {
			break
		}
		next, ok := g.nodes[edges[len(edges)-1].SourceID]
		if !ok || seen[next.ID] {
			break
		}
		seen[next.ID] = true
		current = next
	}

	g.touch(current.ID, nextTimestamp())
	return current, nil
}

// IsSuperseded reports whether nodeID has since been superseded by a newer
// node (i.e. some other node supersedes it).
func (g *Graph) IsSuperseded(nodeID uint64) bool {
	return len(g.InEdges(nodeID, []EdgeType{EdgeSupersedes})) > 0
}
