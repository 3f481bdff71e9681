package graphengine

// TraversalDirection selects which adjacency a Traverse call follows.
type TraversalDirection string

const (
	DirectionOutgoing TraversalDirection = "outgoing"
	DirectionIncoming TraversalDirection = "incoming"
	DirectionBoth      TraversalDirection = "both"
)

// DefaultMaxDepth bounds traversal and causal-chain depth when unset.
const DefaultMaxDepth = 5

// TraversalParams configures a breadth-first walk from a starting node.
type TraversalParams struct {
	StartID   uint64
	Direction TraversalDirection
	EdgeTypes []EdgeType
	MaxDepth  int
}

// TraversalStep is one node reached during a Traverse call, along with its
// distance from the start and the edge that reached it (nil for the start
// node itself).
type TraversalStep struct {
	Node     *Node
	Depth    int
	ViaEdge  *Edge
}

// Traverse performs a breadth-first search from params.StartID, following
// edges in params.Direction up to params.MaxDepth hops, optionally
// restricted to params.EdgeTypes. The start node is included at depth 0.
func (g *Graph) Traverse(params TraversalParams) ([]TraversalStep, error) {
	start, ok := g.nodes[params.StartID]
	if !ok {
		return nil, &ErrNodeNotFound{ID: params.StartID}
	}

	maxDepth := params.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	visited := map[uint64]bool{params.StartID: true}
	result := []TraversalStep{{Node: start, Depth: 0}}
	frontier := []uint64{params.StartID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []uint64
		for _, id := range frontier {
			for _, e := range g.neighborEdges(id, params.Direction, params.EdgeTypes) {
				otherID := e.TargetID
				if e.SourceID != id {
					otherID = e.SourceID
				}
				if visited[otherID] {
					continue
				}
				visited[otherID] = true
				n, ok := g.nodes[otherID]
				if !ok {
					continue
				}
				result = append(result, TraversalStep{Node: n, Depth: depth, ViaEdge: e})
				next = append(next, otherID)
			}
		}
		frontier = next
	}

	now := nextTimestamp()
	for _, step := range result {
		g.touch(step.Node.ID, now)
	}

	return result, nil
}

// neighborEdges returns the edges adjacent to id in the requested direction.
func (g *Graph) neighborEdges(id uint64, dir TraversalDirection, types []EdgeType) []*Edge {
	switch dir {
	case DirectionIncoming:
		return g.InEdges(id, types)
	case DirectionBoth:
		out := append([]*Edge{}, g.OutEdges(id, types)...)
		return append(out, g.InEdges(id, types)...)
	default: // DirectionOutgoing and unset
		return g.OutEdges(id, types)
	}
}
