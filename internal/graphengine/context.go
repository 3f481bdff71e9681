package graphengine

// Defaults and bounds for Context, mirroring the reference implementation.
const (
	DefaultContextDepth = 2
	MinContextDepth     = 1
	MaxContextDepth     = 5
)

// ContextParams configures a local-neighborhood subgraph fetch.
type ContextParams struct {
	NodeID uint64
	Depth  int
}

// ContextSubgraph is a node and the local neighborhood around it.
type ContextSubgraph struct {
	Center *Node
	Nodes  []*Node
	Edges  []*Edge
}

// Context returns the subgraph reachable from params.NodeID within
// params.Depth hops in either direction, over every edge type. Depth is
// clamped to [MinContextDepth, MaxContextDepth]; zero uses
// DefaultContextDepth.
func (g *Graph) Context(params ContextParams) (ContextSubgraph, error) {
	if _, ok := g.nodes[params.NodeID]; !ok {
		return ContextSubgraph{}, &ErrNodeNotFound{ID: params.NodeID}
	}

	depth := params.Depth
	switch {
	case depth == 0:
		depth = DefaultContextDepth
	case depth < MinContextDepth:
		depth = MinContextDepth
	case depth > MaxContextDepth:
		depth = MaxContextDepth
	}

	steps, err := g.Traverse(TraversalParams{
		StartID:   params.NodeID,
		Direction: DirectionBoth,
		MaxDepth:  depth,
	})
	if err != nil {
		return ContextSubgraph{}, err
	}

	nodeSet := make(map[uint64]bool, len(steps))
	nodes := make([]*Node, 0, len(steps))
	for _, step := range steps {
		if !nodeSet[step.Node.ID] {
			nodeSet[step.Node.ID] = true
			nodes = append(nodes, step.Node)
		}
	}

	edgeSet := make(map[*Edge]bool)
	var edges []*Edge
	for _, n := range nodes {
		for _, e := range g.outEdges[n.ID] {
			if nodeSet[e.TargetID] && !edgeSet[e] {
				edgeSet[e] = true
				edges = append(edges, e)
			}
		}
	}

	return ContextSubgraph{Center: g.nodes[params.NodeID], Nodes: nodes, Edges: edges}, nil
}
