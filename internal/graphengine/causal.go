package graphengine

// causalEdgeTypes are the edge types Causal follows; every other edge type
// (related_to, part_of, temporal_next) is not a causal relationship.
var causalEdgeTypes = []EdgeType{EdgeCausedBy, EdgeSupports}

// CausalParams configures a causal-chain walk from a node.
type CausalParams struct {
	NodeID   uint64
	MaxDepth int
}

// CausalChain is the result of a Causal call: the causes behind a node and
// the dependents that rest on it.
type CausalChain struct {
	Causes     []TraversalStep
	Dependents []TraversalStep
}

// Causal returns everything causally upstream of nodeID (its causes: nodes
// it is caused_by or supported by, i.e. outgoing caused_by/supports edges)
// and everything causally downstream (its dependents: nodes that are
// caused_by or supported by nodeID, found by walking caused_by/supports
// edges backward).
func (g *Graph) Causal(params CausalParams) (CausalChain, error) {
	if _, ok := g.nodes[params.NodeID]; !ok {
		return CausalChain{}, &ErrNodeNotFound{ID: params.NodeID}
	}

	causes, err := g.Traverse(TraversalParams{
		StartID:   params.NodeID,
		Direction: DirectionOutgoing,
		EdgeTypes: causalEdgeTypes,
		MaxDepth:  params.MaxDepth,
	})
	if err != nil {
		return CausalChain{}, err
	}

	dependents, err := g.Traverse(TraversalParams{
		StartID:   params.NodeID,
		Direction: DirectionIncoming,
		EdgeTypes: causalEdgeTypes,
		MaxDepth:  params.MaxDepth,
	})
	if err != nil {
		return CausalChain{}, err
	}

	// Drop the start node each traversal includes at depth 0; the caller
	// only wants the chain, not nodeID itself repeated in both slices.
	if len(causes) > 0 {
		causes = causes[1:]
	}
	if len(dependents) > 0 {
		dependents = dependents[1:]
	}

	return CausalChain{Causes: causes, Dependents: dependents}, nil
}
