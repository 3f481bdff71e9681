package graphengine

import "sort"

// DefaultDimension is the fixed embedding dimension new graphs are created
// with when the caller doesn't specify one.
const DefaultDimension = 256

// Graph is the in-memory image of the cognitive graph. It owns all nodes,
// edges, and the indexes over them. Node and edge identity is by integer id
// resolved through maps, not pointers, so the whole image serializes
// cleanly and carries no reference cycles.
type Graph struct {
	dimension int

	nodes  map[uint64]*Node
	edges  []*Edge
	nextID uint64

	typeIndex    map[EventType][]uint64
	sessionIndex map[uint32][]uint64
	outEdges     map[uint64][]*Edge
	inEdges      map[uint64][]*Edge
}

// New creates an empty graph with the given embedding dimension.
func New(dimension int) *Graph {
	return &Graph{
		dimension:    dimension,
		nodes:        make(map[uint64]*Node),
		typeIndex:    make(map[EventType][]uint64),
		sessionIndex: make(map[uint32][]uint64),
		outEdges:     make(map[uint64][]*Edge),
		inEdges:      make(map[uint64][]*Edge),
	}
}

// Dimension returns the graph's fixed embedding dimension.
func (g *Graph) Dimension() int { return g.dimension }

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// GetNode returns the node with the given id, if present.
func (g *Graph) GetNode(id uint64) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NextID returns the highest node id assigned so far (zero for an empty
// graph); the next inserted node gets NextID()+1.
func (g *Graph) NextID() uint64 { return g.nextID }

// insertNode assigns the next id to n, stores it, and updates indexes. The
// caller (WriteEngine) is responsible for setting every other field first.
func (g *Graph) insertNode(n *Node) uint64 {
	g.nextID++
	n.ID = g.nextID
	g.nodes[n.ID] = n
	g.typeIndex[n.EventType] = append(g.typeIndex[n.EventType], n.ID)
	g.sessionIndex[n.SessionID] = append(g.sessionIndex[n.SessionID], n.ID)
	return n.ID
}

// AddEdge validates that both endpoints exist and appends the edge to the
// graph and its adjacency indexes.
func (g *Graph) AddEdge(e Edge) error {
	if _, ok := g.nodes[e.SourceID]; !ok {
		return &ErrDanglingEdge{e.SourceID, e.TargetID}
	}
	if _, ok := g.nodes[e.TargetID]; !ok {
		return &ErrDanglingEdge{e.SourceID, e.TargetID}
	}
	stored := e
	g.edges = append(g.edges, &stored)
	g.outEdges[e.SourceID] = append(g.outEdges[e.SourceID], &stored)
	g.inEdges[e.TargetID] = append(g.inEdges[e.TargetID], &stored)
	return nil
}

// OutEdges returns edges whose source is id, optionally filtered to the
// given edge types (nil/empty means all types).
func (g *Graph) OutEdges(id uint64, types []EdgeType) []*Edge {
	return filterEdges(g.outEdges[id], types)
}

// InEdges returns edges whose target is id, optionally filtered to the
// given edge types (nil/empty means all types).
func (g *Graph) InEdges(id uint64, types []EdgeType) []*Edge {
	return filterEdges(g.inEdges[id], types)
}

func filterEdges(edges []*Edge, types []EdgeType) []*Edge {
	if len(types) == 0 {
		return edges
	}
	allow := make(map[EdgeType]bool, len(types))
	for _, t := range types {
		allow[t] = true
	}
	out := make([]*Edge, 0, len(edges))
	for _, e := range edges {
		if allow[e.EdgeType] {
			out = append(out, e)
		}
	}
	return out
}

// SessionIDs returns every session id that has at least one node, sorted
// ascending.
func (g *Graph) SessionIDs() []uint32 {
	ids := make([]uint32, 0, len(g.sessionIndex))
	for id := range g.sessionIndex {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SessionCount returns the number of distinct sessions with nodes.
func (g *Graph) SessionCount() int { return len(g.sessionIndex) }

// SessionNodes returns the node ids belonging to the given session, in
// insertion order.
func (g *Graph) SessionNodes(sessionID uint32) []uint64 {
	return g.sessionIndex[sessionID]
}

// TypeCount returns the number of nodes of the given type.
func (g *Graph) TypeCount(t EventType) int { return len(g.typeIndex[t]) }

// TypeNodes returns the node ids of the given type, in insertion order.
func (g *Graph) TypeNodes(t EventType) []uint64 { return g.typeIndex[t] }

// AllNodes returns every node in the graph, in unspecified order. Callers
// that need a stable order should sort the result themselves.
func (g *Graph) AllNodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// touch records an access against a node for decay/access-count bookkeeping.
func (g *Graph) touch(id uint64, now uint64) {
	if n, ok := g.nodes[id]; ok {
		n.AccessCount++
		n.LastAccessed = now
	}
}
