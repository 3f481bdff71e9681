package graphengine

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

// dto is the on-disk shape of a Graph. It is exported-field-only so gob can
// encode it directly; Graph itself keeps its indexes unexported and rebuilds
// them from dto on Decode rather than serializing them, since they are pure
// derived state.
type dto struct {
	Dimension int
	Nodes     []*Node
	Edges     []*Edge
	NextID    uint64
}

// Encode serializes g into the .amem binary format. The caller is
// responsible for atomically publishing the result (memsession writes to a
// temp file and renames it into place so a crash mid-write never corrupts
// the existing file).
func Encode(g *Graph) ([]byte, error) {
	d := dto{
		Dimension: g.dimension,
		Nodes:     g.AllNodes(),
		Edges:     g.edges,
		NextID:    g.nextID,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(d); err != nil {
		return nil, fmt.Errorf("graphengine: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode rebuilds a Graph from bytes previously produced by Encode.
func Decode(data []byte) (*Graph, error) {
	var d dto
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&d); err != nil {
		return nil, fmt.Errorf("graphengine: decode: %w", err)
	}

	g := New(d.Dimension)
	g.nextID = d.NextID

	for _, n := range d.Nodes {
		g.nodes[n.ID] = n
		g.typeIndex[n.EventType] = append(g.typeIndex[n.EventType], n.ID)
		g.sessionIndex[n.SessionID] = append(g.sessionIndex[n.SessionID], n.ID)
	}

	for _, e := range d.Edges {
		if _, ok := g.nodes[e.SourceID]; !ok {
			return nil, &ErrDanglingEdge{e.SourceID, e.TargetID}
		}
		if _, ok := g.nodes[e.TargetID]; !ok {
			return nil, &ErrDanglingEdge{e.SourceID, e.TargetID}
		}
		g.edges = append(g.edges, e)
		g.outEdges[e.SourceID] = append(g.outEdges[e.SourceID], e)
		g.inEdges[e.TargetID] = append(g.inEdges[e.TargetID], e)
	}

	return g, nil
}
