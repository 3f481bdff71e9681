package graphengine

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g := New(4)
	w := NewWriteEngine(4)
	result, err := w.Ingest(g, []NewEvent{
		{EventType: EventFact, Content: "a", Confidence: 0.8, SessionID: 1, Embedding: []float32{1, 2, 3, 4}},
		{EventType: EventDecision, Content: "b", Confidence: 0.6, SessionID: 1},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.AddEdge(Edge{SourceID: result.NewNodeIDs[1], TargetID: result.NewNodeIDs[0], EdgeType: EdgeCausedBy}); err != nil {
		t.Fatal(err)
	}

	data, err := Encode(g)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.NodeCount() != g.NodeCount() {
		t.Errorf("node count mismatch: %d vs %d", decoded.NodeCount(), g.NodeCount())
	}
	if decoded.EdgeCount() != g.EdgeCount() {
		t.Errorf("edge count mismatch: %d vs %d", decoded.EdgeCount(), g.EdgeCount())
	}
	if decoded.Dimension() != g.Dimension() {
		t.Errorf("dimension mismatch: %d vs %d", decoded.Dimension(), g.Dimension())
	}

	n, ok := decoded.GetNode(result.NewNodeIDs[0])
	if !ok || n.Content != "a" || len(n.Embedding) != 4 {
		t.Errorf("node %d not round-tripped correctly: %+v ok=%v", result.NewNodeIDs[0], n, ok)
	}

	if decoded.NextID() != g.NextID() {
		t.Errorf("next id mismatch: %d vs %d", decoded.NextID(), g.NextID())
	}

	out := decoded.OutEdges(result.NewNodeIDs[1], nil)
	if len(out) != 1 || out[0].TargetID != result.NewNodeIDs[0] {
		t.Errorf("expected decoded edge to survive, got %+v", out)
	}
}

func TestDecodeRejectsCorruptData(t *testing.T) {
	_, err := Decode([]byte("not a valid gob stream"))
	if err == nil {
		t.Fatal("expected error decoding garbage")
	}
}
