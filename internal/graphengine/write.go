package graphengine

import (
	"fmt"
	"sync/atomic"
	"time"
)

// clock guarantees strictly increasing CreatedAt timestamps even when many
// nodes are inserted within the same wall-clock nanosecond (e.g. a batch
// transaction), which keeps "most_recent" sorts stable without relying on
// id as a secondary key.
var clock uint64

func nextTimestamp() uint64 {
	now := uint64(time.Now().UnixNano())
	for {
		last := atomic.LoadUint64(&clock)
		next := now
		if next <= last {
			next = last + 1
		}
		if atomic.CompareAndSwapUint64(&clock, last, next) {
			return next
		}
	}
}

// NewEvent is the input to WriteEngine.Ingest for a single node.
type NewEvent struct {
	EventType  EventType
	Content    string
	Confidence float32
	SessionID  uint32
	Embedding  []float32
}

// NewEdge is an edge to add as part of an Ingest call. SourceID/TargetID
// may reference either pre-existing node ids or ids newly assigned within
// the same Ingest batch.
type NewEdge struct {
	SourceID uint64
	TargetID uint64
	EdgeType EdgeType
	Weight   float32
}

// IngestResult reports the ids assigned to newly inserted nodes, in the
// same order as the NewEvent slice passed to Ingest.
type IngestResult struct {
	NewNodeIDs []uint64
}

// WriteEngine performs every graph mutation: inserting events, adding
// edges, corrections, and session compression into episodes.
type WriteEngine struct {
	dimension int
}

// NewWriteEngine creates a write engine for graphs of the given embedding
// dimension.
func NewWriteEngine(dimension int) *WriteEngine {
	return &WriteEngine{dimension: dimension}
}

// Ingest inserts events and edges into g as a single batch. On any edge
// validation failure, nodes already inserted in this call remain (callers
// that need all-or-nothing semantics, such as a transaction commit, should
// ingest into a scratch copy first; memsession does this for
// CommitTransaction).
func (w *WriteEngine) Ingest(g *Graph, events []NewEvent, edges []NewEdge) (IngestResult, error) {
	result := IngestResult{NewNodeIDs: make([]uint64, 0, len(events))}

	for _, e := range events {
		now := nextTimestamp()
		n := &Node{
			EventType:    e.EventType,
			Content:      e.Content,
			Confidence:   e.Confidence,
			SessionID:    e.SessionID,
			CreatedAt:    now,
			LastAccessed: now,
			DecayScore:   e.Confidence,
			Embedding:    e.Embedding,
		}
		id := g.insertNode(n)
		result.NewNodeIDs = append(result.NewNodeIDs, id)
	}

	for _, e := range edges {
		if err := g.AddEdge(Edge{
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			EdgeType: e.EdgeType,
			Weight:   e.Weight,
		}); err != nil {
			return result, fmt.Errorf("ingest: %w", err)
		}
	}

	return result, nil
}

// Correct writes a new node carrying newContent and links it to oldNodeID
// via a supersedes edge (new -> old). Returns the new node's id.
func (w *WriteEngine) Correct(g *Graph, oldNodeID uint64, newContent string, sessionID uint32) (uint64, error) {
	old, ok := g.GetNode(oldNodeID)
	if !ok {
		return 0, &ErrNodeNotFound{ID: oldNodeID}
	}

	result, err := w.Ingest(g, []NewEvent{{
		EventType:  EventCorrection,
		Content:    newContent,
		Confidence: old.Confidence,
		SessionID:  sessionID,
	}}, nil)
	if err != nil {
		return 0, err
	}
	newID := result.NewNodeIDs[0]

	if err := g.AddEdge(Edge{
		SourceID: newID,
		TargetID: oldNodeID,
		EdgeType: EdgeSupersedes,
		Weight:   1.0,
	}); err != nil {
		return 0, err
	}

	return newID, nil
}

// CompressSession writes an episode node summarizing every node in
// sessionID, linked to each member node via a part_of edge (episode
// contains the member). Returns the new episode node's id.
func (w *WriteEngine) CompressSession(g *Graph, sessionID uint32, summary string) (uint64, error) {
	members := g.SessionNodes(sessionID)

	result, err := w.Ingest(g, []NewEvent{{
		EventType:  EventEpisode,
		Content:    summary,
		Confidence: 1.0,
		SessionID:  sessionID,
	}}, nil)
	if err != nil {
		return 0, err
	}
	episodeID := result.NewNodeIDs[0]

	for _, memberID := range members {
		if memberID == episodeID {
			continue
		}
		if err := g.AddEdge(Edge{
			SourceID: episodeID,
			TargetID: memberID,
			EdgeType: EdgePartOf,
			Weight:   1.0,
		}); err != nil {
			return 0, err
		}
	}

	return episodeID, nil
}
