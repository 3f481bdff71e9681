package registry

import (
	"context"
	"encoding/json"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/amem-mcp/amem-mcp/internal/graphengine"
	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
	"github.com/amem-mcp/amem-mcp/internal/progress"
)

// memoryAddEdgeInput describes one edge to add alongside a new event,
// connecting the new node to a pre-existing node id; Outgoing picks which
// end the new node is. Edges between two new nodes aren't expressible;
// memory_add stores exactly one new node per call.
type memoryAddEdgeInput struct {
	TargetID uint64 `json:"target_id" jsonschema:"required,description=Existing node id this edge connects to"`
	EdgeType string `json:"edge_type" jsonschema:"required,description=caused_by|supports|contradicts|supersedes|related_to|part_of|temporal_next"`
	Weight   float32 `json:"weight,omitempty" jsonschema:"description=Edge weight (default 1.0)"`
	Outgoing bool   `json:"outgoing,omitempty" jsonschema:"description=If true the new node is the edge source; otherwise it is the target"`
}

type memoryAddSchema struct {
	EventType  string                `json:"event_type" jsonschema:"required,description=fact|decision|inference|correction|skill|episode"`
	Content    string                `json:"content" jsonschema:"required,description=The event's textual content"`
	Confidence float32               `json:"confidence,omitempty" jsonschema:"description=Confidence in [0.0\\, 1.0]\\, default 1.0"`
	SessionID  *uint32               `json:"session_id,omitempty" jsonschema:"description=Defaults to the current session"`
	Edges      []memoryAddEdgeInput  `json:"edges,omitempty"`
}

func handleMemoryAdd(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	var params memoryAddSchema
	if err := json.Unmarshal(args, &params); err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_add: %v", err)
	}

	eventType, ok := graphengine.EventTypeFromName(params.EventType)
	if !ok {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_add: unknown event_type %q", params.EventType)
	}
	confidence := params.Confidence
	if confidence == 0 {
		confidence = 1.0
	}

	event := graphengine.NewEvent{EventType: eventType, Content: params.Content, Confidence: confidence}
	if params.SessionID != nil {
		event.SessionID = *params.SessionID
	}

	specs := make([]memsession.EdgeSpec, 0, len(params.Edges))
	for _, e := range params.Edges {
		edgeType, ok := graphengine.EdgeTypeFromName(e.EdgeType)
		if !ok {
			return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_add: unknown edge_type %q", e.EdgeType)
		}
		specs = append(specs, memsession.EdgeSpec{TargetID: e.TargetID, EdgeType: edgeType, Weight: e.Weight, Outgoing: e.Outgoing})
	}

	id, err := sess.AddEventWithEdges(ctx, event, specs)
	if err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.GraphEngineError, "memory_add: %v", err)
	}
	if n, ok := sess.Graph().GetNode(id); ok {
		event.SessionID = n.SessionID
	}

	result := map[string]any{"node_id": id, "event_type": string(eventType), "session_id": event.SessionID}
	return jsonResult(result)
}

type memoryCorrectSchema struct {
	OldNodeID  uint64 `json:"old_node_id" jsonschema:"required,description=Node id being corrected"`
	NewContent string `json:"new_content" jsonschema:"required,description=Corrected content"`
}

func handleMemoryCorrect(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	var params memoryCorrectSchema
	if err := json.Unmarshal(args, &params); err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_correct: %v", err)
	}

	old, ok := sess.Graph().GetNode(params.OldNodeID)
	if !ok {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.NodeNotFound, "memory_correct: node %d not found", params.OldNodeID)
	}
	oldContent := old.Content

	newID, err := sess.Correct(ctx, params.OldNodeID, params.NewContent)
	if err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.GraphEngineError, "memory_correct: %v", err)
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, params.NewContent, false)
	diffText := dmp.DiffPrettyText(diffs)

	result := map[string]any{
		"old_node_id": params.OldNodeID,
		"new_node_id": newID,
		"diff":        diffText,
	}
	return jsonResult(result)
}

type memoryQuerySchema struct {
	EventTypes     []string `json:"event_types,omitempty"`
	MinConfidence  *float32 `json:"min_confidence,omitempty"`
	MaxConfidence  *float32 `json:"max_confidence,omitempty"`
	SessionIDs     []uint32 `json:"session_ids,omitempty"`
	Contains       string   `json:"contains,omitempty" jsonschema:"description=Substring match against content"`
	MaxResults     int      `json:"max_results,omitempty" jsonschema:"description=default 20"`
	SortBy         string   `json:"sort_by,omitempty" jsonschema:"description=most_recent|highest_confidence|most_accessed\\, default most_recent"`
}

func handleMemoryQuery(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	var params memoryQuerySchema
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_query: %v", err)
		}
	}

	pp := graphengine.PatternParams{
		Contains:   params.Contains,
		Sort:       graphengine.PatternSort(params.SortBy),
		MaxResults: params.MaxResults,
	}
	if len(params.EventTypes) == 1 {
		if et, ok := graphengine.EventTypeFromName(params.EventTypes[0]); ok {
			pp.EventType = &et
		}
	}
	if len(params.SessionIDs) == 1 {
		sid := params.SessionIDs[0]
		pp.SessionID = &sid
	}

	nodes := sess.Graph().Pattern(pp)
	nodes = filterByConfidence(nodes, params.MinConfidence, params.MaxConfidence)

	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeSummary(n))
	}

	return jsonResult(map[string]any{"count": len(out), "nodes": out})
}

func filterByConfidence(nodes []*graphengine.Node, min, max *float32) []*graphengine.Node {
	if min == nil && max == nil {
		return nodes
	}
	out := make([]*graphengine.Node, 0, len(nodes))
	for _, n := range nodes {
		if min != nil && n.Confidence < *min {
			continue
		}
		if max != nil && n.Confidence > *max {
			continue
		}
		out = append(out, n)
	}
	return out
}

func nodeSummary(n *graphengine.Node) map[string]any {
	return map[string]any{
		"node_id":      n.ID,
		"event_type":   string(n.EventType),
		"content":      n.Content,
		"confidence":   n.Confidence,
		"session_id":   n.SessionID,
		"created_at":   n.CreatedAt,
		"decay_score":  n.DecayScore,
		"access_count": n.AccessCount,
	}
}

// noEmbeddingModelMessage is returned verbatim (as a tool-level error, not
// a protocol error) when memory_similar is asked to embed free text
// without an embedding model configured.
const noEmbeddingModelMessage = "query_text requires an embedding model. Provide query_vec directly or use memory_query for text-based search."

type memorySimilarSchema struct {
	QueryText     string    `json:"query_text,omitempty"`
	QueryVec      []float32 `json:"query_vec,omitempty"`
	TopK          int       `json:"top_k,omitempty" jsonschema:"description=default 10"`
	MinSimilarity float32   `json:"min_similarity,omitempty" jsonschema:"description=default 0.5"`
}

func handleMemorySimilar(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	var params memorySimilarSchema
	if err := json.Unmarshal(args, &params); err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_similar: %v", err)
	}

	if params.QueryVec == nil {
		if params.QueryText != "" {
			return mcptypes.CallToolResult{
				Content: []mcptypes.ToolContent{mcptypes.TextContent(noEmbeddingModelMessage)},
				IsError: true,
			}, nil
		}
		return mcptypes.CallToolResult{}, mcptypes.NewError(mcptypes.InvalidParams, "memory_similar: either query_vec or query_text is required")
	}

	scored, err := sess.Graph().Similarity(graphengine.SimilarityParams{
		Query:         params.QueryVec,
		TopK:          params.TopK,
		MinSimilarity: params.MinSimilarity,
	})
	if err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.GraphEngineError, "memory_similar: %v", err)
	}

	matches := make([]map[string]any, 0, len(scored))
	for _, s := range scored {
		m := nodeSummary(s.Node)
		m["similarity"] = s.Score
		matches = append(matches, m)
	}

	return jsonResult(map[string]any{"count": len(matches), "matches": matches})
}

// jsonResult wraps v as a single text content item carrying its indented
// JSON encoding, matching the original source's ToolCallResult::json
// helper.
func jsonResult(v any) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InternalError, "failed to encode result: %v", err)
	}
	return mcptypes.CallToolResult{Content: []mcptypes.ToolContent{mcptypes.TextContent(string(data))}}, nil
}
