package registry

import (
	"context"
	"encoding/json"
	"os"

	"github.com/amem-mcp/amem-mcp/internal/graphengine"
	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
	"github.com/amem-mcp/amem-mcp/internal/progress"
)

type memoryTraverseSchema struct {
	StartID   uint64   `json:"start_id" jsonschema:"required,description=Starting node id"`
	EdgeTypes []string `json:"edge_types,omitempty" jsonschema:"description=Defaults to every edge type"`
	Direction string   `json:"direction,omitempty" jsonschema:"description=forward|backward|both\\, default forward"`
	MaxDepth  int      `json:"max_depth,omitempty" jsonschema:"description=default 5"`
}

func handleMemoryTraverse(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	var params memoryTraverseSchema
	if err := json.Unmarshal(args, &params); err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_traverse: %v", err)
	}

	direction := graphengine.DirectionOutgoing
	switch params.Direction {
	case "backward":
		direction = graphengine.DirectionIncoming
	case "both":
		direction = graphengine.DirectionBoth
	}

	var edgeTypes []graphengine.EdgeType
	for _, name := range params.EdgeTypes {
		if et, ok := graphengine.EdgeTypeFromName(name); ok {
			edgeTypes = append(edgeTypes, et)
		}
	}

	steps, err := sess.Graph().Traverse(graphengine.TraversalParams{
		StartID:   params.StartID,
		Direction: direction,
		EdgeTypes: edgeTypes,
		MaxDepth:  params.MaxDepth,
	})
	if err != nil {
		return mcptypes.CallToolResult{}, mapGraphEngineError(err)
	}

	visited := make([]map[string]any, 0, len(steps))
	var edges []map[string]any
	for _, step := range steps {
		m := nodeSummary(step.Node)
		m["depth"] = step.Depth
		visited = append(visited, m)
		if step.ViaEdge != nil {
			edges = append(edges, map[string]any{
				"source_id": step.ViaEdge.SourceID,
				"target_id": step.ViaEdge.TargetID,
				"edge_type": string(step.ViaEdge.EdgeType),
				"weight":    step.ViaEdge.Weight,
			})
		}
	}

	return jsonResult(map[string]any{
		"start_id":       params.StartID,
		"visited_count":  len(visited),
		"visited":        visited,
		"edges_traversed": edges,
	})
}

type memoryCausalSchema struct {
	NodeID   uint64 `json:"node_id" jsonschema:"required"`
	MaxDepth int    `json:"max_depth,omitempty" jsonschema:"description=default 5"`
}

func handleMemoryCausal(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	var params memoryCausalSchema
	if err := json.Unmarshal(args, &params); err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_causal: %v", err)
	}

	chain, err := sess.Graph().Causal(graphengine.CausalParams{NodeID: params.NodeID, MaxDepth: params.MaxDepth})
	if err != nil {
		return mcptypes.CallToolResult{}, mapGraphEngineError(err)
	}

	dependents := make([]map[string]any, 0, len(chain.Dependents))
	affectedDecisions, affectedInferences := 0, 0
	for _, step := range chain.Dependents {
		dependents = append(dependents, nodeSummary(step.Node))
		switch step.Node.EventType {
		case graphengine.EventDecision:
			affectedDecisions++
		case graphengine.EventInference:
			affectedInferences++
		}
	}

	return jsonResult(map[string]any{
		"root_id":             params.NodeID,
		"dependent_count":     len(dependents),
		"affected_decisions":  affectedDecisions,
		"affected_inferences": affectedInferences,
		"dependents":          dependents,
	})
}

type memoryContextSchema struct {
	NodeID uint64 `json:"node_id" jsonschema:"required"`
	Depth  int    `json:"depth,omitempty" jsonschema:"description=default 2\\, clamped to [1\\,5]"`
}

func handleMemoryContext(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	var params memoryContextSchema
	if err := json.Unmarshal(args, &params); err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_context: %v", err)
	}

	sub, err := sess.Graph().Context(graphengine.ContextParams{NodeID: params.NodeID, Depth: params.Depth})
	if err != nil {
		return mcptypes.CallToolResult{}, mapGraphEngineError(err)
	}

	nodes := make([]map[string]any, 0, len(sub.Nodes))
	for _, n := range sub.Nodes {
		nodes = append(nodes, nodeSummary(n))
	}
	edges := make([]map[string]any, 0, len(sub.Edges))
	for _, e := range sub.Edges {
		edges = append(edges, map[string]any{
			"source_id": e.SourceID,
			"target_id": e.TargetID,
			"edge_type": string(e.EdgeType),
			"weight":    e.Weight,
		})
	}

	return jsonResult(map[string]any{
		"center_id":  sub.Center.ID,
		"depth":      params.Depth,
		"node_count": len(nodes),
		"edge_count": len(edges),
		"nodes":      nodes,
		"edges":      edges,
	})
}

type memoryResolveSchema struct {
	NodeID uint64 `json:"node_id" jsonschema:"required,description=Node id to resolve"`
}

func handleMemoryResolve(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	var params memoryResolveSchema
	if err := json.Unmarshal(args, &params); err != nil {
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "memory_resolve: %v", err)
	}

	resolved, err := sess.Graph().Resolve(params.NodeID)
	if err != nil {
		return mcptypes.CallToolResult{}, mapGraphEngineError(err)
	}

	return jsonResult(map[string]any{
		"original_id": params.NodeID,
		"resolved_id": resolved.ID,
		"is_latest":   resolved.ID == params.NodeID,
		"latest":      nodeSummary(resolved),
	})
}

type memoryStatsSchema struct{}

func handleMemoryStats(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	g := sess.Graph()

	typeCounts := make(map[string]int, len(graphengine.AllEventTypes))
	for _, t := range graphengine.AllEventTypes {
		typeCounts[string(t)] = g.TypeCount(t)
	}

	fileSize := int64(0)
	if info, err := os.Stat(sess.FilePath()); err == nil {
		fileSize = info.Size()
	}

	return jsonResult(map[string]any{
		"node_count":       g.NodeCount(),
		"edge_count":       g.EdgeCount(),
		"dimension":        g.Dimension(),
		"session_count":    g.SessionCount(),
		"current_session":  sess.CurrentSessionID(),
		"type_counts":      typeCounts,
		"file_size_bytes":  fileSize,
		"file_path":        sess.FilePath(),
	})
}

// mapGraphEngineError classifies a graphengine error into the right
// JSON-RPC error code instead of always falling back to GraphEngineError.
func mapGraphEngineError(err error) *mcptypes.RPCError {
	switch err.(type) {
	case *graphengine.ErrNodeNotFound:
		return mcptypes.NewErrorf(mcptypes.NodeNotFound, "%v", err)
	default:
		return mcptypes.NewErrorf(mcptypes.GraphEngineError, "%v", err)
	}
}
