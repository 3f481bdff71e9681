package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amem-mcp/amem-mcp/internal/progress"
)

func TestHandleMemoryTraverseAndCausalAndContextAndResolveAndStats(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()
	r := NewToolRegistry()
	tracker := progress.NewTracker()
	defer tracker.Close()

	addResult := func(eventType, content string) uint64 {
		res, rpcErr := r.Call(ctx, "memory_add", sess, tracker, "", mustJSON(t, map[string]any{
			"event_type": eventType, "content": content,
		}))
		require.Nil(t, rpcErr)
		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
		return uint64(out["node_id"].(float64))
	}

	fact := addResult("fact", "water boils at 100C at sea level")
	decisionRes, rpcErr := r.Call(ctx, "memory_add", sess, tracker, "", mustJSON(t, map[string]any{
		"event_type": "decision", "content": "boil water before drinking",
		"edges": []map[string]any{{"target_id": fact, "edge_type": "caused_by", "outgoing": true}},
	}))
	require.Nil(t, rpcErr)
	var decisionOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(decisionRes.Content[0].Text), &decisionOut))
	decision := uint64(decisionOut["node_id"].(float64))

	// memory_traverse backward from fact should reach the decision via its caused_by edge.
	traverseResult, rpcErr := r.Call(ctx, "memory_traverse", sess, tracker, "", mustJSON(t, map[string]any{
		"start_id": fact, "direction": "backward",
	}))
	require.Nil(t, rpcErr)
	var traverseOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(traverseResult.Content[0].Text), &traverseOut))
	assert.GreaterOrEqual(t, traverseOut["visited_count"], 1.0)

	// memory_causal: fact has one dependent, the decision.
	causalResult, rpcErr := r.Call(ctx, "memory_causal", sess, tracker, "", mustJSON(t, map[string]any{
		"node_id": fact,
	}))
	require.Nil(t, rpcErr)
	var causalOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(causalResult.Content[0].Text), &causalOut))
	assert.EqualValues(t, 1, causalOut["dependent_count"])

	// memory_context around fact includes both nodes.
	contextResult, rpcErr := r.Call(ctx, "memory_context", sess, tracker, "", mustJSON(t, map[string]any{
		"node_id": fact,
	}))
	require.Nil(t, rpcErr)
	var contextOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(contextResult.Content[0].Text), &contextOut))
	assert.EqualValues(t, 2, contextOut["node_count"])

	// memory_resolve on an uncorrected node returns itself.
	resolveResult, rpcErr := r.Call(ctx, "memory_resolve", sess, tracker, "", mustJSON(t, map[string]any{
		"node_id": decision,
	}))
	require.Nil(t, rpcErr)
	var resolveOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(resolveResult.Content[0].Text), &resolveOut))
	assert.Equal(t, true, resolveOut["is_latest"])

	// memory_stats reports the two nodes and one edge.
	statsResult, rpcErr := r.Call(ctx, "memory_stats", sess, tracker, "", nil)
	require.Nil(t, rpcErr)
	var statsOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(statsResult.Content[0].Text), &statsOut))
	assert.EqualValues(t, 2, statsOut["node_count"])
	assert.EqualValues(t, 1, statsOut["edge_count"])
}

func TestHandleMemoryResolveUnknownNodeIsNodeNotFound(t *testing.T) {
	sess := newTestSession(t)
	r := NewToolRegistry()
	tracker := progress.NewTracker()
	defer tracker.Close()

	_, rpcErr := r.Call(context.Background(), "memory_resolve", sess, tracker, "", mustJSON(t, map[string]any{
		"node_id": 9999,
	}))
	require.NotNil(t, rpcErr)
	assert.EqualValues(t, -32010, rpcErr.Code)
}
