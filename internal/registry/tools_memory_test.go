package registry

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amem-mcp/amem-mcp/internal/memsession"
	"github.com/amem-mcp/amem-mcp/internal/progress"
)

func newTestSession(t *testing.T) *memsession.Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.amem")
	sess, err := memsession.Open(path, 4)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestHandleMemoryAddStoresOneNodeWithEdges(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()
	tracker := progress.NewTracker()
	defer tracker.Close()

	r := NewToolRegistry()

	first, rpcErr := r.Call(ctx, "memory_add", sess, tracker, "", mustJSON(t, map[string]any{
		"event_type": "fact", "content": "rust is a systems language", "confidence": 0.9,
	}))
	require.Nil(t, rpcErr)
	var firstOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(first.Content[0].Text), &firstOut))
	firstID := uint64(firstOut["node_id"].(float64))
	assert.Equal(t, 1.0, firstOut["session_id"])

	second, rpcErr := r.Call(ctx, "memory_add", sess, tracker, "", mustJSON(t, map[string]any{
		"event_type": "decision", "content": "use rust",
		"edges": []map[string]any{{"target_id": firstID, "edge_type": "caused_by", "outgoing": true}},
	}))
	require.Nil(t, rpcErr)
	var secondOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(second.Content[0].Text), &secondOut))

	assert.Equal(t, 2, sess.Graph().NodeCount(), "memory_add must not create spurious nodes for edges")
	assert.Equal(t, 1, sess.Graph().EdgeCount())
}

func TestHandleMemoryAddUnknownEventTypeIsInvalidParams(t *testing.T) {
	sess := newTestSession(t)
	r := NewToolRegistry()
	_, rpcErr := r.Call(context.Background(), "memory_add", sess, progress.NewTracker(), "", mustJSON(t, map[string]any{
		"event_type": "nonsense", "content": "x",
	}))
	require.NotNil(t, rpcErr)
	assert.EqualValues(t, -32602, rpcErr.Code)
}

func TestHandleMemoryCorrectSupersedesAndDiffs(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()
	r := NewToolRegistry()
	tracker := progress.NewTracker()
	defer tracker.Close()

	add, rpcErr := r.Call(ctx, "memory_add", sess, tracker, "", mustJSON(t, map[string]any{
		"event_type": "fact", "content": "the sky is green",
	}))
	require.Nil(t, rpcErr)
	var addOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(add.Content[0].Text), &addOut))
	oldID := uint64(addOut["node_id"].(float64))

	result, rpcErr := r.Call(ctx, "memory_correct", sess, tracker, "", mustJSON(t, map[string]any{
		"old_node_id": oldID, "new_content": "the sky is blue",
	}))
	require.Nil(t, rpcErr)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &out))
	assert.Equal(t, float64(oldID), out["old_node_id"])
	assert.Contains(t, out["diff"], "")
	assert.True(t, sess.Graph().IsSuperseded(oldID))
}

func TestHandleMemoryQueryFiltersByConfidence(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()
	r := NewToolRegistry()
	tracker := progress.NewTracker()
	defer tracker.Close()

	r.Call(ctx, "memory_add", sess, tracker, "", mustJSON(t, map[string]any{"event_type": "fact", "content": "low", "confidence": 0.2}))
	r.Call(ctx, "memory_add", sess, tracker, "", mustJSON(t, map[string]any{"event_type": "fact", "content": "high", "confidence": 0.95}))

	min := float32(0.5)
	result, rpcErr := r.Call(ctx, "memory_query", sess, tracker, "", mustJSON(t, map[string]any{
		"min_confidence": min,
	}))
	require.Nil(t, rpcErr)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &out))
	assert.EqualValues(t, 1, out["count"])
}

func TestHandleMemorySimilarWithoutVectorOrTextIsInvalidParams(t *testing.T) {
	sess := newTestSession(t)
	r := NewToolRegistry()
	_, rpcErr := r.Call(context.Background(), "memory_similar", sess, progress.NewTracker(), "", mustJSON(t, map[string]any{}))
	require.NotNil(t, rpcErr)
	assert.EqualValues(t, -32602, rpcErr.Code)
}

func TestHandleMemorySimilarWithQueryTextOnlyReturnsToolLevelError(t *testing.T) {
	sess := newTestSession(t)
	r := NewToolRegistry()
	result, rpcErr := r.Call(context.Background(), "memory_similar", sess, progress.NewTracker(), "", mustJSON(t, map[string]any{
		"query_text": "something",
	}))
	require.Nil(t, rpcErr)
	assert.True(t, result.IsError)
	assert.Equal(t, noEmbeddingModelMessage, result.Content[0].Text)
}

func TestUnknownToolSuggestsClosestName(t *testing.T) {
	sess := newTestSession(t)
	r := NewToolRegistry()
	_, rpcErr := r.Call(context.Background(), "memory_ad", sess, progress.NewTracker(), "", mustJSON(t, map[string]any{}))
	require.NotNil(t, rpcErr)
	assert.EqualValues(t, -32001, rpcErr.Code)
	assert.Contains(t, rpcErr.Message, "memory_add")
}
