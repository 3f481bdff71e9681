package registry

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amem-mcp/amem-mcp/internal/progress"
)

func TestSessionStartAllocatesIncreasingIDs(t *testing.T) {
	sess := newTestSession(t)
	r := NewToolRegistry()
	tracker := progress.NewTracker()
	defer tracker.Close()

	first, rpcErr := r.Call(context.Background(), "session_start", sess, tracker, "", nil)
	require.Nil(t, rpcErr)
	var firstOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(first.Content[0].Text), &firstOut))

	second, rpcErr := r.Call(context.Background(), "session_start", sess, tracker, "", nil)
	require.Nil(t, rpcErr)
	var secondOut map[string]any
	require.NoError(t, json.Unmarshal([]byte(second.Content[0].Text), &secondOut))

	assert.Less(t, firstOut["session_id"], secondOut["session_id"])
}

func TestSessionEndWithoutEpisodeJustSaves(t *testing.T) {
	sess := newTestSession(t)
	r := NewToolRegistry()
	tracker := progress.NewTracker()
	defer tracker.Close()

	r.Call(context.Background(), "session_start", sess, tracker, "", nil)
	result, rpcErr := r.Call(context.Background(), "session_end", sess, tracker, "", mustJSON(t, map[string]any{
		"create_episode": false,
	}))
	require.Nil(t, rpcErr)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &out))
	assert.Equal(t, false, out["episode_created"])
	assert.False(t, sess.Dirty())
}

func TestSessionEndWithEpisodeRequiresSummary(t *testing.T) {
	sess := newTestSession(t)
	r := NewToolRegistry()
	tracker := progress.NewTracker()
	defer tracker.Close()

	r.Call(context.Background(), "session_start", sess, tracker, "", nil)
	_, rpcErr := r.Call(context.Background(), "session_end", sess, tracker, "", mustJSON(t, map[string]any{}))
	require.NotNil(t, rpcErr)
	assert.EqualValues(t, -32602, rpcErr.Code)
}

func TestSessionEndWithEpisodeCreatesEpisodeNode(t *testing.T) {
	sess := newTestSession(t)
	r := NewToolRegistry()
	tracker := progress.NewTracker()
	defer tracker.Close()

	r.Call(context.Background(), "session_start", sess, tracker, "", nil)
	r.Call(context.Background(), "memory_add", sess, tracker, "", mustJSON(t, map[string]any{
		"event_type": "fact", "content": "something happened",
	}))

	result, rpcErr := r.Call(context.Background(), "session_end", sess, tracker, "", mustJSON(t, map[string]any{
		"create_episode": true, "summary": "learned something",
	}))
	require.Nil(t, rpcErr)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &out))
	assert.Equal(t, true, out["episode_created"])
	assert.EqualValues(t, 0, sess.CurrentSessionID())
}
