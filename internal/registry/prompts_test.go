package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amem-mcp/amem-mcp/internal/progress"
)

func TestPromptRegistryList(t *testing.T) {
	pr := NewPromptRegistry()
	names := make(map[string]bool)
	for _, p := range pr.List() {
		names[p.Name] = true
	}
	assert.True(t, names["remember"])
	assert.True(t, names["reflect"])
	assert.True(t, names["correct"])
	assert.True(t, names["summarize"])
}

func TestPromptRegistryGetUnknownSuggestsClosest(t *testing.T) {
	sess := newTestSession(t)
	pr := NewPromptRegistry()

	_, rpcErr := pr.Get(sess, "remmeber", map[string]string{})
	require.NotNil(t, rpcErr)
	assert.Contains(t, rpcErr.Message, "remember")
}

func TestPromptRememberRequiresInformation(t *testing.T) {
	sess := newTestSession(t)
	pr := NewPromptRegistry()

	_, rpcErr := pr.Get(sess, "remember", map[string]string{})
	require.NotNil(t, rpcErr)
	assert.EqualValues(t, -32602, rpcErr.Code)

	result, rpcErr := pr.Get(sess, "remember", map[string]string{"information": "the wifi password is hunter2"})
	require.Nil(t, rpcErr)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0].Content.Text, "hunter2")
}

func TestPromptReflectRequiresTopic(t *testing.T) {
	sess := newTestSession(t)
	pr := NewPromptRegistry()

	_, rpcErr := pr.Get(sess, "reflect", map[string]string{})
	require.NotNil(t, rpcErr)
	assert.EqualValues(t, -32602, rpcErr.Code)

	result, rpcErr := pr.Get(sess, "reflect", map[string]string{"topic": "why we chose rust"})
	require.Nil(t, rpcErr)
	assert.Contains(t, result.Messages[0].Content.Text, "why we chose rust")
}

func TestPromptCorrectRequiresOldAndNew(t *testing.T) {
	sess := newTestSession(t)
	pr := NewPromptRegistry()

	_, rpcErr := pr.Get(sess, "correct", map[string]string{"old_belief": "the sky is green"})
	require.NotNil(t, rpcErr)
	assert.EqualValues(t, -32602, rpcErr.Code)

	result, rpcErr := pr.Get(sess, "correct", map[string]string{
		"old_belief": "the sky is green", "new_information": "the sky is blue",
	})
	require.Nil(t, rpcErr)
	assert.Contains(t, result.Messages[0].Content.Text, "the sky is green")
	assert.Contains(t, result.Messages[0].Content.Text, "the sky is blue")
}

func TestPromptSummarizeReadsLiveGraphState(t *testing.T) {
	sess := newTestSession(t)
	ctx := context.Background()
	tools := NewToolRegistry()
	tracker := progress.NewTracker()
	defer tracker.Close()

	tools.Call(ctx, "session_start", sess, tracker, "", nil)
	tools.Call(ctx, "memory_add", sess, tracker, "", mustJSON(t, map[string]any{
		"event_type": "fact", "content": "the moon orbits the earth",
	}))

	pr := NewPromptRegistry()
	result, rpcErr := pr.Get(sess, "summarize", map[string]string{})
	require.Nil(t, rpcErr)
	assert.Contains(t, result.Messages[0].Content.Text, "the moon orbits the earth")
	assert.Contains(t, result.Description, "session")
}

func TestPromptSummarizeInvalidSessionIDIsInvalidParams(t *testing.T) {
	sess := newTestSession(t)
	pr := NewPromptRegistry()

	_, rpcErr := pr.Get(sess, "summarize", map[string]string{"session_id": "not-a-number"})
	require.NotNil(t, rpcErr)
	assert.EqualValues(t, -32602, rpcErr.Code)
}
