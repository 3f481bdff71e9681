package protocol

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
	"github.com/amem-mcp/amem-mcp/internal/progress"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.amem")
	sess, err := memsession.Open(path, 8)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return NewServer(sess, progress.NewTracker())
}

func req(id int, method string, params any) mcptypes.Request {
	raw, _ := json.Marshal(params)
	idRaw, _ := json.Marshal(id)
	return mcptypes.Request{ID: idRaw, Method: method, Params: raw}
}

func TestHandshakeGateRejectsRequestsBeforeInitialized(t *testing.T) {
	s := newTestServer(t)
	resp := s.Handle(context.Background(), req(1, "tools/list", nil))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)
	assert.EqualValues(t, -32600, resp.Error.Code)
}

func TestPingSucceedsBeforeInitialize(t *testing.T) {
	s := newTestServer(t)
	resp := s.Handle(context.Background(), req(1, "ping", nil))
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
}

func TestInitializeThenToolsList(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp := s.Handle(ctx, req(1, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0"},
	}))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	// Requests still gated until the initialized notification arrives.
	resp = s.Handle(ctx, req(2, "tools/list", nil))
	require.NotNil(t, resp)
	require.NotNil(t, resp.Error)

	s.Handle(ctx, notify("notifications/initialized", nil))

	resp = s.Handle(ctx, req(3, "tools/list", nil))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)
}

func notify(method string, params any) mcptypes.Request {
	raw, _ := json.Marshal(params)
	return mcptypes.Request{Method: method, Params: raw}
}
