package registry

import (
	"context"
	"encoding/json"

	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
	"github.com/amem-mcp/amem-mcp/internal/progress"
)

type sessionStartSchema struct{}

func handleSessionStart(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	id := sess.StartSession()
	return jsonResult(map[string]any{"session_id": id})
}

type sessionEndSchema struct {
	CreateEpisode bool   `json:"create_episode,omitempty" jsonschema:"description=Whether to compress the session into an episode node\\, default true"`
	Summary       string `json:"summary,omitempty" jsonschema:"description=Episode summary text; required when create_episode is true"`
}

func handleSessionEnd(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	params := sessionEndSchema{CreateEpisode: true}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "session_end: %v", err)
		}
	}

	endedSession := sess.CurrentSessionID()

	if !params.CreateEpisode {
		if err := sess.Save(); err != nil {
			return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.IoError, "session_end: %v", err)
		}
		return jsonResult(map[string]any{
			"session_id":      endedSession,
			"episode_created": false,
		})
	}

	if params.Summary == "" {
		return mcptypes.CallToolResult{}, mcptypes.NewError(mcptypes.InvalidParams, "session_end: summary is required when create_episode is true")
	}

	episodeID, err := sess.EndSessionWithEpisode(ctx, params.Summary)
	if err != nil {
		// A non-zero episode id means the episode was written and the
		// forced save is what failed.
		if episodeID != 0 {
			return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.IoError, "session_end: %v", err)
		}
		return mcptypes.CallToolResult{}, mcptypes.NewErrorf(mcptypes.GraphEngineError, "session_end: %v", err)
	}

	return jsonResult(map[string]any{
		"session_id":      endedSession,
		"episode_created":  true,
		"episode_node_id":  episodeID,
	})
}
