// Package protocol implements the MCP handshake state machine and method
// dispatch: it validates handshake ordering, routes requests to the right
// registry or control operation, and shapes every outcome into a JSON-RPC
// response or notification.
package protocol

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/amem-mcp/amem-mcp/internal/logging"
	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
	"github.com/amem-mcp/amem-mcp/internal/progress"
	"github.com/amem-mcp/amem-mcp/internal/registry"
)

// state is the handshake lifecycle: Uninitialized -> Initialized ->
// ShuttingDown -> Closed.
type state int

const (
	stateUninitialized state = iota
	stateInitialized
	stateShuttingDown
	stateClosed
)

// ServerInfo identifies this server in the initialize response.
var ServerInfo = mcptypes.Implementation{Name: "amem-mcp", Version: "0.1.0"}

// Handler processes one request's params and returns a result to encode,
// or an error to shape into a JSON-RPC error object.
type Handler func(ctx context.Context, s *Server, params json.RawMessage) (any, *mcptypes.RPCError)

// Server holds the single exclusive session this process serves and the
// handshake state guarding dispatch.
type Server struct {
	mu    sync.Mutex
	state state

	session  *memsession.Session
	tools    *registry.ToolRegistry
	resources *registry.ResourceRegistry
	prompts  *registry.PromptRegistry
	tracker  *progress.Tracker

	clientCaps mcptypes.ClientCapabilities

	dispatch map[string]Handler
}

// NewServer wires a Server around an already-open session.
func NewServer(session *memsession.Session, tracker *progress.Tracker) *Server {
	s := &Server{
		session:   session,
		tools:     registry.NewToolRegistry(),
		resources: registry.NewResourceRegistry(),
		prompts:   registry.NewPromptRegistry(),
		tracker:   tracker,
	}
	s.dispatch = map[string]Handler{
		"initialize":                   handleInitialize,
		"tools/list":                   handleToolsList,
		"tools/call":                   handleToolsCall,
		"resources/list":               handleResourcesList,
		"resources/templates/list":     handleResourceTemplatesList,
		"resources/read":               handleResourcesRead,
		"prompts/list":                 handlePromptsList,
		"prompts/get":                  handlePromptsGet,
		"ping":                         handlePing,
		"shutdown":                     handleShutdown,
	}
	return s
}

// Handle processes one decoded request or notification, returning a
// Response to write back (nil for notifications, which produce none).
func (s *Server) Handle(ctx context.Context, req mcptypes.Request) *mcptypes.Response {
	if req.IsNotification() {
		s.handleNotification(ctx, req)
		return nil
	}

	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	// P-HANDSHAKE: only initialize/ping are valid before the initialized
	// notification has transitioned the server into stateInitialized.
	if st == stateUninitialized && req.Method != "initialize" && req.Method != "ping" {
		resp := mcptypes.NewErrorResponse(req.ID, mcptypes.NewError(mcptypes.InvalidRequest, "server has not completed the initialize handshake"))
		return &resp
	}
	if st == stateShuttingDown || st == stateClosed {
		resp := mcptypes.NewErrorResponse(req.ID, mcptypes.NewError(mcptypes.InvalidRequest, "server is shutting down"))
		return &resp
	}

	handler, ok := s.dispatch[req.Method]
	if !ok {
		resp := mcptypes.NewErrorResponse(req.ID, mcptypes.NewErrorf(mcptypes.MethodNotFound, "unknown method %q", req.Method))
		return &resp
	}

	result, rpcErr := handler(ctx, s, req.Params)
	if rpcErr != nil {
		resp := mcptypes.NewErrorResponse(req.ID, rpcErr)
		return &resp
	}
	resp := mcptypes.NewResponse(req.ID, result)
	return &resp
}

func (s *Server) handleNotification(ctx context.Context, req mcptypes.Request) {
	switch req.Method {
	case "notifications/initialized", "initialized":
		s.mu.Lock()
		if s.state == stateUninitialized {
			s.state = stateInitialized
		}
		s.mu.Unlock()
	case "$/cancelRequest":
		var params mcptypes.CancelParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			logging.Component("protocol").Warn().Err(err).Msg("malformed $/cancelRequest, ignoring")
			return
		}
		s.tracker.Cancel(params.ProgressToken)
	default:
		logging.Component("protocol").Debug().Str("method", req.Method).Msg("unhandled notification")
	}
}

func handleInitialize(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	var params mcptypes.InitializeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcptypes.NewErrorf(mcptypes.InvalidParams, "initialize: %v", err)
	}

	if params.ProtocolVersion != mcptypes.ProtocolVersion {
		logging.Component("protocol").Warn().
			Str("client_version", params.ProtocolVersion).
			Str("server_version", mcptypes.ProtocolVersion).
			Msg("client requested a different protocol version, proceeding with server version")
	}

	s.mu.Lock()
	s.clientCaps = params.Capabilities
	s.mu.Unlock()

	return mcptypes.InitializeResult{
		ProtocolVersion: mcptypes.ProtocolVersion,
		Capabilities: mcptypes.ServerCapabilities{
			Tools:     &mcptypes.ToolsCapability{},
			Resources: &mcptypes.ResourcesCapability{Subscribe: true},
			Prompts:   &mcptypes.PromptsCapability{},
			Logging:   &struct{}{},
		},
		ServerInfo: ServerInfo,
	}, nil
}

func handleToolsList(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	return mcptypes.ListToolsResult{Tools: s.tools.List()}, nil
}

func handleToolsCall(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	var params mcptypes.CallToolParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcptypes.NewErrorf(mcptypes.InvalidParams, "tools/call: %v", err)
	}
	result, rpcErr := s.tools.Call(ctx, params.Name, s.session, s.tracker, params.ProgressToken, params.Arguments)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

func handleResourcesList(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	return mcptypes.ListResourcesResult{Resources: s.resources.List()}, nil
}

func handleResourceTemplatesList(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	return mcptypes.ListResourceTemplatesResult{ResourceTemplates: s.resources.Templates()}, nil
}

func handleResourcesRead(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	var params mcptypes.ReadResourceParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcptypes.NewErrorf(mcptypes.InvalidParams, "resources/read: %v", err)
	}
	result, rpcErr := s.resources.Read(s.session, params.URI)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

func handlePromptsList(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	return mcptypes.ListPromptsResult{Prompts: s.prompts.List()}, nil
}

func handlePromptsGet(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	var params mcptypes.GetPromptParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcptypes.NewErrorf(mcptypes.InvalidParams, "prompts/get: %v", err)
	}
	result, rpcErr := s.prompts.Get(s.session, params.Name, params.Arguments)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

func handlePing(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	return struct{}{}, nil
}

func handleShutdown(ctx context.Context, s *Server, raw json.RawMessage) (any, *mcptypes.RPCError) {
	s.mu.Lock()
	s.state = stateShuttingDown
	s.mu.Unlock()
	s.session.Close()
	return struct{}{}, nil
}
