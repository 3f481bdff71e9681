// Package mcptypes defines the JSON-RPC 2.0 wire envelopes and Model
// Context Protocol shapes (tools, resources, prompts, capabilities) shared
// between internal/protocol and internal/transport.
package mcptypes

import "encoding/json"

// ProtocolVersion is the MCP protocol version this server negotiates.
const ProtocolVersion = "2024-11-05"

// RequestID is a JSON-RPC request id: string, integer, or null. Callers
// that need to compare ids should compare the raw json.RawMessage bytes.
type RequestID = json.RawMessage

// Request is an incoming JSON-RPC request or notification. A notification
// is a Request with a nil ID.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      RequestID       `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether r carries no id, per JSON-RPC 2.0 (the id
// field must be entirely absent, not present-and-null).
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is an outgoing JSON-RPC response: exactly one of Result or
// Error is set.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      RequestID `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// Notification is an outgoing JSON-RPC notification: no id, never a
// response to anything.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewNotification builds an outgoing notification with the jsonrpc version
// field already set.
func NewNotification(method string, params any) Notification {
	return Notification{JSONRPC: "2.0", Method: method, Params: params}
}

// NewResponse builds a successful response for id.
func NewResponse(id RequestID, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse builds an error response for id.
func NewErrorResponse(id RequestID, err *RPCError) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: err}
}
