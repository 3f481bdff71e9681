// Package registry holds the three MCP registries (tools, resources,
// prompts) that internal/protocol dispatches into. Each registry owns its
// own name→definition map and a lookup-with-suggestion path for unknown
// names.
package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/invopop/jsonschema"

	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
	"github.com/amem-mcp/amem-mcp/internal/progress"
)

// ToolHandler executes one tool call against the open session.
type ToolHandler func(ctx context.Context, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError)

type toolEntry struct {
	def     mcptypes.Tool
	handler ToolHandler
}

// ToolRegistry is the dispatch table for tools/list and tools/call.
type ToolRegistry struct {
	mu      sync.RWMutex
	entries map[string]toolEntry
	order   []string
}

// NewToolRegistry builds the registry with every canonical tool
// registered.
func NewToolRegistry() *ToolRegistry {
	r := &ToolRegistry{entries: make(map[string]toolEntry)}
	r.register("memory_add", "Store a new cognitive event with optional edges to existing nodes", memoryAddSchema{}, handleMemoryAdd)
	r.register("memory_correct", "Correct an existing belief, superseding it with new content", memoryCorrectSchema{}, handleMemoryCorrect)
	r.register("memory_query", "Find memories matching conditions (pattern query)", memoryQuerySchema{}, handleMemoryQuery)
	r.register("memory_similar", "Find semantically similar memories using vector similarity", memorySimilarSchema{}, handleMemorySimilar)
	r.register("memory_traverse", "Walk the graph from a starting node, following edges of specified types", memoryTraverseSchema{}, handleMemoryTraverse)
	r.register("memory_causal", "Impact analysis: find everything that depends on a given node", memoryCausalSchema{}, handleMemoryCausal)
	r.register("memory_context", "Get the full context (subgraph) around a node", memoryContextSchema{}, handleMemoryContext)
	r.register("memory_resolve", "Follow the supersedes chain to get the latest version of a belief", memoryResolveSchema{}, handleMemoryResolve)
	r.register("memory_stats", "Get statistics about the memory graph", memoryStatsSchema{}, handleMemoryStats)
	r.register("session_start", "Start a new interaction session", sessionStartSchema{}, handleSessionStart)
	r.register("session_end", "End a session and optionally create an episode summary node", sessionEndSchema{}, handleSessionEnd)
	return r
}

var reflector = &jsonschema.Reflector{
	ExpandedStruct:            true,
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

func schemaFor(v any) json.RawMessage {
	s := reflector.Reflect(v)
	data, err := json.Marshal(s)
	if err != nil {
		// Every schema struct here is a plain, reflectable Go struct;
		// marshaling it can't fail.
		panic("registry: failed to marshal generated schema: " + err.Error())
	}
	return data
}

func (r *ToolRegistry) register(name, description string, schemaStruct any, handler ToolHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = toolEntry{
		def: mcptypes.Tool{
			Name:        name,
			Description: description,
			InputSchema: schemaFor(schemaStruct),
		},
		handler: handler,
	}
	r.order = append(r.order, name)
}

// List returns every registered tool definition in registration order.
func (r *ToolRegistry) List() []mcptypes.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mcptypes.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].def)
	}
	return out
}

// Names returns every registered tool name, for "did you mean" matching.
func (r *ToolRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Call dispatches to name's handler. Unknown names return a ToolNotFound
// error carrying a "did you mean" suggestion when one scores close enough.
func (r *ToolRegistry) Call(ctx context.Context, name string, sess *memsession.Session, tracker *progress.Tracker, progressToken string, args json.RawMessage) (mcptypes.CallToolResult, *mcptypes.RPCError) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return mcptypes.CallToolResult{}, notFoundWithSuggestion(mcptypes.ToolNotFound, "tool", name, r.Names())
	}
	return entry.handler(ctx, sess, tracker, progressToken, args)
}

// notFoundWithSuggestion builds a NotFound-family error whose message
// additionally names the closest known candidate by normalized Levenshtein
// distance, when one is close enough to plausibly be a typo.
func notFoundWithSuggestion(code mcptypes.ErrorCode, kind, name string, candidates []string) *mcptypes.RPCError {
	best := closestMatch(name, candidates)
	if best == "" {
		return mcptypes.NewErrorf(code, "unknown %s: %q", kind, name)
	}
	return mcptypes.NewErrorf(code, "unknown %s: %q (did you mean %q?)", kind, name, best)
}

// suggestionThreshold bounds how close a candidate must be (as a fraction
// of the longer string's length) to be offered as a suggestion; distant
// candidates are just noise.
const suggestionThreshold = 0.5

func closestMatch(name string, candidates []string) string {
	best := ""
	bestScore := -1.0
	for _, c := range candidates {
		dist := levenshtein.ComputeDistance(name, c)
		longest := len(name)
		if len(c) > longest {
			longest = len(c)
		}
		if longest == 0 {
			continue
		}
		score := 1.0 - float64(dist)/float64(longest)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if bestScore < suggestionThreshold {
		return ""
	}
	return best
}
