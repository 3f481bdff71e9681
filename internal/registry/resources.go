package registry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/amem-mcp/amem-mcp/internal/graphengine"
	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
)

// recentAndImportantLimit bounds the amem://graph/recent and
// amem://graph/important resources.
const recentAndImportantLimit = 20

// ResourceRegistry serves the graph's read-only resource surface: a small
// set of concrete resources plus three templated families resolved against
// the open session at read time.
type ResourceRegistry struct{}

// NewResourceRegistry builds the resource registry. Unlike ToolRegistry,
// resources are resolved against live session state rather than a
// pre-registered handler table, so there's nothing to configure up front.
func NewResourceRegistry() *ResourceRegistry { return &ResourceRegistry{} }

// List returns the registry's concrete (non-templated) resources.
func (r *ResourceRegistry) List() []mcptypes.Resource {
	return []mcptypes.Resource{
		{URI: "amem://graph/stats", Name: "Graph statistics", Description: "Node/edge counts and type breakdown", MimeType: "application/json"},
		{URI: "amem://graph/recent", Name: "Recent memories", Description: "The 20 most recently created nodes", MimeType: "application/json"},
		{URI: "amem://graph/important", Name: "Important memories", Description: "The 20 highest decay-score nodes", MimeType: "application/json"},
	}
}

// Templates returns the registry's parameterized resource families.
func (r *ResourceRegistry) Templates() []mcptypes.ResourceTemplate {
	return []mcptypes.ResourceTemplate{
		{URITemplate: "amem://node/{id}", Name: "Node by id", Description: "A single node's full content", MimeType: "application/json"},
		{URITemplate: "amem://session/{id}", Name: "Session nodes", Description: "Every node belonging to a session", MimeType: "application/json"},
		{URITemplate: "amem://types/{type}", Name: "Nodes by event type", Description: "Every node of a given event type", MimeType: "application/json"},
	}
}

// names lists every known URI (templates shown with their id slot) for
// "did you mean" suggestions on unknown URIs.
func (r *ResourceRegistry) names() []string {
	var out []string
	for _, res := range r.List() {
		out = append(out, res.URI)
	}
	for _, t := range r.Templates() {
		out = append(out, t.URITemplate)
	}
	return out
}

// Read resolves uri against sess's graph, matching it first against the
// concrete resources, then against each template prefix.
func (r *ResourceRegistry) Read(sess *memsession.Session, uri string) (mcptypes.ReadResourceResult, *mcptypes.RPCError) {
	g := sess.Graph()

	switch uri {
	case "amem://graph/stats":
		return textResult(uri, statsPayload(sess, g)), nil
	case "amem://graph/recent":
		return textResult(uri, nodesPayload(mostRecent(g.AllNodes(), recentAndImportantLimit))), nil
	case "amem://graph/important":
		return textResult(uri, nodesPayload(mostImportant(g.AllNodes(), recentAndImportantLimit))), nil
	}

	if rest, ok := strings.CutPrefix(uri, "amem://node/"); ok {
		id, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return mcptypes.ReadResourceResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "amem://node: invalid id %q", rest)
		}
		n, ok := g.GetNode(id)
		if !ok {
			return mcptypes.ReadResourceResult{}, mcptypes.NewErrorf(mcptypes.NodeNotFound, "amem://node/%d: not found", id)
		}
		return textResult(uri, nodeSummary(n)), nil
	}

	if rest, ok := strings.CutPrefix(uri, "amem://session/"); ok {
		id, err := strconv.ParseUint(rest, 10, 32)
		if err != nil {
			return mcptypes.ReadResourceResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "amem://session: invalid id %q", rest)
		}
		members := g.SessionNodes(uint32(id))
		if len(members) == 0 {
			return mcptypes.ReadResourceResult{}, mcptypes.NewErrorf(mcptypes.SessionNotFound, "amem://session/%d: not found", id)
		}
		nodes := make([]*graphengine.Node, 0, len(members))
		for _, nodeID := range members {
			if n, ok := g.GetNode(nodeID); ok {
				nodes = append(nodes, n)
			}
		}
		return textResult(uri, nodesPayload(nodes)), nil
	}

	if rest, ok := strings.CutPrefix(uri, "amem://types/"); ok {
		t, ok := graphengine.EventTypeFromName(rest)
		if !ok {
			return mcptypes.ReadResourceResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "amem://types: unknown event type %q", rest)
		}
		ids := g.TypeNodes(t)
		nodes := make([]*graphengine.Node, 0, len(ids))
		for _, id := range ids {
			if n, ok := g.GetNode(id); ok {
				nodes = append(nodes, n)
			}
		}
		return textResult(uri, nodesPayload(nodes)), nil
	}

	return mcptypes.ReadResourceResult{}, notFoundWithSuggestion(mcptypes.ResourceNotFound, "resource", uri, r.names())
}

func statsPayload(sess *memsession.Session, g *graphengine.Graph) map[string]any {
	typeCounts := make(map[string]int, len(graphengine.AllEventTypes))
	for _, t := range graphengine.AllEventTypes {
		typeCounts[string(t)] = g.TypeCount(t)
	}
	return map[string]any{
		"node_count":    g.NodeCount(),
		"edge_count":    g.EdgeCount(),
		"session_count": g.SessionCount(),
		"type_counts":   typeCounts,
	}
}

func nodesPayload(nodes []*graphengine.Node) map[string]any {
	out := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeSummary(n))
	}
	return map[string]any{"count": len(out), "nodes": out}
}

func mostRecent(nodes []*graphengine.Node, limit int) []*graphengine.Node {
	sorted := append([]*graphengine.Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt > sorted[j].CreatedAt })
	return truncate(sorted, limit)
}

func mostImportant(nodes []*graphengine.Node, limit int) []*graphengine.Node {
	sorted := append([]*graphengine.Node(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].DecayScore > sorted[j].DecayScore })
	return truncate(sorted, limit)
}

func truncate(nodes []*graphengine.Node, limit int) []*graphengine.Node {
	if len(nodes) > limit {
		return nodes[:limit]
	}
	return nodes
}

func textResult(uri string, v any) mcptypes.ReadResourceResult {
	result, rpcErr := jsonResult(v)
	if rpcErr != nil {
		// v is always a plain map built above; it can't fail to marshal.
		panic(fmt.Sprintf("registry: failed to encode resource %s: %v", uri, rpcErr))
	}
	return mcptypes.ReadResourceResult{Contents: []mcptypes.ResourceContent{
		{URI: uri, MimeType: "application/json", Text: result.Content[0].Text},
	}}
}
