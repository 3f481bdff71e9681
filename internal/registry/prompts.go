package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amem-mcp/amem-mcp/internal/mcptypes"
	"github.com/amem-mcp/amem-mcp/internal/memsession"
)

// promptEntry pairs a prompt's listing definition with its expander.
type promptEntry struct {
	def     mcptypes.Prompt
	expand  func(sess *memsession.Session, args map[string]string) (mcptypes.GetPromptResult, *mcptypes.RPCError)
}

// PromptRegistry serves the four canonical guided-workflow prompts.
type PromptRegistry struct {
	entries map[string]promptEntry
	order   []string
}

// NewPromptRegistry builds the registry with every canonical prompt
// registered.
func NewPromptRegistry() *PromptRegistry {
	r := &PromptRegistry{entries: make(map[string]promptEntry)}

	r.add(mcptypes.Prompt{
		Name:        "remember",
		Description: "Guide for storing new information in memory",
		Arguments: []mcptypes.PromptArgument{
			{Name: "information", Description: "What to remember", Required: true},
			{Name: "context", Description: "Why this is important"},
		},
	}, expandRemember)

	r.add(mcptypes.Prompt{
		Name:        "reflect",
		Description: "Guide for understanding past decisions and reasoning",
		Arguments: []mcptypes.PromptArgument{
			{Name: "topic", Description: "What decision or belief to reflect on", Required: true},
			{Name: "node_id", Description: "Specific node id to start from"},
		},
	}, expandReflect)

	r.add(mcptypes.Prompt{
		Name:        "correct",
		Description: "Guide for updating beliefs and correcting past info",
		Arguments: []mcptypes.PromptArgument{
			{Name: "old_belief", Description: "What was previously believed", Required: true},
			{Name: "new_information", Description: "The correct information", Required: true},
			{Name: "reason", Description: "Why this is being corrected"},
		},
	}, expandCorrect)

	r.add(mcptypes.Prompt{
		Name:        "summarize",
		Description: "Guide for creating a session summary",
		Arguments: []mcptypes.PromptArgument{
			{Name: "session_id", Description: "Session id to summarize (defaults to current)"},
		},
	}, expandSummarize)

	return r
}

func (r *PromptRegistry) add(def mcptypes.Prompt, expand func(*memsession.Session, map[string]string) (mcptypes.GetPromptResult, *mcptypes.RPCError)) {
	r.entries[def.Name] = promptEntry{def: def, expand: expand}
	r.order = append(r.order, def.Name)
}

// List returns every registered prompt definition in registration order.
func (r *PromptRegistry) List() []mcptypes.Prompt {
	out := make([]mcptypes.Prompt, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].def)
	}
	return out
}

func (r *PromptRegistry) names() []string {
	return append([]string(nil), r.order...)
}

// Get expands name's template against args. Unknown names return a
// PromptNotFound error carrying a "did you mean" suggestion.
func (r *PromptRegistry) Get(sess *memsession.Session, name string, args map[string]string) (mcptypes.GetPromptResult, *mcptypes.RPCError) {
	entry, ok := r.entries[name]
	if !ok {
		return mcptypes.GetPromptResult{}, notFoundWithSuggestion(mcptypes.PromptNotFound, "prompt", name, r.names())
	}
	return entry.expand(sess, args)
}

func userMessage(text string) mcptypes.GetPromptResult {
	return mcptypes.GetPromptResult{
		Messages: []mcptypes.PromptMessage{{Role: "user", Content: mcptypes.TextContent(text)}},
	}
}

func expandRemember(sess *memsession.Session, args map[string]string) (mcptypes.GetPromptResult, *mcptypes.RPCError) {
	information, ok := args["information"]
	if !ok || information == "" {
		return mcptypes.GetPromptResult{}, mcptypes.NewError(mcptypes.InvalidParams, "remember: 'information' argument is required")
	}
	contextLine := ""
	if context := args["context"]; context != "" {
		contextLine = fmt.Sprintf("\nContext: %s\n", context)
	}

	text := fmt.Sprintf(
		"I need to remember the following information:\n\n%s\n%s\n"+
			"Please analyze this information and:\n"+
			"1. Determine the appropriate event type (fact, decision, inference, skill)\n"+
			"2. Identify any existing memories this might relate to or contradict\n"+
			"3. Use the memory_add tool to store this information with appropriate edges",
		information, contextLine,
	)
	result := userMessage(text)
	result.Description = "Guide for storing new information"
	return result, nil
}

func expandReflect(sess *memsession.Session, args map[string]string) (mcptypes.GetPromptResult, *mcptypes.RPCError) {
	topic, ok := args["topic"]
	if !ok || topic == "" {
		return mcptypes.GetPromptResult{}, mcptypes.NewError(mcptypes.InvalidParams, "reflect: 'topic' argument is required")
	}
	nodeHint := ""
	if raw, ok := args["node_id"]; ok && raw != "" {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			nodeHint = fmt.Sprintf("\nStart from node #%d.\n", id)
		}
	}

	text := fmt.Sprintf(
		"I want to understand my reasoning about: %s\n%s\n"+
			"Please help me reflect by:\n"+
			"1. Use memory_query to find relevant decisions or beliefs\n"+
			"2. Use memory_traverse with direction=\"backward\" to find the reasoning chain\n"+
			"3. Use memory_causal to understand dependencies\n"+
			"4. Summarize the reasoning chain clearly",
		topic, nodeHint,
	)
	result := userMessage(text)
	result.Description = "Guide for understanding past decisions"
	return result, nil
}

func expandCorrect(sess *memsession.Session, args map[string]string) (mcptypes.GetPromptResult, *mcptypes.RPCError) {
	oldBelief, ok := args["old_belief"]
	if !ok || oldBelief == "" {
		return mcptypes.GetPromptResult{}, mcptypes.NewError(mcptypes.InvalidParams, "correct: 'old_belief' argument is required")
	}
	newInformation, ok := args["new_information"]
	if !ok || newInformation == "" {
		return mcptypes.GetPromptResult{}, mcptypes.NewError(mcptypes.InvalidParams, "correct: 'new_information' argument is required")
	}
	reason := ""
	if r := args["reason"]; r != "" {
		reason = fmt.Sprintf("\nReason: %s\n", r)
	}

	text := fmt.Sprintf(
		"I need to correct my understanding:\n\nPrevious belief: %s\nCorrect information: %s\n%s\n"+
			"Please:\n"+
			"1. Use memory_query to find the node containing the old belief\n"+
			"2. Use memory_causal to see what depends on this belief\n"+
			"3. Use memory_correct to create the correction\n"+
			"4. Consider if dependent decisions should also be corrected",
		oldBelief, newInformation, reason,
	)
	result := userMessage(text)
	result.Description = "Guide for updating beliefs"
	return result, nil
}

func expandSummarize(sess *memsession.Session, args map[string]string) (mcptypes.GetPromptResult, *mcptypes.RPCError) {
	sessionID := sess.CurrentSessionID()
	if raw, ok := args["session_id"]; ok && raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return mcptypes.GetPromptResult{}, mcptypes.NewErrorf(mcptypes.InvalidParams, "summarize: invalid session_id %q", raw)
		}
		sessionID = uint32(id)
	}

	g := sess.Graph()
	memberIDs := g.SessionNodes(sessionID)
	lines := make([]string, 0, len(memberIDs))
	for _, id := range memberIDs {
		n, ok := g.GetNode(id)
		if !ok {
			continue
		}
		content := n.Content
		if r := []rune(content); len(r) > 80 {
			content = string(r[:80]) + "..."
		}
		lines = append(lines, fmt.Sprintf("- [#%d %s] %s", n.ID, n.EventType, content))
	}

	text := fmt.Sprintf(
		"Please summarize session %d which contains %d memories:\n\n%s\n\n"+
			"Create a concise episode summary capturing:\n"+
			"1. The main topic or goal\n"+
			"2. Key facts learned\n"+
			"3. Important decisions made\n"+
			"4. Any corrections\n"+
			"5. The outcome\n\n"+
			"Then use session_end with create_episode=true and your summary.",
		sessionID, len(memberIDs), strings.Join(lines, "\n"),
	)
	result := userMessage(text)
	result.Description = fmt.Sprintf("Guide for summarizing session %d", sessionID)
	return result, nil
}
