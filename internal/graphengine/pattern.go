package graphengine

import "sort"

// PatternSort selects the ordering applied to Pattern results.
type PatternSort string

const (
	SortMostRecent    PatternSort = "most_recent"
	SortHighestConf   PatternSort = "highest_confidence"
	SortMostAccessed  PatternSort = "most_accessed"
)

// PatternParams filters the node set by event type, session, and a
// substring match against content, then sorts and truncates it.
type PatternParams struct {
	EventType  *EventType
	SessionID  *uint32
	Contains   string
	Sort       PatternSort
	MaxResults int
}

// DefaultMaxResults is applied when a query's MaxResults is zero, mirroring
// the reference implementation's default page size.
const DefaultMaxResults = 20

// Pattern returns the nodes matching params, touching each returned node's
// access bookkeeping.
func (g *Graph) Pattern(params PatternParams) []*Node {
	var candidates []uint64

	switch {
	case params.EventType != nil && params.SessionID != nil:
		set := make(map[uint64]bool)
		for _, id := range g.sessionIndex[*params.SessionID] {
			set[id] = true
		}
		for _, id := range g.typeIndex[*params.EventType] {
			if set[id] {
				candidates = append(candidates, id)
			}
		}
	case params.EventType != nil:
		candidates = append(candidates, g.typeIndex[*params.EventType]...)
	case params.SessionID != nil:
		candidates = append(candidates, g.sessionIndex[*params.SessionID]...)
	default:
		for id := range g.nodes {
			candidates = append(candidates, id)
		}
	}

	out := make([]*Node, 0, len(candidates))
	for _, id := range candidates {
		n, ok := g.nodes[id]
		if !ok {
			continue
		}
		if params.Contains != "" && !containsFold(n.Content, params.Contains) {
			continue
		}
		out = append(out, n)
	}

	sortNodes(out, params.Sort)

	max := params.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	if len(out) > max {
		out = out[:max]
	}

	now := nextTimestamp()
	for _, n := range out {
		g.touch(n.ID, now)
	}

	return out
}

func sortNodes(nodes []*Node, by PatternSort) {
	switch by {
	case SortHighestConf:
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].Confidence > nodes[j].Confidence })
	case SortMostAccessed:
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].AccessCount > nodes[j].AccessCount })
	default: // SortMostRecent and unset
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].CreatedAt > nodes[j].CreatedAt })
	}
}

// containsFold reports whether substr occurs within s, ignoring case, using
// only ASCII-folding (content is free-form text, not guaranteed UTF-8
// normalized, so this matches the reference implementation's simple
// lowercase-compare approach rather than full Unicode casefolding).
func containsFold(s, substr string) bool {
	return indexFold(s, substr) >= 0
}

func indexFold(s, substr string) int {
	ls, lsub := toLowerASCII(s), toLowerASCII(substr)
	n := len(ls) - len(lsub)
	if n < 0 {
		return -1
	}
	for i := 0; i <= n; i++ {
		if ls[i:i+len(lsub)] == lsub {
			return i
		}
	}
	return -1
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
