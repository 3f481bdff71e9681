package graphengine

import (
	"fmt"
	"math"
	"sort"
)

// Defaults for Similarity, mirroring the reference implementation.
const (
	DefaultTopK         = 10
	DefaultMinSimilarity = 0.5
)

// ErrNoEmbedding is returned when Similarity's query vector is empty or its
// length differs from the graph's dimension. Nodes without a matching
// embedding are skipped, not reported.
type ErrNoEmbedding struct {
	Reason string
}

func (e *ErrNoEmbedding) Error() string {
	return fmt.Sprintf("similarity: %s", e.Reason)
}

// SimilarityParams configures a nearest-neighbor search by embedding.
type SimilarityParams struct {
	Query         []float32
	TopK          int
	MinSimilarity float32
	SessionID     *uint32
}

// ScoredNode pairs a node with its similarity score against the query.
type ScoredNode struct {
	Node  *Node
	Score float32
}

// Similarity returns the nodes whose embeddings are most cosine-similar to
// params.Query, above params.MinSimilarity, sorted descending by score and
// truncated to params.TopK.
func (g *Graph) Similarity(params SimilarityParams) ([]ScoredNode, error) {
	if len(params.Query) == 0 {
		return nil, &ErrNoEmbedding{Reason: "query embedding is empty"}
	}
	if len(params.Query) != g.dimension {
		return nil, &ErrNoEmbedding{Reason: fmt.Sprintf("query embedding has dimension %d, graph expects %d", len(params.Query), g.dimension)}
	}

	topK := params.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minSim := params.MinSimilarity
	if minSim == 0 {
		minSim = DefaultMinSimilarity
	}

	var candidates []uint64
	if params.SessionID != nil {
		candidates = g.sessionIndex[*params.SessionID]
	} else {
		for id := range g.nodes {
			candidates = append(candidates, id)
		}
	}

	scored := make([]ScoredNode, 0, len(candidates))
	for _, id := range candidates {
		n := g.nodes[id]
		if n == nil || len(n.Embedding) != g.dimension {
			continue
		}
		score := cosineSimilarity(params.Query, n.Embedding)
		if score >= minSim {
			scored = append(scored, ScoredNode{Node: n, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > topK {
		scored = scored[:topK]
	}

	now := nextTimestamp()
	for _, sn := range scored {
		g.touch(sn.Node.ID, now)
	}

	return scored, nil
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}
