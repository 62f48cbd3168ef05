package relevance

import (
	"sort"

	"github.com/scrypster/keepsake/pkg/types"
)

const (
	// similarityWeight and importanceWeight combine into the final score.
	similarityWeight = 0.7
	importanceWeight = 0.3

	// DefaultLimit bounds the relevance pool handed to the assembler.
	DefaultLimit = 30

	// DefaultCoreThreshold partitions core memories out of the ranked pool.
	DefaultCoreThreshold = 0.8
)

// Scorer rates how well a memory matches a query. Implementations must be
// deterministic for a given pair.
type Scorer interface {
	Score(query string, memory *types.MemoryNode) float64
}

// KeywordScorer scores by Jaccard similarity of extracted keyword sets over
// the memory's content and detail.
type KeywordScorer struct{}

func (KeywordScorer) Score(query string, memory *types.MemoryNode) float64 {
	text := memory.Content
	if memory.Detail != "" {
		text += " " + memory.Detail
	}
	return Jaccard(Keywords(query), Keywords(text))
}

// Scored pairs a memory with its similarity and combined score.
type Scored struct {
	Memory     *types.MemoryNode
	Similarity float64
	Score      float64
}

// Selector ranks candidate memories for context injection.
type Selector struct {
	scorer        Scorer
	limit         int
	coreThreshold float64
}

// NewSelector returns a selector with the given scorer; a nil scorer falls
// back to keyword matching.
func NewSelector(scorer Scorer, limit int, coreThreshold float64) *Selector {
	if scorer == nil {
		scorer = KeywordScorer{}
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if coreThreshold <= 0 {
		coreThreshold = DefaultCoreThreshold
	}
	return &Selector{scorer: scorer, limit: limit, coreThreshold: coreThreshold}
}

// CoreThreshold returns the effective-importance cutoff for core memories.
func (s *Selector) CoreThreshold() float64 {
	return s.coreThreshold
}

// Partition splits candidates into core memories (effective importance at or
// above the threshold, surfaced unconditionally upstream) and the library
// pool eligible for relevance ranking. The split is a hard threshold, not a
// ranking choice.
func (s *Selector) Partition(candidates []*types.MemoryNode) (core, library []*types.MemoryNode) {
	for _, m := range candidates {
		if m.EffectiveImportance() >= s.coreThreshold {
			core = append(core, m)
		} else {
			library = append(library, m)
		}
	}
	return core, library
}

// Select scores the library pool against the query, drops zero-similarity
// memories, and returns the top entries by combined score
// (0.7×similarity + 0.3×importance), capped at the selector limit.
func (s *Selector) Select(query string, library []*types.MemoryNode) []Scored {
	scored := make([]Scored, 0, len(library))
	for _, m := range library {
		sim := s.scorer.Score(query, m)
		if sim <= 0 {
			continue
		}
		scored = append(scored, Scored{
			Memory:     m,
			Similarity: sim,
			Score:      similarityWeight*sim + importanceWeight*m.EffectiveImportance(),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > s.limit {
		scored = scored[:s.limit]
	}
	return scored
}
