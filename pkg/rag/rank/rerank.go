package rank

import (
	"sort"

	"ai-assistant-be/pkg/store"
)

// Dedup collapses candidates by document id, keeping the first-seen entry.
func Dedup(candidates []store.Candidate) []store.Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]store.Candidate, 0, len(candidates))

	for _, c := range candidates {
		if seen[c.DocumentID] {
			continue
		}
		seen[c.DocumentID] = true
		out = append(out, c)
	}

	return out
}

// Rerank orders candidates descending by fused score. Equal fused scores
// break ties by descending semantic score; the sort is stable so remaining
// ties keep first-seen order. Deterministic for any input permutation that
// preserves first-seen order.
func Rerank(candidates []store.Candidate) []store.Candidate {
	out := make([]store.Candidate, len(candidates))
	copy(out, candidates)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].SemanticScore > out[j].SemanticScore
	})

	return out
}

// Process is the dedup-then-rerank step the pipeline runs on the merged
// fan-out output. Pure and idempotent.
func Process(candidates []store.Candidate) []store.Candidate {
	return Rerank(Dedup(candidates))
}
