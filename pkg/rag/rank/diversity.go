package rank

import (
	"ai-assistant-be/pkg/store"
)

const (
	// penaltyStep is the escalating score penalty per already-accepted
	// candidate from the same source. Only the acceptance decision uses the
	// penalized value; stored scores are never mutated.
	penaltyStep = 0.3

	// minSelected candidates are accepted even with a non-positive
	// penalized score, so narrow single-topic queries still get evidence.
	minSelected = 4

	defaultMaxPerSource = 3
)

// SelectDiverse walks reranked candidates and caps per-source
// representation MMR-style. Input order is assumed to be Rerank output.
func SelectDiverse(candidates []store.Candidate, maxResults int) []store.Candidate {
	return SelectDiverseCapped(candidates, maxResults, defaultMaxPerSource)
}

// SelectDiverseCapped is SelectDiverse with an explicit per-source cap.
func SelectDiverseCapped(candidates []store.Candidate, maxResults, maxPerSource int) []store.Candidate {
	if len(candidates) <= maxResults {
		return candidates
	}

	selected := make([]store.Candidate, 0, maxResults)
	perSource := make(map[string]int)

	for _, c := range candidates {
		if len(selected) >= maxResults {
			break
		}

		count := perSource[c.SourceKey()]
		if count >= maxPerSource {
			continue
		}

		penalized := c.FusedScore - float64(count)*penaltyStep
		if penalized <= 0 && len(selected) >= minSelected {
			continue
		}

		selected = append(selected, c)
		perSource[c.SourceKey()] = count + 1
	}

	return selected
}
