package subquery

import (
	"strings"

	"ai-assistant-be/pkg/rag/enrich"
)

const minTokensForReformulation = 6

// Articles, interrogatives and common filler stripped from the keyword
// reformulation. The stripped variant trades precision for recall.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true,
	"what": true, "who": true, "when": true, "where": true, "why": true, "how": true, "which": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"do": true, "does": true, "did": true, "can": true, "could": true, "should": true, "would": true,
	"of": true, "for": true, "to": true, "in": true, "on": true, "at": true, "about": true, "with": true,
	"me": true, "my": true, "our": true, "i": true, "we": true, "you": true,
	"tell": true, "show": true, "find": true, "give": true, "please": true,
}

// Generate expands one enriched query into an ordered list of sub-queries.
// The original query always comes first; long queries get one keyword
// reformulation with stop words stripped. At most 2 entries here; the
// broadened fallback round adds its own query separately.
func Generate(enriched string, _ enrich.Intent) []string {
	queries := []string{enriched}

	tokens := strings.Fields(enriched)
	if len(tokens) <= minTokensForReformulation-1 {
		return queries
	}

	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		normalized := strings.ToLower(strings.Trim(token, ".,!?;:'\""))
		if normalized == "" || stopWords[normalized] {
			continue
		}
		kept = append(kept, token)
	}

	if len(kept) < 2 {
		return queries
	}

	reformulated := strings.Join(kept, " ")
	if reformulated == enriched {
		return queries
	}

	return append(queries, reformulated)
}
