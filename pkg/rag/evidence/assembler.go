package evidence

import (
	"strings"

	"ai-assistant-be/pkg/store"
)

const snippetChars = 160

// Config bounds the assembled output.
type Config struct {
	CharBudget   int // per-block text cap, in runes
	MaxCitations int
}

func DefaultConfig() Config {
	return Config{
		CharBudget:   900,
		MaxCitations: 8,
	}
}

// Assembler turns diversity-selected candidates into bounded evidence
// blocks plus a deduplicated citation list.
type Assembler struct {
	cfg Config
}

func NewAssembler(cfg Config) *Assembler {
	if cfg.CharBudget <= 0 {
		cfg.CharBudget = DefaultConfig().CharBudget
	}
	if cfg.MaxCitations <= 0 {
		cfg.MaxCitations = DefaultConfig().MaxCitations
	}
	return &Assembler{cfg: cfg}
}

// Assemble preserves candidate order (highest relevance first). Candidates
// with no usable text are skipped; citations are unique per source document
// and capped.
func (a *Assembler) Assemble(candidates []store.Candidate) ([]store.EvidenceBlock, []store.Citation) {
	blocks := make([]store.EvidenceBlock, 0, len(candidates))
	citations := make([]store.Citation, 0, a.cfg.MaxCitations)
	cited := make(map[string]bool)

	for _, c := range candidates {
		text := strings.TrimSpace(c.ChunkText)
		if text == "" {
			text = strings.TrimSpace(c.SummaryText)
		}
		if text == "" {
			continue
		}

		text = truncateRunes(text, a.cfg.CharBudget)

		blocks = append(blocks, store.EvidenceBlock{
			Title:         c.Title,
			SourceType:    c.SourceType,
			SourceID:      c.SourceID,
			DocumentID:    c.DocumentID,
			Text:          text,
			SemanticScore: c.SemanticScore,
		})

		key := c.SourceKey()
		if cited[key] || len(citations) >= a.cfg.MaxCitations {
			continue
		}
		cited[key] = true
		citations = append(citations, store.Citation{
			SourceType: c.SourceType,
			SourceID:   c.SourceID,
			Title:      c.Title,
			Snippet:    truncateRunes(text, snippetChars),
		})
	}

	return blocks, citations
}

// truncateRunes cuts on rune boundaries, never mid multibyte sequence.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
