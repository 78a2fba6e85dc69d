package prompt

import (
	"fmt"
	"strings"

	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/store"
)

// GroundedBuilder builds the grounded answer prompt from evidence blocks,
// conversation history and the enriched query.
type GroundedBuilder struct {
	query        string
	history      []llm.Message
	evidence     []store.EvidenceBlock
	historyLimit int
	cite         bool
}

// NewGroundedBuilder creates a prompt builder. When cite is false the
// grounding rules tell the model to omit citation markers entirely.
func NewGroundedBuilder(query string, history []llm.Message, evidence []store.EvidenceBlock, historyLimit int, cite bool) *GroundedBuilder {
	return &GroundedBuilder{
		query:        query,
		history:      history,
		evidence:     evidence,
		historyLimit: historyLimit,
		cite:         cite,
	}
}

// Instructions returns the system instruction block with the grounding rules.
func (b *GroundedBuilder) Instructions() string {
	var sb strings.Builder

	sb.WriteString("You are a personal assistant answering questions about the user's notes, meeting transcripts, emails and calendar events.\n\n")
	sb.WriteString("Grounding rules:\n")
	sb.WriteString("1. Answer ONLY from the numbered evidence blocks provided. Never invent facts.\n")
	sb.WriteString("2. If the evidence does not contain the answer, say so plainly.\n")
	if b.cite {
		sb.WriteString("3. Cite the evidence blocks you used by index, e.g. [1] or [2][3].\n")
	} else {
		sb.WriteString("3. Do not include citation markers in your answer.\n")
	}
	sb.WriteString("4. Resolve pronouns in the question against the conversation history.\n")

	return sb.String()
}

// Build creates the user-turn prompt embedding history, evidence and query.
func (b *GroundedBuilder) Build() string {
	var sb strings.Builder

	b.writeHistory(&sb)
	b.writeEvidence(&sb)
	b.writeUserQuery(&sb)

	return sb.String()
}

func (b *GroundedBuilder) writeHistory(sb *strings.Builder) {
	history := b.history
	if b.historyLimit > 0 && len(history) > b.historyLimit {
		history = history[len(history)-b.historyLimit:]
	}
	if len(history) == 0 {
		return
	}

	sb.WriteString("<conversation_history>\n")
	for _, msg := range history {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	sb.WriteString("</conversation_history>\n\n")
}

func (b *GroundedBuilder) writeEvidence(sb *strings.Builder) {
	sb.WriteString("<evidence>\n")
	for i, block := range b.evidence {
		relevance := int(block.SemanticScore * 100)
		sb.WriteString(fmt.Sprintf("[%d] %s (%s, relevance %d%%)\n", i+1, block.Title, block.SourceType, relevance))
		sb.WriteString(block.Text)
		sb.WriteString("\n\n")
	}
	sb.WriteString("</evidence>\n\n")
}

func (b *GroundedBuilder) writeUserQuery(sb *strings.Builder) {
	sb.WriteString("<user_question>\n")
	sb.WriteString(b.query)
	sb.WriteString("\n</user_question>\n\n")
	sb.WriteString("Now answer based only on the evidence above:")
}
