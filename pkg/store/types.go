package store

// Source types known to the retrieval pipeline. The store may return others;
// the pipeline treats the value as an opaque label.
const (
	SourceNote          = "note"
	SourceTranscript    = "transcript"
	SourceEmail         = "email"
	SourceCalendarEvent = "calendar-event"
)

// Candidate is a single retrieval hit returned by the vector/lexical store.
// Candidates are never mutated after creation; ranking stages produce new
// orderings, not new objects.
type Candidate struct {
	DocumentID    string                 `json:"document_id"`
	SourceType    string                 `json:"source_type"`
	SourceID      string                 `json:"source_id"`
	Title         string                 `json:"title"`
	ChunkText     string                 `json:"chunk_text"`
	SummaryText   string                 `json:"summary_text"`
	SemanticScore float64                `json:"semantic_score"`
	LexicalScore  float64                `json:"lexical_score"`
	FusedScore    float64                `json:"fused_score"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// SourceKey identifies the logical source document behind a candidate.
// Multiple chunks of the same document share a source key.
func (c Candidate) SourceKey() string {
	return c.SourceType + ":" + c.SourceID
}

// EvidenceBlock is a bounded excerpt of a candidate selected for grounding
// the generated answer. Derived 1:1 from a surviving candidate.
type EvidenceBlock struct {
	Title         string  `json:"title"`
	SourceType    string  `json:"source_type"`
	SourceID      string  `json:"source_id"`
	DocumentID    string  `json:"document_id"`
	Text          string  `json:"text"`
	SemanticScore float64 `json:"semantic_score"`
}

// Citation points back at one logical source document. Unique per
// (SourceType, SourceID) within a single query's output.
type Citation struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}
