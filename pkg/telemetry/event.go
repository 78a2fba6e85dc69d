package telemetry

import (
	"time"

	"ai-assistant-be/pkg/store"
)

// TopicQueryEvents is the in-process bus topic every recorded event is
// published on.
const TopicQueryEvents = "telemetry.query_events"

// maxCandidateSnapshots bounds the candidate list captured per event so a
// noisy query cannot bloat the ring buffer.
const maxCandidateSnapshots = 40

// CandidateSnapshot is the bounded per-candidate record kept for offline
// evaluation.
type CandidateSnapshot struct {
	DocumentID    string  `json:"document_id"`
	SourceType    string  `json:"source_type"`
	SourceID      string  `json:"source_id"`
	SemanticScore float64 `json:"semantic_score"`
	LexicalScore  float64 `json:"lexical_score"`
	FusedScore    float64 `json:"fused_score"`
}

// QueryEvent is the immutable audit record of one user-facing query.
type QueryEvent struct {
	ID                string                `json:"id"`
	Timestamp         time.Time             `json:"timestamp"`
	SessionID         string                `json:"session_id,omitempty"`
	Query             string                `json:"query"`
	EnrichedQuery     string                `json:"enriched_query"`
	Intent            string                `json:"intent"`
	SubQueries        []string              `json:"sub_queries"`
	Candidates        []CandidateSnapshot   `json:"candidates"`
	CandidateCount    int                   `json:"candidate_count"`
	Evidence          []store.EvidenceBlock `json:"evidence"`
	ResultCount       int                   `json:"result_count"`
	CitationCount     int                   `json:"citation_count"`
	RetrievalRounds   int                   `json:"retrieval_rounds"`
	UsedStoreFallback bool                  `json:"used_store_fallback"`
	DidRefuse         bool                  `json:"did_refuse"`
	StreamCompleted   bool                  `json:"stream_completed"`
	AnswerChars       int                   `json:"answer_chars"`
	StageLatencyMs    map[string]int64      `json:"stage_latency_ms"`
	TotalLatencyMs    int64                 `json:"total_latency_ms"`
	Errors            []string              `json:"errors,omitempty"`
}

// SnapshotCandidates converts pipeline candidates into the bounded audit
// form.
func SnapshotCandidates(candidates []store.Candidate) []CandidateSnapshot {
	n := len(candidates)
	if n > maxCandidateSnapshots {
		n = maxCandidateSnapshots
	}
	snapshots := make([]CandidateSnapshot, 0, n)
	for _, c := range candidates[:n] {
		snapshots = append(snapshots, CandidateSnapshot{
			DocumentID:    c.DocumentID,
			SourceType:    c.SourceType,
			SourceID:      c.SourceID,
			SemanticScore: c.SemanticScore,
			LexicalScore:  c.LexicalScore,
			FusedScore:    c.FusedScore,
		})
	}
	return snapshots
}
