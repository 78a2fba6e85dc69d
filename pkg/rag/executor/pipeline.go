package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/enrich"
	"ai-assistant-be/pkg/rag/evidence"
	"ai-assistant-be/pkg/rag/history"
	"ai-assistant-be/pkg/rag/rank"
	"ai-assistant-be/pkg/rag/response"
	"ai-assistant-be/pkg/rag/search"
	"ai-assistant-be/pkg/rag/subquery"
	"ai-assistant-be/pkg/store"
	"ai-assistant-be/pkg/telemetry"

	"github.com/google/uuid"
)

// RefusalMessage is the fixed, non-fabricated response returned when no
// grounded evidence survives the fallback round.
const RefusalMessage = "I couldn't find grounded evidence for that in your data. " +
	"Try narrowing the question, or check that the relevant notes, emails or events have been ingested."

// broadenedQueryTemplate is the one-shot escalation reformulation.
const broadenedQueryTemplate = "key highlights and details related to: %s"

// Bounded retry: the fallback controller is a two-state machine, never a
// recursion, so a retrieval storm is impossible.
type fallbackState int

const (
	stateInitial fallbackState = iota
	stateEscalated
)

// Config holds the executor-level knobs.
type Config struct {
	MaxResults        int
	MaxPerSource      int
	FallbackThreshold int
	HistoryLimit      int
}

// Request is one user-facing query. Immutable per execution.
type Request struct {
	SessionID     string
	Query         string
	History       []llm.Message
	SourceFilters []string

	// EvidenceOnly skips the completion call; the evaluation harness uses
	// it to assert retrieval quality without spending model tokens.
	EvidenceOnly bool
}

// Metadata travels with the result for telemetry and chat bookkeeping.
type Metadata struct {
	EnrichedQuery     string
	Intent            enrich.Intent
	SubQueries        []string
	RetrievalRounds   int
	UsedStoreFallback bool
	StageLatencies    map[string]time.Duration
}

// Result is the pipeline output. Stream is nil on refusal and in
// evidence-only mode; it is a lazy, single-consumption sequence of answer
// deltas otherwise.
type Result struct {
	Refused        bool
	RefusalMessage string
	Evidence       []store.EvidenceBlock
	Citations      []store.Citation
	Stream         <-chan string
	Metadata       Metadata
}

// Pipeline is the one canonical query pipeline: enrich → sub-queries →
// concurrent retrieval → dedup/rerank → diversity → evidence → bounded
// fallback → refusal or streamed generation. Every stage after the fan-out
// is a pure transform on the merged candidate list.
type Pipeline struct {
	orchestrator *search.Orchestrator
	assembler    *evidence.Assembler
	streamer     *response.Streamer
	historyStore history.Store
	recorder     *telemetry.Recorder
	logger       logger.ILogger
	cfg          Config
}

func NewPipeline(
	orchestrator *search.Orchestrator,
	assembler *evidence.Assembler,
	streamer *response.Streamer,
	historyStore history.Store,
	recorder *telemetry.Recorder,
	log logger.ILogger,
	cfg Config,
) *Pipeline {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.MaxPerSource <= 0 {
		cfg.MaxPerSource = 3
	}
	if cfg.FallbackThreshold <= 0 {
		cfg.FallbackThreshold = 3
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	return &Pipeline{
		orchestrator: orchestrator,
		assembler:    assembler,
		streamer:     streamer,
		historyStore: historyStore,
		recorder:     recorder,
		logger:       log,
		cfg:          cfg,
	}
}

// Execute runs one query through the full pipeline. Non-fatal stage errors
// are logged and recorded, never surfaced raw; the only hard error is a
// failure to open the completion stream.
func (p *Pipeline) Execute(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	latencies := make(map[string]time.Duration)

	convHistory := req.History
	if len(convHistory) == 0 && req.SessionID != "" && p.historyStore != nil {
		stored, err := p.historyStore.Recent(ctx, req.SessionID, p.cfg.HistoryLimit)
		if err != nil {
			p.logger.Warn("Pipeline", "Failed to load conversation history", map[string]interface{}{
				"session_id": req.SessionID,
				"error":      err.Error(),
			})
		} else {
			convHistory = stored
		}
	}

	enriched := enrich.Enrich(req.Query, convHistory)
	intent := enrich.DetectIntent(req.Query)

	filters := req.SourceFilters
	if len(filters) == 0 && intent == enrich.IntentDraftEmail {
		filters = []string{store.SourceEmail}
	}

	subQueries := subquery.Generate(enriched, intent)

	retrieveStart := time.Now()
	retrieval := p.orchestrator.Retrieve(ctx, subQueries, filters)
	latencies["retrieval"] = time.Since(retrieveStart)

	candidates := retrieval.Candidates
	blocks, citations := p.selectEvidence(candidates)

	rounds := 1
	state := stateInitial
	usedStoreFallback := retrieval.UsedFallbackMode

	if state == stateInitial && len(blocks) < p.cfg.FallbackThreshold && strings.TrimSpace(enriched) != "" {
		state = stateEscalated
		rounds = 2

		broadened := fmt.Sprintf(broadenedQueryTemplate, enriched)
		p.logger.Info("Pipeline", "Evidence too thin, broadening retrieval", map[string]interface{}{
			"evidence_count": len(blocks),
			"broadened":      broadened,
		})

		fallbackStart := time.Now()
		extra := p.orchestrator.Retrieve(ctx, []string{broadened}, filters)
		latencies["fallback_retrieval"] = time.Since(fallbackStart)
		usedStoreFallback = usedStoreFallback || extra.UsedFallbackMode

		merged := make([]store.Candidate, 0, len(candidates)+len(extra.Candidates))
		merged = append(merged, candidates...)
		merged = append(merged, extra.Candidates...)

		// Keep the escalated round only when it strictly improves evidence.
		if newBlocks, newCitations := p.selectEvidence(merged); len(newBlocks) > len(blocks) {
			blocks, citations = newBlocks, newCitations
			candidates = merged
		}
	}

	meta := Metadata{
		EnrichedQuery:     enriched,
		Intent:            intent,
		SubQueries:        subQueries,
		RetrievalRounds:   rounds,
		UsedStoreFallback: usedStoreFallback,
		StageLatencies:    latencies,
	}

	event := telemetry.QueryEvent{
		ID:                uuid.NewString(),
		Timestamp:         time.Now(),
		SessionID:         req.SessionID,
		Query:             req.Query,
		EnrichedQuery:     enriched,
		Intent:            string(intent),
		SubQueries:        subQueries,
		Candidates:        telemetry.SnapshotCandidates(candidates),
		CandidateCount:    len(candidates),
		Evidence:          blocks,
		ResultCount:       len(blocks),
		CitationCount:     len(citations),
		RetrievalRounds:   rounds,
		UsedStoreFallback: usedStoreFallback,
		StageLatencyMs:    latencyMillis(latencies),
	}

	if len(blocks) == 0 {
		event.DidRefuse = true
		event.TotalLatencyMs = time.Since(start).Milliseconds()
		p.record(event)

		p.logger.Info("Pipeline", "No grounded evidence, refusing", map[string]interface{}{
			"query": req.Query,
		})

		return &Result{
			Refused:        true,
			RefusalMessage: RefusalMessage,
			Metadata:       meta,
		}, nil
	}

	if req.EvidenceOnly {
		event.TotalLatencyMs = time.Since(start).Milliseconds()
		p.record(event)

		return &Result{
			Evidence:  blocks,
			Citations: citations,
			Metadata:  meta,
		}, nil
	}

	streamStart := time.Now()
	deltas, err := p.streamer.Stream(ctx, enriched, convHistory, blocks)
	latencies["stream_open"] = time.Since(streamStart)
	if err != nil {
		event.Errors = append(event.Errors, "stream_open: "+err.Error())
		event.TotalLatencyMs = time.Since(start).Milliseconds()
		p.record(event)
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	event.StageLatencyMs = latencyMillis(latencies)

	return &Result{
		Evidence:  blocks,
		Citations: citations,
		Stream:    p.forwardAndRecord(ctx, deltas, event, start),
		Metadata:  meta,
	}, nil
}

// forwardAndRecord relays deltas to the consumer and records the query
// event once the stream ends, so an interrupted stream is visible in
// telemetry instead of looking like a delivered answer. The event is
// recorded before the out channel closes: a consumer that drained the
// stream observes the recorded event.
func (p *Pipeline) forwardAndRecord(ctx context.Context, deltas <-chan string, event telemetry.QueryEvent, start time.Time) <-chan string {
	out := make(chan string)

	go func() {
		chars := 0
	forward:
		for delta := range deltas {
			select {
			case out <- delta:
				chars += len(delta)
			case <-ctx.Done():
				break forward
			}
		}

		event.AnswerChars = chars
		if err := ctx.Err(); err != nil {
			event.Errors = append(event.Errors, "stream_interrupted: "+err.Error())
		} else {
			event.StreamCompleted = true
		}
		event.TotalLatencyMs = time.Since(start).Milliseconds()
		p.record(event)

		close(out)
	}()

	return out
}

// selectEvidence is the pure post-retrieval half of the pipeline.
func (p *Pipeline) selectEvidence(candidates []store.Candidate) ([]store.EvidenceBlock, []store.Citation) {
	ranked := rank.Process(candidates)
	selected := rank.SelectDiverseCapped(ranked, p.cfg.MaxResults, p.cfg.MaxPerSource)
	return p.assembler.Assemble(selected)
}

func (p *Pipeline) record(event telemetry.QueryEvent) {
	if p.recorder != nil {
		p.recorder.Record(event)
	}
}

func latencyMillis(latencies map[string]time.Duration) map[string]int64 {
	out := make(map[string]int64, len(latencies))
	for stage, d := range latencies {
		out[stage] = d.Milliseconds()
	}
	return out
}
