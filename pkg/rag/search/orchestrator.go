package search

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/store"
	"ai-assistant-be/pkg/vectorstore"
)

// Config encapsulates retrieval parameters
type Config struct {
	MatchCount       int
	MinSemanticScore float64
	FallbackMinScore float64
	RequestTimeout   time.Duration
}

// DefaultConfig returns default retrieval configuration
func DefaultConfig() Config {
	return Config{
		MatchCount:       20,
		MinSemanticScore: 0.35,
		FallbackMinScore: 0.2,
		RequestTimeout:   15 * time.Second,
	}
}

// Orchestrator fans sub-queries out to the store concurrently and merges
// the raw candidates. Individual sub-query failures are non-fatal: the
// failing sub-query simply contributes zero candidates.
type Orchestrator struct {
	embeddingProvider embedding.EmbeddingProvider
	searcher          vectorstore.Searcher
	cfg               Config
	logger            logger.ILogger
}

// NewOrchestrator creates a new retrieval orchestrator
func NewOrchestrator(
	embeddingProvider embedding.EmbeddingProvider,
	searcher vectorstore.Searcher,
	cfg Config,
	log logger.ILogger,
) *Orchestrator {
	return &Orchestrator{
		embeddingProvider: embeddingProvider,
		searcher:          searcher,
		cfg:               cfg,
		logger:            log,
	}
}

// Result is the merged fan-out output plus degradation flags for telemetry.
type Result struct {
	Candidates       []store.Candidate
	UsedFallbackMode bool // at least one sub-query fell back to semantic-only
	FailedSubQueries int
}

// Retrieve embeds and searches every sub-query concurrently, waits for all
// to finish, then merges candidates in sub-query order so the merge is
// deterministic regardless of completion order. The returned list is
// unfiltered and may contain duplicates.
func (o *Orchestrator) Retrieve(ctx context.Context, subQueries []string, sourceFilters []string) Result {
	type subResult struct {
		candidates []store.Candidate
		fellBack   bool
		failed     bool
	}

	results := make([]subResult, len(subQueries))

	var wg sync.WaitGroup
	for i, query := range subQueries {
		wg.Add(1)
		go func(idx int, q string) {
			defer wg.Done()

			candidates, fellBack, err := o.retrieveOne(ctx, q, sourceFilters)
			if err != nil {
				o.logger.Error("Retrieval", "Sub-query failed", map[string]interface{}{
					"sub_query": q,
					"error":     err.Error(),
				})
				results[idx] = subResult{failed: true}
				return
			}
			results[idx] = subResult{candidates: candidates, fellBack: fellBack}
		}(i, query)
	}
	wg.Wait()

	merged := Result{}
	for _, r := range results {
		merged.Candidates = append(merged.Candidates, r.candidates...)
		if r.fellBack {
			merged.UsedFallbackMode = true
		}
		if r.failed {
			merged.FailedSubQueries++
		}
	}

	o.logger.Debug("Retrieval", "Fan-out merged", map[string]interface{}{
		"sub_queries": len(subQueries),
		"candidates":  len(merged.Candidates),
		"fallback":    merged.UsedFallbackMode,
		"failed":      merged.FailedSubQueries,
	})

	return merged
}

// retrieveOne runs one sub-query: embed, hybrid search, and on a transient
// store failure retry once in semantic-only mode with a looser floor.
func (o *Orchestrator) retrieveOne(ctx context.Context, query string, sourceFilters []string) ([]store.Candidate, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.RequestTimeout)
	defer cancel()

	embeddingRes, err := o.embeddingProvider.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		// Embedding failure drops this sub-query; the others continue.
		return nil, false, err
	}

	candidates, err := o.searcher.HybridSearch(ctx, vectorstore.HybridQuery{
		QueryText:        query,
		QueryEmbedding:   embeddingRes.Values,
		MatchCount:       o.cfg.MatchCount,
		SourceFilters:    sourceFilters,
		MinSemanticScore: o.cfg.MinSemanticScore,
	})
	if err == nil {
		return candidates, false, nil
	}

	if !errors.Is(err, vectorstore.ErrTransient) {
		return nil, false, err
	}

	o.logger.Warn("Retrieval", "Hybrid search degraded to semantic-only", map[string]interface{}{
		"sub_query": query,
		"error":     err.Error(),
	})

	candidates, err = o.searcher.SemanticSearch(ctx, vectorstore.SemanticQuery{
		QueryEmbedding: embeddingRes.Values,
		MatchCount:     o.cfg.MatchCount,
		SourceFilters:  sourceFilters,
		MinScore:       o.cfg.FallbackMinScore,
	})
	if err != nil {
		return nil, true, err
	}

	return candidates, true, nil
}
