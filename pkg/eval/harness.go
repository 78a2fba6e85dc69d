package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/rag/executor"
)

// Case is one regression case: a query plus minimum thresholds the live
// pipeline must meet.
type Case struct {
	Query            string   `json:"query"`
	MinimumResults   int      `json:"minimum_results"`
	MinimumCitations int      `json:"minimum_citations"`
	SourceFilters    []string `json:"source_filters,omitempty"`
}

// Report is the per-case outcome.
type Report struct {
	Query         string `json:"query"`
	LatencyMs     int64  `json:"latency_ms"`
	ResultCount   int    `json:"result_count"`
	CitationCount int    `json:"citation_count"`
	Refused       bool   `json:"refused"`
	Passed        bool   `json:"passed"`
	Error         string `json:"error,omitempty"`
}

// Runner is the pipeline surface the harness drives. Satisfied by
// *executor.Pipeline.
type Runner interface {
	Execute(ctx context.Context, req executor.Request) (*executor.Result, error)
}

// Harness replays fixed query sets against the live pipeline and asserts
// result and citation thresholds. Offline regression tooling, not a
// runtime dependency.
type Harness struct {
	pipeline Runner
	logger   logger.ILogger
}

func NewHarness(pipeline Runner, log logger.ILogger) *Harness {
	return &Harness{pipeline: pipeline, logger: log}
}

// LoadCases reads a JSON case file.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases file: %w", err)
	}

	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse cases file: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("cases file %s is empty", path)
	}
	return cases, nil
}

// Run executes every case in order and reports whether all passed. Each
// case runs evidence-only: retrieval quality is what is under test, not
// the completion model.
func (h *Harness) Run(ctx context.Context, cases []Case) ([]Report, bool) {
	reports := make([]Report, 0, len(cases))
	allPassed := true

	for _, c := range cases {
		report := h.runCase(ctx, c)
		if !report.Passed {
			allPassed = false
		}
		reports = append(reports, report)
	}

	return reports, allPassed
}

func (h *Harness) runCase(ctx context.Context, c Case) Report {
	start := time.Now()

	result, err := h.pipeline.Execute(ctx, executor.Request{
		Query:         c.Query,
		SourceFilters: c.SourceFilters,
		EvidenceOnly:  true,
	})

	report := Report{
		Query:     c.Query,
		LatencyMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		report.Error = err.Error()
		h.logger.Error("Eval", "Case errored", map[string]interface{}{
			"query": c.Query,
			"error": err.Error(),
		})
		return report
	}

	report.Refused = result.Refused
	report.ResultCount = len(result.Evidence)
	report.CitationCount = len(result.Citations)
	report.Passed = !result.Refused &&
		report.ResultCount >= c.MinimumResults &&
		report.CitationCount >= c.MinimumCitations

	h.logger.Info("Eval", "Case finished", map[string]interface{}{
		"query":      c.Query,
		"latency_ms": report.LatencyMs,
		"results":    report.ResultCount,
		"citations":  report.CitationCount,
		"passed":     report.Passed,
	})

	return report
}
