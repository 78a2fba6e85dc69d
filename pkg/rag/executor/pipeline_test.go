package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/evidence"
	"ai-assistant-be/pkg/rag/response"
	"ai-assistant-be/pkg/rag/search"
	"ai-assistant-be/pkg/store"
	"ai-assistant-be/pkg/telemetry"
	"ai-assistant-be/pkg/vectorstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Generate(_ context.Context, _, _ string) (*embedding.Result, error) {
	return &embedding.Result{Values: []float64{0.1, 0.2}}, nil
}

type fakeSearcher struct {
	mu        sync.Mutex
	results   []store.Candidate
	broadened []store.Candidate
	queries   []string
	filters   [][]string
}

func (f *fakeSearcher) HybridSearch(_ context.Context, q vectorstore.HybridQuery) ([]store.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q.QueryText)
	f.filters = append(f.filters, q.SourceFilters)
	if strings.HasPrefix(q.QueryText, "key highlights") {
		return f.broadened, nil
	}
	return f.results, nil
}

func (f *fakeSearcher) SemanticSearch(_ context.Context, _ vectorstore.SemanticQuery) ([]store.Candidate, error) {
	return nil, nil
}

type fakeLLM struct {
	mu          sync.Mutex
	streamCalls int
	deltas      []string
	openErr     error
}

func (f *fakeLLM) Chat(_ context.Context, _ []llm.Message, _ ...llm.Option) (string, error) {
	return strings.Join(f.deltas, ""), nil
}

func (f *fakeLLM) ChatStream(_ context.Context, _ []llm.Message, _ ...llm.Option) (<-chan string, error) {
	f.mu.Lock()
	f.streamCalls++
	f.mu.Unlock()

	if f.openErr != nil {
		return nil, f.openErr
	}
	ch := make(chan string, len(f.deltas))
	for _, d := range f.deltas {
		ch <- d
	}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

func candidateSet(n int, prefix string) []store.Candidate {
	out := make([]store.Candidate, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, store.Candidate{
			DocumentID:    fmt.Sprintf("%s-%d", prefix, i),
			SourceType:    store.SourceNote,
			SourceID:      fmt.Sprintf("%s-src-%d", prefix, i),
			Title:         "Doc " + prefix,
			ChunkText:     "Relevant text " + prefix,
			SemanticScore: 0.8,
			FusedScore:    0.8,
		})
	}
	return out
}

func newTestPipeline(searcher *fakeSearcher, model *fakeLLM) (*Pipeline, *telemetry.Recorder) {
	log := logger.NopLogger{}
	orchestrator := search.NewOrchestrator(fakeEmbedder{}, searcher, search.DefaultConfig(), log)
	assembler := evidence.NewAssembler(evidence.DefaultConfig())
	streamer := response.NewStreamer(model, response.Config{MaxTokens: 512, HistoryLimit: 10, CiteEvidence: true}, log)
	recorder := telemetry.NewRecorder(16, nil, log)

	pipeline := NewPipeline(orchestrator, assembler, streamer, nil, recorder, log, Config{
		MaxResults:        10,
		MaxPerSource:      3,
		FallbackThreshold: 3,
		HistoryLimit:      10,
	})
	return pipeline, recorder
}

func TestExecuteStreamsGroundedAnswer(t *testing.T) {
	searcher := &fakeSearcher{results: candidateSet(4, "r")}
	model := &fakeLLM{deltas: []string{"The budget ", "was approved."}}
	pipeline, recorder := newTestPipeline(searcher, model)

	result, err := pipeline.Execute(context.Background(), Request{Query: "quarterly budget"})

	require.NoError(t, err)
	assert.False(t, result.Refused)
	assert.Len(t, result.Evidence, 4)
	require.NotNil(t, result.Stream)

	var answer strings.Builder
	for delta := range result.Stream {
		answer.WriteString(delta)
	}
	assert.Equal(t, "The budget was approved.", answer.String())

	assert.Equal(t, 1, result.Metadata.RetrievalRounds)
	assert.Equal(t, 1, recorder.Len())

	event := recorder.Recent(1)[0]
	assert.False(t, event.DidRefuse)
	assert.True(t, event.StreamCompleted)
	assert.Equal(t, len("The budget was approved."), event.AnswerChars)
}

func TestExecuteRecordsInterruptedStream(t *testing.T) {
	searcher := &fakeSearcher{results: candidateSet(4, "r")}
	model := &fakeLLM{deltas: []string{"first", "second", "third"}}
	pipeline, recorder := newTestPipeline(searcher, model)

	ctx, cancel := context.WithCancel(context.Background())
	result, err := pipeline.Execute(ctx, Request{Query: "quarterly budget"})
	require.NoError(t, err)

	// Read one delta, then walk away mid-stream.
	<-result.Stream
	cancel()

	require.Eventually(t, func() bool { return recorder.Len() == 1 }, time.Second, 5*time.Millisecond)

	event := recorder.Recent(1)[0]
	assert.False(t, event.StreamCompleted)
	require.NotEmpty(t, event.Errors)
	assert.Contains(t, event.Errors[0], "stream_interrupted")
}

func TestExecuteRefusesWithoutEvidence(t *testing.T) {
	searcher := &fakeSearcher{}
	model := &fakeLLM{deltas: []string{"should never stream"}}
	pipeline, recorder := newTestPipeline(searcher, model)

	result, err := pipeline.Execute(context.Background(), Request{Query: "quarterly budget"})

	require.NoError(t, err)
	assert.True(t, result.Refused)
	assert.Equal(t, RefusalMessage, result.RefusalMessage)
	assert.Nil(t, result.Stream)
	assert.Zero(t, model.calls(), "completion must not run on refusal")

	events := recorder.Recent(1)
	require.Len(t, events, 1)
	assert.True(t, events[0].DidRefuse)
}

func TestExecuteEscalatesWhenEvidenceThin(t *testing.T) {
	searcher := &fakeSearcher{
		results:   candidateSet(1, "thin"),
		broadened: candidateSet(4, "broad"),
	}
	model := &fakeLLM{deltas: []string{"ok"}}
	pipeline, _ := newTestPipeline(searcher, model)

	result, err := pipeline.Execute(context.Background(), Request{Query: "quarterly budget"})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Metadata.RetrievalRounds)
	assert.Len(t, result.Evidence, 5, "escalated round merges with the original candidates")

	broadenedSeen := false
	for _, q := range searcher.queries {
		if strings.HasPrefix(q, "key highlights") {
			broadenedSeen = true
		}
	}
	assert.True(t, broadenedSeen, "broadened reformulation was never issued")
}

func TestExecuteKeepsOriginalWhenEscalationDoesNotImprove(t *testing.T) {
	thin := candidateSet(2, "thin")
	searcher := &fakeSearcher{
		results:   thin,
		broadened: thin, // duplicates dedup away, no improvement
	}
	model := &fakeLLM{deltas: []string{"ok"}}
	pipeline, _ := newTestPipeline(searcher, model)

	result, err := pipeline.Execute(context.Background(), Request{Query: "quarterly budget"})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Metadata.RetrievalRounds)
	assert.Len(t, result.Evidence, 2)
}

func TestExecuteEvidenceOnlySkipsCompletion(t *testing.T) {
	searcher := &fakeSearcher{results: candidateSet(4, "r")}
	model := &fakeLLM{deltas: []string{"nope"}}
	pipeline, _ := newTestPipeline(searcher, model)

	result, err := pipeline.Execute(context.Background(), Request{Query: "quarterly budget", EvidenceOnly: true})

	require.NoError(t, err)
	assert.Nil(t, result.Stream)
	assert.Len(t, result.Evidence, 4)
	assert.NotEmpty(t, result.Citations)
	assert.Zero(t, model.calls())
}

func TestExecuteEmailIntentBiasesFilters(t *testing.T) {
	searcher := &fakeSearcher{results: candidateSet(4, "mail")}
	model := &fakeLLM{deltas: []string{"Draft: ..."}}
	pipeline, _ := newTestPipeline(searcher, model)

	_, err := pipeline.Execute(context.Background(), Request{Query: "draft an email about the launch"})

	require.NoError(t, err)
	require.NotEmpty(t, searcher.filters)
	for _, f := range searcher.filters {
		assert.Equal(t, []string{store.SourceEmail}, f)
	}
}

func TestExecuteExplicitFiltersWinOverIntent(t *testing.T) {
	searcher := &fakeSearcher{results: candidateSet(4, "n")}
	model := &fakeLLM{deltas: []string{"ok"}}
	pipeline, _ := newTestPipeline(searcher, model)

	_, err := pipeline.Execute(context.Background(), Request{
		Query:         "draft an email about the launch",
		SourceFilters: []string{store.SourceNote},
	})

	require.NoError(t, err)
	for _, f := range searcher.filters {
		assert.Equal(t, []string{store.SourceNote}, f)
	}
}

func TestExecuteStreamOpenFailureIsRecorded(t *testing.T) {
	searcher := &fakeSearcher{results: candidateSet(4, "r")}
	model := &fakeLLM{openErr: errors.New("provider down")}
	pipeline, recorder := newTestPipeline(searcher, model)

	_, err := pipeline.Execute(context.Background(), Request{Query: "quarterly budget"})

	require.Error(t, err)
	events := recorder.Recent(1)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].Errors)
}
