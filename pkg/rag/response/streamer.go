package response

import (
	"context"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/prompt"
	"ai-assistant-be/pkg/store"
)

// Config controls the generation call.
type Config struct {
	MaxTokens    int
	HistoryLimit int
	CiteEvidence bool
}

// Streamer builds the grounded prompt and opens the streaming completion.
type Streamer struct {
	llmProvider llm.LLMProvider
	cfg         Config
	logger      logger.ILogger
}

func NewStreamer(llmProvider llm.LLMProvider, cfg Config, log logger.ILogger) *Streamer {
	return &Streamer{
		llmProvider: llmProvider,
		cfg:         cfg,
		logger:      log,
	}
}

// Stream yields answer deltas as a lazy, single-consumption sequence. The
// channel closes on completion, stream breakage, or ctx cancellation.
func (s *Streamer) Stream(
	ctx context.Context,
	query string,
	history []llm.Message,
	evidence []store.EvidenceBlock,
) (<-chan string, error) {
	builder := prompt.NewGroundedBuilder(query, history, evidence, s.cfg.HistoryLimit, s.cfg.CiteEvidence)

	deltas, err := s.llmProvider.ChatStream(
		ctx,
		[]llm.Message{{Role: "user", Content: builder.Build()}},
		llm.WithInstructions(builder.Instructions()),
		llm.WithMaxTokens(s.cfg.MaxTokens),
	)
	if err != nil {
		s.logger.Error("Response", "Failed to open completion stream", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	return deltas, nil
}

// Generate returns the full answer in one call. Used where streaming is not
// wanted (the non-streaming chat endpoint).
func (s *Streamer) Generate(
	ctx context.Context,
	query string,
	history []llm.Message,
	evidence []store.EvidenceBlock,
) (string, error) {
	builder := prompt.NewGroundedBuilder(query, history, evidence, s.cfg.HistoryLimit, s.cfg.CiteEvidence)

	return s.llmProvider.Chat(
		ctx,
		[]llm.Message{{Role: "user", Content: builder.Build()}},
		llm.WithInstructions(builder.Instructions()),
		llm.WithMaxTokens(s.cfg.MaxTokens),
	)
}
