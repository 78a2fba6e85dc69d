package dto

import (
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/store"
)

type ChatTurnDTO struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

type SendChatRequest struct {
	SessionID     string        `json:"session_id,omitempty"`
	Query         string        `json:"query" validate:"required,min=1,max=4000"`
	History       []ChatTurnDTO `json:"history,omitempty" validate:"max=20,dive"`
	SourceFilters []string      `json:"source_filters,omitempty" validate:"max=8"`
}

type CitationDTO struct {
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
}

type SendChatResponse struct {
	SessionID       string        `json:"session_id,omitempty"`
	Answer          string        `json:"answer"`
	Refused         bool          `json:"refused"`
	Citations       []CitationDTO `json:"citations,omitempty"`
	Intent          string        `json:"intent"`
	RetrievalRounds int           `json:"retrieval_rounds"`
}

// StreamFrame is one SSE / websocket frame of a streamed chat answer.
type StreamFrame struct {
	Type      string        `json:"type"` // "delta" | "citations" | "refusal" | "done" | "error"
	Content   string        `json:"content,omitempty"`
	Citations []CitationDTO `json:"citations,omitempty"`
}

func ToHistory(turns []ChatTurnDTO) []llm.Message {
	messages := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	return messages
}

func ToCitationDTOs(citations []store.Citation) []CitationDTO {
	out := make([]CitationDTO, 0, len(citations))
	for _, c := range citations {
		out = append(out, CitationDTO{
			SourceType: c.SourceType,
			SourceID:   c.SourceID,
			Title:      c.Title,
			Snippet:    c.Snippet,
		})
	}
	return out
}
