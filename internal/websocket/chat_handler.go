package websocket

import (
	"context"
	"strings"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/executor"
	"ai-assistant-be/pkg/rag/history"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const queryDeadline = 2 * time.Minute

type wsChatRequest struct {
	SessionID     string            `json:"session_id"`
	Query         string            `json:"query"`
	History       []dto.ChatTurnDTO `json:"history,omitempty"`
	SourceFilters []string          `json:"source_filters,omitempty"`
}

// ChatHandler streams pipeline answers over a websocket: one "delta" frame
// per fragment, then "citations" and "done". The connection handles
// queries sequentially until the client disconnects.
type ChatHandler struct {
	pipeline     *executor.Pipeline
	historyStore history.Store
	logger       logger.ILogger
}

func NewChatHandler(pipeline *executor.Pipeline, historyStore history.Store, log logger.ILogger) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, historyStore: historyStore, logger: log}
}

func (h *ChatHandler) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/chat", websocket.New(h.handle))
}

func (h *ChatHandler) handle(conn *websocket.Conn) {
	defer conn.Close()

	for {
		var req wsChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Query == "" {
			h.writeFrame(conn, dto.StreamFrame{Type: "error", Content: "query is required"})
			continue
		}

		h.serveQuery(conn, req)
	}
}

func (h *ChatHandler) serveQuery(conn *websocket.Conn, req wsChatRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), queryDeadline)
	defer cancel()

	result, err := h.pipeline.Execute(ctx, executor.Request{
		SessionID:     req.SessionID,
		Query:         req.Query,
		History:       dto.ToHistory(req.History),
		SourceFilters: req.SourceFilters,
	})
	if err != nil {
		h.logger.Error("ChatWS", "Pipeline execution failed", map[string]interface{}{
			"error": err.Error(),
		})
		h.writeFrame(conn, dto.StreamFrame{Type: "error", Content: "failed to answer the query"})
		return
	}

	if result.Refused {
		h.writeFrame(conn, dto.StreamFrame{Type: "refusal", Content: result.RefusalMessage})
		h.writeFrame(conn, dto.StreamFrame{Type: "done"})
		return
	}

	var answer strings.Builder
	for delta := range result.Stream {
		answer.WriteString(delta)
		if !h.writeFrame(conn, dto.StreamFrame{Type: "delta", Content: delta}) {
			// Write failure means the client is gone; cancel() closes the
			// completion stream on the way out.
			return
		}
	}

	h.writeFrame(conn, dto.StreamFrame{Type: "citations", Citations: dto.ToCitationDTOs(result.Citations)})
	h.writeFrame(conn, dto.StreamFrame{Type: "done"})

	h.saveTurns(req.SessionID, req.Query, answer.String())
}

func (h *ChatHandler) saveTurns(sessionID, query, answer string) {
	if h.historyStore == nil || sessionID == "" || answer == "" {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.historyStore.Append(saveCtx, sessionID, llm.Message{Role: "user", Content: query}); err != nil {
		h.logger.Warn("ChatWS", "Failed to save user turn", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := h.historyStore.Append(saveCtx, sessionID, llm.Message{Role: "assistant", Content: answer}); err != nil {
		h.logger.Warn("ChatWS", "Failed to save assistant turn", map[string]interface{}{"error": err.Error()})
	}
}

func (h *ChatHandler) writeFrame(conn *websocket.Conn, frame dto.StreamFrame) bool {
	if err := conn.WriteJSON(frame); err != nil {
		return false
	}
	return true
}
