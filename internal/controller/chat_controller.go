package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ai-assistant-be/internal/dto"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/pkg/serverutils"
	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/rag/executor"
	"ai-assistant-be/pkg/rag/history"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const requestDeadline = 2 * time.Minute

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendChatStream(ctx *fiber.Ctx) error
	SendChat(ctx *fiber.Ctx) error
}

type chatController struct {
	pipeline     *executor.Pipeline
	historyStore history.Store
	logger       logger.ILogger
}

func NewChatController(pipeline *executor.Pipeline, historyStore history.Store, log logger.ILogger) IChatController {
	return &chatController{
		pipeline:     pipeline,
		historyStore: historyStore,
		logger:       log,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("", c.SendChatStream)
	h.Post("complete", c.SendChat)
}

// SendChatStream streams the answer as server-sent events: one "delta"
// frame per text fragment, then "citations", then "done". A refusal is a
// single "refusal" frame.
func (c *chatController) SendChatStream(ctx *fiber.Ctx) error {
	req, err := c.parseRequest(ctx)
	if err != nil {
		return err
	}

	// The pipeline outlives this handler: fiber streams the body after the
	// handler returns, so execution runs on a detached context that the
	// stream writer cancels when the client goes away.
	execCtx, cancel := context.WithTimeout(context.Background(), requestDeadline)

	result, err := c.pipeline.Execute(execCtx, *req)
	if err != nil {
		cancel()
		c.logger.Error("ChatController", "Pipeline execution failed", map[string]interface{}{
			"error": err.Error(),
		})
		return fiber.NewError(fiber.StatusBadGateway, "failed to answer the query")
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")

	sessionID := req.SessionID
	query := req.Query

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		if result.Refused {
			writeFrame(w, dto.StreamFrame{Type: "refusal", Content: result.RefusalMessage})
			writeFrame(w, dto.StreamFrame{Type: "done"})
			return
		}

		var answer strings.Builder
		for delta := range result.Stream {
			answer.WriteString(delta)
			if !writeFrame(w, dto.StreamFrame{Type: "delta", Content: delta}) {
				// Client is gone; cancel() on return closes the stream.
				return
			}
		}

		writeFrame(w, dto.StreamFrame{Type: "citations", Citations: dto.ToCitationDTOs(result.Citations)})
		writeFrame(w, dto.StreamFrame{Type: "done"})

		c.saveTurns(sessionID, query, answer.String())
	}))

	return nil
}

// SendChat drains the stream server-side and returns the whole answer.
func (c *chatController) SendChat(ctx *fiber.Ctx) error {
	req, err := c.parseRequest(ctx)
	if err != nil {
		return err
	}

	execCtx, cancel := context.WithTimeout(context.Background(), requestDeadline)
	defer cancel()

	result, err := c.pipeline.Execute(execCtx, *req)
	if err != nil {
		c.logger.Error("ChatController", "Pipeline execution failed", map[string]interface{}{
			"error": err.Error(),
		})
		return fiber.NewError(fiber.StatusBadGateway, "failed to answer the query")
	}

	res := dto.SendChatResponse{
		SessionID:       req.SessionID,
		Refused:         result.Refused,
		Intent:          string(result.Metadata.Intent),
		RetrievalRounds: result.Metadata.RetrievalRounds,
	}

	if result.Refused {
		res.Answer = result.RefusalMessage
		return ctx.JSON(serverutils.SuccessResponse("Query refused", res))
	}

	var answer strings.Builder
	for delta := range result.Stream {
		answer.WriteString(delta)
	}

	res.Answer = answer.String()
	res.Citations = dto.ToCitationDTOs(result.Citations)

	c.saveTurns(req.SessionID, req.Query, res.Answer)

	return ctx.JSON(serverutils.SuccessResponse("Success send chat", res))
}

func (c *chatController) parseRequest(ctx *fiber.Ctx) (*executor.Request, error) {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return nil, err
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	return &executor.Request{
		SessionID:     req.SessionID,
		Query:         req.Query,
		History:       dto.ToHistory(req.History),
		SourceFilters: req.SourceFilters,
	}, nil
}

func (c *chatController) saveTurns(sessionID, query, answer string) {
	if c.historyStore == nil || sessionID == "" || answer == "" {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.historyStore.Append(saveCtx, sessionID, llm.Message{Role: "user", Content: query}); err != nil {
		c.logger.Warn("ChatController", "Failed to save user turn", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := c.historyStore.Append(saveCtx, sessionID, llm.Message{Role: "assistant", Content: answer}); err != nil {
		c.logger.Warn("ChatController", "Failed to save assistant turn", map[string]interface{}{"error": err.Error()})
	}
}

// writeFrame reports false once the client connection is unwritable.
func writeFrame(w *bufio.Writer, frame dto.StreamFrame) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return false
	}
	return w.Flush() == nil
}
