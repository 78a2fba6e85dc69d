package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-assistant-be/pkg/llm"
)

// Provider speaks the OpenAI chat-completions protocol. It also covers any
// OpenAI-compatible server (Ollama's /v1, vLLM, LM Studio) via BaseURL.
type Provider struct {
	BaseURL   string
	ApiKey    string
	ModelName string
	Client    *http.Client
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(baseURL, apiKey, modelName string) *Provider {
	return &Provider{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		ApiKey:    apiKey,
		ModelName: modelName,
		Client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func (p *Provider) buildRequest(history []llm.Message, stream bool, opts ...llm.Option) ([]byte, error) {
	options := &llm.Options{
		Temperature: 0.7, // Default
	}
	for _, opt := range opts {
		opt(options)
	}

	messages := make([]chatMessage, 0, len(history)+1)
	if options.Instructions != "" {
		messages = append(messages, chatMessage{Role: "system", Content: options.Instructions})
	}
	for _, msg := range history {
		role := msg.Role
		if role == "model" {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: msg.Content})
	}

	model := p.ModelName
	if options.Model != "" {
		model = options.Model
	}

	payload := chatRequest{
		Model:       model,
		Messages:    messages,
		Stream:      stream,
		Temperature: options.Temperature,
	}
	if options.MaxTokens > 0 {
		payload.MaxTokens = options.MaxTokens
	}

	return json.Marshal(payload)
}

func (p *Provider) newHTTPRequest(ctx context.Context, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.ApiKey)
	}
	return req, nil
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	body, err := p.buildRequest(history, false, opts...)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := p.newHTTPRequest(ctx, body)
	if err != nil {
		return "", err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// ChatStream opens a streaming completion and forwards text deltas.
// The decode loop owns the HTTP body: it closes the connection when the
// stream ends, the payload says [DONE], or ctx is cancelled. Malformed SSE
// payloads are skipped line by line rather than aborting the stream.
func (p *Provider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan string, error) {
	body, err := p.buildRequest(history, true, opts...)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := p.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("completion stream error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	deltas := make(chan string)

	go func() {
		defer close(deltas)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}

			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			select {
			case deltas <- delta:
			case <-ctx.Done():
				return
			}
		}
		// Scanner errors (connection reset mid-stream) end the sequence
		// gracefully; text already delivered stays delivered.
	}()

	return deltas, nil
}
