package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	Client    *http.Client
}

func NewOllamaProvider(baseURL, modelName string) EmbeddingProvider {
	return &OllamaProvider{
		BaseURL:   baseURL,
		ModelName: modelName,
		Client:    &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Generate ignores taskType; Ollama embedding models have no task variants.
func (p *OllamaProvider) Generate(ctx context.Context, text string, _ string) (*Result, error) {
	payload := ollamaEmbedRequest{
		Model:  p.ModelName,
		Prompt: text,
	}
	payloadJson, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		"POST",
		p.BaseURL+"/api/embeddings",
		bytes.NewBuffer(payloadJson),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embedding error: status %d, body %s", res.StatusCode, string(resBody))
	}

	var embeddingRes ollamaEmbedResponse
	if err := json.Unmarshal(resBody, &embeddingRes); err != nil {
		return nil, err
	}

	if len(embeddingRes.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding for model %s", p.ModelName)
	}

	return &Result{Values: embeddingRes.Embedding}, nil
}
