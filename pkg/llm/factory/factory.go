package factory

import (
	"fmt"
	"strings"

	"ai-assistant-be/pkg/llm"
	"ai-assistant-be/pkg/llm/openai"
)

// NewLLMProvider builds the configured completion backend.
// "openai" talks to api.openai.com (or LLM_BASE_URL); "ollama" reuses the
// OpenAI-compatible endpoint Ollama exposes under /v1.
func NewLLMProvider(provider, model, baseURL, apiKey string) (llm.LLMProvider, error) {
	switch provider {
	case "openai":
		return openai.NewProvider(baseURL, apiKey, model), nil
	case "ollama":
		base := strings.TrimRight(baseURL, "/")
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		return openai.NewProvider(base, "", model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
