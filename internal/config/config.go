package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Keys      APIKeys
	Ai        AIConfig
	Store     StoreConfig
	Pipeline  PipelineConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type APIKeys struct {
	GoogleGemini string
	OpenAI       string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini" or "ollama"
	OllamaBaseURL     string
	OllamaModel       string
	LLMProvider       string // "openai" or "ollama"
	LLMBaseURL        string
	LLMModel          string
	MaxTokens         int
}

type StoreConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// PipelineConfig holds the retrieval pipeline knobs. Defaults match the
// production deployment; everything is env-tunable for experiments.
type PipelineConfig struct {
	MatchCount         int     // per sub-query candidate cap
	MinSemanticScore   float64 // hybrid search score floor
	FallbackMinScore   float64 // looser floor for semantic-only fallback
	MaxResults         int     // diversity selector output cap
	MaxPerSource       int     // per-source representation cap
	EvidenceCharBudget int     // per-block text budget
	MaxCitations       int     // citation list cap
	FallbackThreshold  int     // evidence count below which the broadened round fires
	HistoryLimit       int     // conversation turns embedded in the prompt
}

type TelemetryConfig struct {
	RingCapacity int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Keys: APIKeys{
			GoogleGemini: getEnv("GOOGLE_GEMINI_API_KEY", ""),
			OpenAI:       getEnv("OPENAI_API_KEY", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "gemini"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMBaseURL:        getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:         getEnvAsInt("LLM_MAX_TOKENS", 1024),
		},
		Store: StoreConfig{
			BaseURL:        getEnv("VECTOR_STORE_URL", "http://localhost:8000"),
			APIKey:         getEnv("VECTOR_STORE_API_KEY", ""),
			TimeoutSeconds: getEnvAsInt("VECTOR_STORE_TIMEOUT_SECONDS", 15),
		},
		Pipeline: PipelineConfig{
			MatchCount:         getEnvAsInt("RAG_MATCH_COUNT", 20),
			MinSemanticScore:   getEnvAsFloat("RAG_MIN_SEMANTIC_SCORE", 0.35),
			FallbackMinScore:   getEnvAsFloat("RAG_FALLBACK_MIN_SCORE", 0.2),
			MaxResults:         getEnvAsInt("RAG_MAX_RESULTS", 10),
			MaxPerSource:       getEnvAsInt("RAG_MAX_PER_SOURCE", 3),
			EvidenceCharBudget: getEnvAsInt("RAG_EVIDENCE_CHAR_BUDGET", 900),
			MaxCitations:       getEnvAsInt("RAG_MAX_CITATIONS", 8),
			FallbackThreshold:  getEnvAsInt("RAG_FALLBACK_THRESHOLD", 3),
			HistoryLimit:       getEnvAsInt("RAG_HISTORY_LIMIT", 10),
		},
		Telemetry: TelemetryConfig{
			RingCapacity: getEnvAsInt("TELEMETRY_RING_CAPACITY", 300),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
