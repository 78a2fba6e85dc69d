package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-assistant-be/internal/config"
	"ai-assistant-be/internal/controller"
	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/internal/websocket"
	"ai-assistant-be/pkg/embedding"
	"ai-assistant-be/pkg/llm/factory"
	"ai-assistant-be/pkg/rag/evidence"
	"ai-assistant-be/pkg/rag/executor"
	"ai-assistant-be/pkg/rag/history"
	"ai-assistant-be/pkg/rag/response"
	"ai-assistant-be/pkg/rag/search"
	"ai-assistant-be/pkg/telemetry"
	"ai-assistant-be/pkg/vectorstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	Cfg *config.Config

	// Controllers
	ChatController      controller.IChatController
	TelemetryController controller.ITelemetryController
	ChatWSHandler       *websocket.ChatHandler

	// Pipeline internals exposed for the eval CLI and tests
	Pipeline *executor.Pipeline
	Recorder *telemetry.Recorder
	Logger   logger.ILogger

	pubSub    *gochannel.GoChannel
	forwarder *telemetry.NATSForwarder
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Providers
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	}
	embeddingProvider = embedding.NewCachedProvider(embeddingProvider)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		llmBaseURL(cfg),
		cfg.Keys.OpenAI,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	storeClient := vectorstore.NewClient(
		cfg.Store.BaseURL,
		cfg.Store.APIKey,
		time.Duration(cfg.Store.TimeoutSeconds)*time.Second,
	)

	// 4. Conversation history (redis when configured, in-memory otherwise)
	var historyStore history.Store
	if cfg.App.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Invalid REDIS_URL, using in-memory history: %v", err)
			historyStore = history.NewMemoryStore(cfg.Pipeline.HistoryLimit * 2)
		} else {
			historyStore = history.NewRedisStore(redis.NewClient(opts), cfg.Pipeline.HistoryLimit*2)
			log.Printf("[INFO] Using Redis conversation history")
		}
	} else {
		historyStore = history.NewMemoryStore(cfg.Pipeline.HistoryLimit * 2)
	}

	// 5. Telemetry
	recorder := telemetry.NewRecorder(cfg.Telemetry.RingCapacity, pubSub, sysLogger)

	var forwarder *telemetry.NATSForwarder
	if cfg.App.NatsURL != "" {
		forwarder, err = telemetry.NewNATSForwarder(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS forwarder: %v", err)
		} else if err := forwarder.Run(context.Background(), pubSub); err != nil {
			log.Printf("[WARN] Failed to start NATS forwarder: %v", err)
		}
	}

	// 6. Pipeline
	orchestrator := search.NewOrchestrator(embeddingProvider, storeClient, search.Config{
		MatchCount:       cfg.Pipeline.MatchCount,
		MinSemanticScore: cfg.Pipeline.MinSemanticScore,
		FallbackMinScore: cfg.Pipeline.FallbackMinScore,
		RequestTimeout:   time.Duration(cfg.Store.TimeoutSeconds) * time.Second,
	}, sysLogger)

	assembler := evidence.NewAssembler(evidence.Config{
		CharBudget:   cfg.Pipeline.EvidenceCharBudget,
		MaxCitations: cfg.Pipeline.MaxCitations,
	})

	streamer := response.NewStreamer(llmProvider, response.Config{
		MaxTokens:    cfg.Ai.MaxTokens,
		HistoryLimit: cfg.Pipeline.HistoryLimit,
		CiteEvidence: true,
	}, sysLogger)

	pipeline := executor.NewPipeline(
		orchestrator,
		assembler,
		streamer,
		historyStore,
		recorder,
		sysLogger,
		executor.Config{
			MaxResults:        cfg.Pipeline.MaxResults,
			MaxPerSource:      cfg.Pipeline.MaxPerSource,
			FallbackThreshold: cfg.Pipeline.FallbackThreshold,
			HistoryLimit:      cfg.Pipeline.HistoryLimit,
		},
	)

	// 7. Controllers
	chatController := controller.NewChatController(pipeline, historyStore, sysLogger)
	telemetryController := controller.NewTelemetryController(recorder)
	chatWSHandler := websocket.NewChatHandler(pipeline, historyStore, sysLogger)

	return &Container{
		Cfg:                 cfg,
		ChatController:      chatController,
		TelemetryController: telemetryController,
		ChatWSHandler:       chatWSHandler,
		Pipeline:            pipeline,
		Recorder:            recorder,
		Logger:              sysLogger,
		pubSub:              pubSub,
		forwarder:           forwarder,
	}
}

// Shutdown releases the bus and the NATS connection.
func (c *Container) Shutdown() {
	if c.forwarder != nil {
		c.forwarder.Close()
	}
	if c.pubSub != nil {
		_ = c.pubSub.Close()
	}
	_ = c.Logger.Sync()
}

func llmBaseURL(cfg *config.Config) string {
	if cfg.Ai.LLMProvider == "ollama" {
		return cfg.Ai.OllamaBaseURL
	}
	return cfg.Ai.LLMBaseURL
}
