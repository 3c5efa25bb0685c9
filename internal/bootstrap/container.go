package bootstrap

import (
	"context"
	"fmt"
	"time"

	"ai-pdfchat/internal/config"
	"ai-pdfchat/internal/controller"
	"ai-pdfchat/internal/metrics"
	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/internal/repository/memory"
	"ai-pdfchat/internal/service"
	"ai-pdfchat/internal/view"
	"ai-pdfchat/pkg/database"
	"ai-pdfchat/pkg/embedding"
	"ai-pdfchat/pkg/events"
	"ai-pdfchat/pkg/ingest"
	"ai-pdfchat/pkg/llm"
	"ai-pdfchat/pkg/llm/factory"
	pktNats "ai-pdfchat/pkg/nats"
	"ai-pdfchat/pkg/openaiclient"
	"ai-pdfchat/pkg/progress"
	"ai-pdfchat/pkg/rag/conversation"
	"ai-pdfchat/pkg/retry"
	"ai-pdfchat/pkg/store"
	"ai-pdfchat/pkg/utils"
	"ai-pdfchat/pkg/vectorindex"
)

const module = "Bootstrap"

type Container struct {
	Config   *config.Config
	Logger   logger.ILogger
	Metrics  *metrics.Metrics
	Progress *progress.Bus
	Sessions *memory.SessionRepository

	ChatService    service.IChatService
	ChatController controller.IChatController

	closers []func() error
}

// NewContainer wires every component from cfg. Close releases the
// connections it opened.
func NewContainer(cfg *config.Config, log logger.ILogger) (*Container, error) {
	c := &Container{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics.New(),
		Progress: progress.NewBus(log),
		Sessions: memory.NewSessionRepository(cfg.App.SessionTTL),
	}
	c.closers = append(c.closers, c.Progress.Close)

	policy := retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
	}

	embedder, err := c.newEmbedder(policy)
	if err != nil {
		c.Close()
		return nil, err
	}

	llmProvider, err := c.newLLM()
	if err != nil {
		c.Close()
		return nil, err
	}

	vectorStore, err := c.newVectorStore()
	if err != nil {
		c.Close()
		return nil, err
	}

	metric, err := vectorindex.ParseMetric(cfg.Vector.Metric)
	if err != nil {
		c.Close()
		return nil, err
	}

	builder := vectorindex.NewBuilder(vectorStore, embedder,
		vectorindex.IndexSpec{Name: cfg.Vector.IndexName, Metric: metric},
		log,
		vectorindex.WithBatchSize(cfg.Ai.EmbeddingBatchSize),
		vectorindex.WithRetryPolicy(policy),
		vectorindex.WithRetryHook(func(service string, attempt uint, err error, wait time.Duration) {
			c.Metrics.Retry(service)
		}),
	)

	convCfg := conversation.Config{
		TopK:              cfg.Retrieval.TopK,
		CondenseQuestion:  cfg.Retrieval.CondenseQuestion,
		MemoryWindowTurns: cfg.Retrieval.MemoryWindowTurns,
		Retry:             policy,
		OnRetry: func(attempt uint, err error, wait time.Duration) {
			c.Metrics.Retry("chat-completion")
		},
	}
	newEngine := func(index *vectorindex.Index) store.Conversation {
		return conversation.NewEngine(llmProvider, index, convCfg, log)
	}

	c.ChatService = service.NewChatService(
		c.Sessions,
		ingest.NewIngestor(ingest.NewPDFExtractor(), log),
		&utils.CharacterSplitter{
			Separator:    utils.DefaultSeparator,
			ChunkSize:    utils.DefaultChunkSize,
			ChunkOverlap: utils.DefaultChunkOverlap,
		},
		builder,
		newEngine,
		c.Progress,
		c.newEventPublisher(),
		c.Metrics,
		log,
	)

	c.Sessions.OnEvicted(func(session *store.Session) {
		if err := store.Release(context.Background(), session.Engine()); err != nil {
			log.Warn(module, "Failed to release expired session", map[string]interface{}{
				"session_id": session.ID,
				"error":      err.Error(),
			})
		}
	})

	renderer, err := view.NewRenderer()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	c.ChatController = controller.NewChatController(c.ChatService, renderer, c.Progress, int64(cfg.App.MaxUploadBytes), log)

	log.Info(module, "Container ready", map[string]interface{}{
		"llm_provider":       cfg.Ai.LLMProvider,
		"llm_model":          cfg.Ai.LLMModel,
		"embedding_provider": cfg.Ai.EmbeddingProvider,
		"vector_store":       vectorStore.Name(),
		"index":              cfg.Vector.IndexName,
	})
	return c, nil
}

func (c *Container) newEmbedder(policy retry.Policy) (embedding.EmbeddingProvider, error) {
	cfg := c.Config.Ai

	var inner embedding.EmbeddingProvider
	switch cfg.EmbeddingProvider {
	case "", "openai":
		client := openaiclient.New(c.Config.Keys.OpenAI, cfg.OpenAIBaseURL)
		inner = embedding.NewOpenAIProvider(client, cfg.EmbeddingModel, cfg.EmbeddingDimensions)
	case "ollama":
		inner = embedding.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaEmbeddingModel, cfg.EmbeddingDimensions)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}

	return embedding.NewRetrying(inner, policy, func(attempt uint, err error, wait time.Duration) {
		c.Metrics.Retry("embeddings")
		c.Logger.Warn(module, "Embedding request failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
			"error":   err.Error(),
		})
	}), nil
}

func (c *Container) newLLM() (llm.LLMProvider, error) {
	cfg := c.Config.Ai
	baseURL := cfg.OpenAIBaseURL
	if cfg.LLMProvider == "ollama" {
		baseURL = cfg.OllamaBaseURL
	}
	return factory.NewLLMProvider(factory.Settings{
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		Temperature: cfg.LLMTemperature,
		APIKey:      c.Config.Keys.OpenAI,
		BaseURL:     baseURL,
	})
}

func (c *Container) newVectorStore() (vectorindex.Store, error) {
	cfg := c.Config.Vector

	switch cfg.Store {
	case "", "qdrant":
		return vectorindex.NewQdrantStore(vectorindex.QdrantConfig{
			URL:     cfg.QdrantURL,
			APIKey:  c.Config.Keys.VectorStore,
			Timeout: 30 * time.Second,
		}), nil

	case "pgvector":
		db, err := database.NewGormDBFromDSN(cfg.DBConnection, !c.Config.IsProduction())
		if err != nil {
			return nil, fmt.Errorf("connect pgvector database: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, sqlDB.Close)
		return vectorindex.NewPGVectorStore(db), nil

	case "redis":
		rdb, err := vectorindex.NewRedisClient(cfg.RedisURL, c.Config.Keys.VectorStore)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rdb.Close)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			c.Logger.Warn(module, "Redis is not reachable yet", map[string]interface{}{"error": err.Error()})
		}
		return vectorindex.NewRedisStore(rdb), nil

	case "memory":
		return vectorindex.NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unsupported vector store: %s", cfg.Store)
	}
}

func (c *Container) newEventPublisher() events.Publisher {
	if c.Config.App.NatsURL == "" {
		return events.Nop{}
	}

	pub, err := pktNats.NewPublisher(c.Config.App.NatsURL, c.Logger)
	if err != nil {
		c.Logger.Warn(module, "Failed to connect to NATS, events disabled", map[string]interface{}{"error": err.Error()})
		return events.Nop{}
	}
	c.closers = append(c.closers, func() error {
		pub.Close()
		return nil
	})
	return pub
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
