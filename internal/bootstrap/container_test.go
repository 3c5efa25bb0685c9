package bootstrap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/internal/config"
	"ai-pdfchat/internal/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{SessionTTL: time.Hour, MaxUploadBytes: 1 << 20},
		Keys:      config.APIKeys{OpenAI: "sk-test", VectorStore: "vs-test"},
		Ai:        config.AIConfig{LLMProvider: "openai", LLMModel: "gpt-3.5-turbo", EmbeddingProvider: "openai", EmbeddingModel: "text-embedding-ada-002", EmbeddingDimensions: 1536, EmbeddingBatchSize: 16},
		Vector:    config.VectorConfig{Store: "memory", IndexName: "langchain-demo", Metric: "cosine"},
		Retrieval: config.RetrievalConfig{TopK: 4},
		Retry:     config.RetryConfig{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	}
}

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(testConfig(), logger.NewNopLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.ChatService)
	assert.NotNil(t, c.ChatController)
	assert.Equal(t, "EMPTY", string(c.ChatService.Session("s1").State))
}

func TestNewContainer_RejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"vector store", func(c *config.Config) { c.Vector.Store = "pinecone" }},
		{"metric", func(c *config.Config) { c.Vector.Metric = "manhattan" }},
		{"embedding", func(c *config.Config) { c.Ai.EmbeddingProvider = "gemini" }},
		{"llm", func(c *config.Config) { c.Ai.LLMProvider = "huggingface" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)

			_, err := NewContainer(cfg, logger.NewNopLogger())
			assert.Error(t, err)
		})
	}
}
