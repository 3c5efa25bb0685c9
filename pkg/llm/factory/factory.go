package factory

import (
	"fmt"

	"ai-pdfchat/pkg/llm"
	"ai-pdfchat/pkg/llm/ollama"
	"ai-pdfchat/pkg/llm/openai"
	"ai-pdfchat/pkg/openaiclient"
)

type Settings struct {
	Provider    string
	Model       string
	Temperature float64
	APIKey      string
	BaseURL     string
}

func NewLLMProvider(s Settings) (llm.LLMProvider, error) {
	switch s.Provider {
	case "", "openai":
		return openai.NewOpenAIProvider(openaiclient.New(s.APIKey, s.BaseURL), s.Model, s.Temperature), nil
	case "ollama":
		baseURL := s.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, s.Model, s.Temperature), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", s.Provider)
	}
}
