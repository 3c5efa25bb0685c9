package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/pkg/apperror"
	"ai-pdfchat/pkg/llm"
	"ai-pdfchat/pkg/openaiclient"
)

type capturedRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var got capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"It is about cats."}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(openaiclient.New("k", srv.URL+"/"), "", 0.7)
	reply, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "context"},
		{Role: llm.RoleUser, Content: "hi"},
		{Role: llm.RoleAssistant, Content: "hello"},
		{Role: llm.RoleUser, Content: "What is this about?"},
	}, llm.WithTemperature(0))

	require.NoError(t, err)
	assert.Equal(t, "It is about cats.", reply)
	assert.Equal(t, "gpt-3.5-turbo", got.Model)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.0, *got.Temperature)

	require.Len(t, got.Messages, 4)
	roles := []string{got.Messages[0].Role, got.Messages[1].Role, got.Messages[2].Role, got.Messages[3].Role}
	assert.Equal(t, []string{"system", "user", "assistant", "user"}, roles)
	assert.Equal(t, "What is this about?", got.Messages[3].Content)
}

func TestOpenAIProvider_ErrorsAreClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider(openaiclient.New("k", srv.URL+"/"), "gpt-4o-mini", 0.7).Generate(context.Background(), "hi")

	var ext *apperror.ExternalServiceError
	require.True(t, errors.As(err, &ext))
	assert.True(t, ext.Transient)
	assert.Contains(t, ext.Error(), "Rate limit reached")
}
