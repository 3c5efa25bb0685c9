package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/pkg/apperror"
	"ai-pdfchat/pkg/llm"
)

func TestOllamaProvider_Chat(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"pong"},"done":true}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3", 0.2)
	reply, err := p.Chat(context.Background(), []llm.Message{{Role: "model", Content: "x"}, {Role: llm.RoleUser, Content: "ping"}}, llm.WithMaxTokens(32))

	require.NoError(t, err)
	assert.Equal(t, "pong", reply)
	assert.False(t, got.Stream)
	assert.Equal(t, llm.RoleAssistant, got.Messages[0].Role)
	require.NotNil(t, got.Options.Temperature)
	assert.Equal(t, 0.2, *got.Options.Temperature)
	assert.Equal(t, 32, got.Options.NumPredict)
}

func TestOllamaProvider_StatusErrors(t *testing.T) {
	tests := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", tt.status)
		}))

		_, err := NewOllamaProvider(srv.URL, "llama3", 0).Generate(context.Background(), "hi")
		assert.Error(t, err)
		assert.Equal(t, tt.wantTransient, apperror.IsTransient(err), "status %d", tt.status)
		srv.Close()
	}
}
