package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/pkg/apperror"
	"ai-pdfchat/pkg/openaiclient"
	"ai-pdfchat/pkg/retry"
)

// openAIEmbeddingServer answers /embeddings with vectors [i, 1, 0...] of size dim,
// listed in reverse order to check the index mapping.
func openAIEmbeddingServer(t *testing.T, dim int, failures int32, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		if n <= failures {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"try again","type":"server_error"}}`)
			return
		}

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		data := make([]map[string]interface{}, 0, len(body.Input))
		for i := len(body.Input) - 1; i >= 0; i-- {
			vec := make([]float64, dim)
			vec[0] = float64(i)
			if dim > 1 {
				vec[1] = 1
			}
			data = append(data, map[string]interface{}{"object": "embedding", "index": i, "embedding": vec})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  body.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIProvider_EmbedKeepsInputOrder(t *testing.T) {
	srv, _ := openAIEmbeddingServer(t, 4, 0, 0)
	p := NewOpenAIProvider(openaiclient.New("test-key", srv.URL+"/"), "", 4)

	vecs, err := p.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Len(t, v, 4)
		assert.Equal(t, float32(i), v[0])
	}
	assert.Equal(t, 4, p.Dimension())
}

func TestOpenAIProvider_DimensionMismatch(t *testing.T) {
	srv, _ := openAIEmbeddingServer(t, 3, 0, 0)
	p := NewOpenAIProvider(openaiclient.New("test-key", srv.URL+"/"), "text-embedding-ada-002", 1536)

	_, err := p.Embed(context.Background(), []string{"a"})
	var mismatch *DimensionMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, 3, mismatch.Got)
	assert.False(t, apperror.IsTransient(err))
}

func TestOpenAIProvider_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantTransient bool
	}{
		{"rate limit", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad key", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := openAIEmbeddingServer(t, 2, 1, tt.status)
			p := NewOpenAIProvider(openaiclient.New("test-key", srv.URL+"/"), "", 2)

			_, err := p.Embed(context.Background(), []string{"a"})
			var ext *apperror.ExternalServiceError
			require.True(t, errors.As(err, &ext))
			assert.Equal(t, tt.status, ext.StatusCode)
			assert.Equal(t, tt.wantTransient, ext.Transient)
		})
	}
}

func TestRetrying_RecoversFromTransientFailure(t *testing.T) {
	srv, calls := openAIEmbeddingServer(t, 2, 1, http.StatusTooManyRequests)
	inner := NewOpenAIProvider(openaiclient.New("test-key", srv.URL+"/"), "", 2)

	var retries int
	p := NewRetrying(inner, retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		func(attempt uint, err error, wait time.Duration) { retries++ })

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
	assert.Equal(t, 1, retries)
}

func TestOllamaProvider_EmbedNormalises(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"embedding":[3,4]}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "nomic-embed-text", 2)
	vecs, err := p.Embed(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	assert.InDelta(t, 0.6, vecs[0][0], 1e-6)
	assert.InDelta(t, 0.8, vecs[0][1], 1e-6)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestOllamaProvider_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "", 0).Embed(context.Background(), []string{"x"})
	assert.True(t, apperror.IsTransient(err))
}

func TestNormalizeVector(t *testing.T) {
	v := normalizeVector([]float32{1, 2, 2})

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	assert.Equal(t, []float32{0, 0}, normalizeVector([]float32{0, 0}))
}
