package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"ai-pdfchat/pkg/openaiclient"
)

const openAIService = "openai-embeddings"

// OpenAIProvider embeds through the OpenAI embeddings endpoint, batching all
// texts of one call into a single request.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	dimension int
}

var _ EmbeddingProvider = (*OpenAIProvider)(nil)

func NewOpenAIProvider(client openai.Client, model string, dimension int) *OpenAIProvider {
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbeddingAda002)
	}
	return &OpenAIProvider{client: client, model: model, dimension: dimension}
}

func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(p.model),
	}
	// ada-002 rejects the dimensions parameter
	if strings.HasPrefix(p.model, "text-embedding-3") && p.dimension > 0 {
		params.Dimensions = openai.Int(int64(p.dimension))
	}

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, openaiclient.Classify(openAIService, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || int(item.Index) >= len(out) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		if err := checkDimension(p.dimension, vec); err != nil {
			return nil, err
		}
		out[item.Index] = vec
	}

	return out, nil
}
