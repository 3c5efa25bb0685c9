package openai

import (
	"context"
	"errors"

	sdk "github.com/openai/openai-go"

	"ai-pdfchat/pkg/llm"
	"ai-pdfchat/pkg/openaiclient"
)

const service = "openai-chat"

var errNoChoices = errors.New("completion returned no choices")

type OpenAIProvider struct {
	client      sdk.Client
	modelName   string
	temperature float64
}

// Ensure OpenAIProvider implements LLMProvider
var _ llm.LLMProvider = &OpenAIProvider{}

func NewOpenAIProvider(client sdk.Client, modelName string, temperature float64) *OpenAIProvider {
	if modelName == "" {
		modelName = sdk.ChatModelGPT3_5Turbo
	}
	return &OpenAIProvider{client: client, modelName: modelName, temperature: temperature}
}

func (p *OpenAIProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	temp := p.temperature
	options := llm.Apply(llm.Options{Model: p.modelName, Temperature: &temp}, opts...)

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, sdk.SystemMessage(msg.Content))
		case llm.RoleAssistant, "model":
			messages = append(messages, sdk.AssistantMessage(msg.Content))
		default:
			messages = append(messages, sdk.UserMessage(msg.Content))
		}
	}

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(options.Model),
		Messages: messages,
	}
	if options.Temperature != nil {
		params.Temperature = sdk.Float(*options.Temperature)
	}
	if options.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(options.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", openaiclient.Classify(service, err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}
