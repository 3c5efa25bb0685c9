// Package openaiclient builds the openai-go client shared by the chat and
// embedding providers and maps its errors into the app taxonomy.
package openaiclient

import (
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"ai-pdfchat/pkg/apperror"
)

// New returns a client with SDK retries disabled; callers retry through pkg/retry.
func New(apiKey, baseURL string) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(opts...)
}

// Classify wraps err as an *apperror.ExternalServiceError for service.
func Classify(service string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apperror.NewExternalServiceError(service, apiErr.StatusCode, errors.New(apiErrorMessage(apiErr)))
	}
	return apperror.NewExternalServiceError(service, 0, err)
}

func apiErrorMessage(e *openai.Error) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Type != "" {
		return e.Type
	}
	return "request failed"
}
