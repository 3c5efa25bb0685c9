package embedding

import (
	"context"
	"time"

	"ai-pdfchat/pkg/retry"
)

// RetryHook observes every retried embedding call.
type RetryHook func(attempt uint, err error, wait time.Duration)

// Retrying decorates a provider with the bounded backoff of pkg/retry.
type Retrying struct {
	inner  EmbeddingProvider
	policy retry.Policy
	hook   RetryHook
}

var _ EmbeddingProvider = (*Retrying)(nil)

func NewRetrying(inner EmbeddingProvider, policy retry.Policy, hook RetryHook) *Retrying {
	return &Retrying{inner: inner, policy: policy, hook: hook}
}

func (r *Retrying) Dimension() int {
	return r.inner.Dimension()
}

func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return retry.Do(ctx, r.policy, func(ctx context.Context) ([][]float32, error) {
		return r.inner.Embed(ctx, texts)
	}, retry.NotifyFunc(r.hook))
}
