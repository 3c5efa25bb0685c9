package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/pkg/apperror"
	"ai-pdfchat/pkg/embedding"
	"ai-pdfchat/pkg/retry"
)

const DefaultBatchSize = 64

// Progress is reported after the index is ready and after every stored batch.
type Progress struct {
	Reused bool
	Done   int
	Total  int
}

type ProgressFunc func(Progress)

// RetryFunc observes retried store calls.
type RetryFunc func(service string, attempt uint, err error, wait time.Duration)

type Builder struct {
	store     Store
	embedder  embedding.EmbeddingProvider
	spec      IndexSpec
	batchSize int
	policy    retry.Policy
	onRetry   RetryFunc
	logger    logger.ILogger
}

type BuilderOption func(*Builder)

func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

func WithRetryPolicy(p retry.Policy) BuilderOption {
	return func(b *Builder) { b.policy = p }
}

func WithRetryHook(fn RetryFunc) BuilderOption {
	return func(b *Builder) { b.onRetry = fn }
}

// NewBuilder indexes into spec.Name. The index dimension always follows the
// embedder, whatever spec.Dimension says.
func NewBuilder(store Store, embedder embedding.EmbeddingProvider, spec IndexSpec, log logger.ILogger, opts ...BuilderOption) *Builder {
	spec.Dimension = embedder.Dimension()
	if spec.Metric == "" {
		spec.Metric = MetricCosine
	}
	b := &Builder{
		store:     store,
		embedder:  embedder,
		spec:      spec,
		batchSize: DefaultBatchSize,
		policy:    retry.DefaultPolicy(),
		logger:    log,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) Spec() IndexSpec {
	return b.spec
}

// Build creates the index (an existing one is reused), embeds every chunk
// and upserts it under a namespace private to this build.
func (b *Builder) Build(ctx context.Context, chunks []string, onProgress ProgressFunc) (*Index, error) {
	if len(chunks) == 0 {
		return nil, apperror.ErrEmptyInput
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	reused, err := b.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}

	namespace := uuid.NewString()
	onProgress(Progress{Reused: reused, Done: 0, Total: len(chunks)})

	for start := 0; start < len(chunks); start += b.batchSize {
		end := start + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		vectors, err := b.embedder.Embed(ctx, batch)
		if err != nil {
			return nil, b.abandon(ctx, namespace, start, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err))
		}
		if len(vectors) != len(batch) {
			return nil, b.abandon(ctx, namespace, start, fmt.Errorf("embed chunks %d-%d: got %d vectors for %d chunks", start, end-1, len(vectors), len(batch)))
		}

		records := make([]Record, len(batch))
		for i, text := range batch {
			records[i] = Record{ID: uuid.NewString(), Vector: vectors[i], Text: text, Seq: start + i}
		}

		_, err = retry.Do(ctx, b.policy, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, b.store.Upsert(ctx, b.spec, namespace, records)
		}, b.notify())
		if err != nil {
			return nil, b.abandon(ctx, namespace, end, fmt.Errorf("upsert chunks %d-%d: %w", start, end-1, err))
		}

		onProgress(Progress{Reused: reused, Done: end, Total: len(chunks)})
	}

	b.logger.Info("VECTOR_INDEX", "Index built", map[string]interface{}{
		"index":     b.spec.Name,
		"store":     b.store.Name(),
		"namespace": namespace,
		"chunks":    len(chunks),
		"reused":    reused,
	})

	return &Index{
		store:     b.store,
		embedder:  b.embedder,
		spec:      b.spec,
		namespace: namespace,
		size:      len(chunks),
		policy:    b.policy,
		notify:    b.notify(),
	}, nil
}

// abandon drops what a failed build already stored and returns err. stored is
// an upper bound on the records written so far.
func (b *Builder) abandon(ctx context.Context, namespace string, stored int, err error) error {
	dropper, ok := b.store.(NamespaceDropper)
	if !ok || stored == 0 {
		return err
	}
	if dropErr := dropper.DropNamespace(context.WithoutCancel(ctx), b.spec, namespace); dropErr != nil {
		b.logger.Warn("VECTOR_INDEX", "Failed to drop namespace of failed build", map[string]interface{}{
			"namespace": namespace,
			"error":     dropErr.Error(),
		})
	}
	return err
}

func (b *Builder) ensureIndex(ctx context.Context) (bool, error) {
	_, err := retry.Do(ctx, b.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.store.CreateIndex(ctx, b.spec)
	}, b.notify())

	switch {
	case err == nil:
		b.logger.Info("VECTOR_INDEX", "Index created", map[string]interface{}{
			"index":     b.spec.Name,
			"dimension": b.spec.Dimension,
			"metric":    string(b.spec.Metric),
		})
		return false, nil
	case errors.Is(err, apperror.ErrIndexConflict):
		b.logger.Debug("VECTOR_INDEX", "Reusing existing index", map[string]interface{}{"index": b.spec.Name})
		return true, nil
	default:
		return false, fmt.Errorf("create index %q: %w", b.spec.Name, err)
	}
}

func (b *Builder) notify() retry.NotifyFunc {
	return func(attempt uint, err error, wait time.Duration) {
		b.logger.Warn("VECTOR_INDEX", "Retrying vector store call", map[string]interface{}{
			"store":   b.store.Name(),
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
			"error":   err.Error(),
		})
		if b.onRetry != nil {
			b.onRetry(b.store.Name(), attempt, err, wait)
		}
	}
}

// Index is a populated, queryable index handle bound to one build.
type Index struct {
	store     Store
	embedder  embedding.EmbeddingProvider
	spec      IndexSpec
	namespace string
	size      int
	policy    retry.Policy
	notify    retry.NotifyFunc
}

func (i *Index) Name() string {
	return i.spec.Name
}

func (i *Index) Namespace() string {
	return i.namespace
}

// Size is the number of chunks stored by the build.
func (i *Index) Size() int {
	return i.size
}

// Release discards the records of this build when the store supports it.
// The index must not be queried afterwards.
func (i *Index) Release(ctx context.Context) error {
	dropper, ok := i.store.(NamespaceDropper)
	if !ok {
		return nil
	}
	return dropper.DropNamespace(ctx, i.spec, i.namespace)
}

// Retrieve returns up to k chunks most similar to query, best first.
func (i *Index) Retrieve(ctx context.Context, query string, k int) ([]Match, error) {
	vectors, err := i.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}

	return retry.Do(ctx, i.policy, func(ctx context.Context) ([]Match, error) {
		return i.store.Query(ctx, i.spec, i.namespace, vectors[0], k)
	}, i.notify)
}
