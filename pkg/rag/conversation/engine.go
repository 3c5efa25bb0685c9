// Package conversation answers questions over an indexed document batch while
// remembering the turns of the conversation.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/pkg/apperror"
	"ai-pdfchat/pkg/llm"
	"ai-pdfchat/pkg/rag/memory"
	"ai-pdfchat/pkg/rag/prompt"
	"ai-pdfchat/pkg/retry"
	"ai-pdfchat/pkg/vectorindex"
)

const module = "ConversationEngine"

const DefaultTopK = 4

// Retriever is satisfied by *vectorindex.Index.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]vectorindex.Match, error)
}

type Config struct {
	TopK              int
	CondenseQuestion  bool
	MemoryWindowTurns int
	Retry             retry.Policy
	// OnRetry observes retried chat completions.
	OnRetry retry.NotifyFunc
}

// AnswerTurn is the outcome of one successful question.
type AnswerTurn struct {
	Question           string
	StandaloneQuestion string
	Reply              string
	History            []llm.Message
	Sources            []vectorindex.Match
}

type Engine struct {
	llm       llm.LLMProvider
	retriever Retriever
	memory    *memory.Buffer
	cfg       Config
	logger    logger.ILogger

	// one question at a time keeps the history strictly alternating
	mu sync.Mutex
}

func NewEngine(provider llm.LLMProvider, retriever Retriever, cfg Config, log logger.ILogger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Engine{
		llm:       provider,
		retriever: retriever,
		memory:    memory.NewBuffer(cfg.MemoryWindowTurns),
		cfg:       cfg,
		logger:    log,
	}
}

// Ask answers question using the retrieved context and the prior turns. On
// any failure the history is left exactly as it was.
func (e *Engine) Ask(ctx context.Context, question string) (*AnswerTurn, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperror.ErrEmptyQuestion
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	replay := e.memory.Context()

	standalone := question
	if e.cfg.CondenseQuestion && len(replay) > 0 {
		condensed, err := e.complete(ctx, []llm.Message{
			{Role: llm.RoleUser, Content: prompt.CondenseQuestion(replay, question)},
		}, llm.WithTemperature(0))
		if err != nil {
			return nil, fmt.Errorf("condense question: %w", err)
		}
		if condensed = strings.TrimSpace(condensed); condensed != "" {
			standalone = condensed
		}
	}

	matches, err := e.retriever.Retrieve(ctx, standalone, e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}

	chunks := make([]string, len(matches))
	for i, m := range matches {
		chunks[i] = m.Text
	}

	reply, err := e.complete(ctx, prompt.NewAnswerBuilder(chunks, replay, question).Messages())
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	e.memory.AppendTurn(question, reply)

	e.logger.Info(module, "Question answered", map[string]interface{}{
		"sources":     len(matches),
		"condensed":   standalone != question,
		"history_len": e.memory.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return &AnswerTurn{
		Question:           question,
		StandaloneQuestion: standalone,
		Reply:              reply,
		History:            e.memory.Messages(),
		Sources:            matches,
	}, nil
}

func (e *Engine) complete(ctx context.Context, msgs []llm.Message, opts ...llm.Option) (string, error) {
	return retry.Do(ctx, e.cfg.Retry, func(ctx context.Context) (string, error) {
		return e.llm.Chat(ctx, msgs, opts...)
	}, func(attempt uint, err error, wait time.Duration) {
		e.logger.Warn(module, "Chat completion failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"wait_ms": wait.Milliseconds(),
			"error":   err.Error(),
		})
		if e.cfg.OnRetry != nil {
			e.cfg.OnRetry(attempt, err, wait)
		}
	})
}

// History returns a copy of every turn so far.
func (e *Engine) History() []llm.Message {
	return e.memory.Messages()
}
