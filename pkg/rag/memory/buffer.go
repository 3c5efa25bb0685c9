// Package memory holds the conversational memory of one conversation engine.
package memory

import (
	"sync"

	"ai-pdfchat/pkg/llm"
)

// Buffer records every user/assistant turn in order. WindowTurns > 0 limits
// how many recent turns are replayed to the model; the recorded history
// itself is never trimmed.
type Buffer struct {
	mu          sync.RWMutex
	messages    []llm.Message
	windowTurns int
}

func NewBuffer(windowTurns int) *Buffer {
	if windowTurns < 0 {
		windowTurns = 0
	}
	return &Buffer{windowTurns: windowTurns}
}

// AppendTurn stores one question and its answer as a single unit.
func (b *Buffer) AppendTurn(question, answer string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages,
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	)
}

// Messages returns a copy of the full history.
func (b *Buffer) Messages() []llm.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]llm.Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// Context returns the turns that should be replayed to the model.
func (b *Buffer) Context() []llm.Message {
	b.mu.RLock()
	defer b.mu.RUnlock()

	msgs := b.messages
	if b.windowTurns > 0 && len(msgs) > 2*b.windowTurns {
		msgs = msgs[len(msgs)-2*b.windowTurns:]
	}
	out := make([]llm.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.messages)
}
