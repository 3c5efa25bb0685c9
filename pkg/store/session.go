package store

import (
	"context"
	"sync"
	"time"

	"ai-pdfchat/pkg/llm"
	"ai-pdfchat/pkg/rag/conversation"
)

type State string

const (
	StateEmpty      State = "EMPTY"
	StateProcessing State = "PROCESSING"
	StateReady      State = "READY"
)

// Conversation is the question answering object installed by a successful
// Process action.
type Conversation interface {
	Ask(ctx context.Context, question string) (*conversation.AnswerTurn, error)
}

// Releaser is implemented by conversations that hold resources outside the
// process, such as the vector namespace they retrieve from.
type Releaser interface {
	Release(ctx context.Context) error
}

// Release frees c if it holds anything. A nil c is fine.
func Release(ctx context.Context, c Conversation) error {
	if r, ok := c.(Releaser); ok {
		return r.Release(ctx)
	}
	return nil
}

// Summary describes the document batch behind the current conversation.
type Summary struct {
	Files         []string  `json:"files"`
	Skipped       []string  `json:"skipped,omitempty"`
	Pages         int       `json:"pages"`
	Characters    int       `json:"characters"`
	RawPreview    string    `json:"raw_preview"`
	Chunks        int       `json:"chunks"`
	ChunkPreviews []string  `json:"chunk_previews"`
	IndexName     string    `json:"index_name"`
	Namespace     string    `json:"namespace"`
	IndexReused   bool      `json:"index_reused"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// Session is the state of one browser tab or terminal. Engine is non-nil
// exactly when State is READY.
type Session struct {
	ID string

	mu        sync.RWMutex
	state     State
	engine    Conversation
	history   []llm.Message
	notice    string
	warnings  []string
	summary   *Summary
	updatedAt time.Time

	// held for the whole duration of a Process or Ask action
	action sync.Mutex
}

// Snapshot is a consistent read-only copy of a session.
type Snapshot struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	History   []llm.Message `json:"history"`
	Notice    string        `json:"notice,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
	Summary   *Summary      `json:"summary,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func NewSession(id string) *Session {
	return &Session{ID: id, state: StateEmpty, updatedAt: time.Now()}
}

// TryBegin claims the session for one action. It returns false while another
// action is in flight.
func (s *Session) TryBegin() bool {
	return s.action.TryLock()
}

func (s *Session) End() {
	s.action.Unlock()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]llm.Message, len(s.history))
	copy(history, s.history)

	return Snapshot{
		ID:        s.ID,
		State:     s.state,
		History:   history,
		Notice:    s.notice,
		Warnings:  append([]string(nil), s.warnings...),
		Summary:   s.summary,
		UpdatedAt: s.updatedAt,
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Engine() Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// MarkProcessing enters PROCESSING and returns what to restore if the run fails.
func (s *Session) MarkProcessing() (restore func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prevState, prevEngine, prevHistory := s.state, s.engine, s.history
	prevSummary, prevWarnings := s.summary, s.warnings

	s.state = StateProcessing
	s.notice = ""
	s.updatedAt = time.Now()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.state = prevState
		s.engine = prevEngine
		s.history = prevHistory
		s.summary = prevSummary
		s.warnings = prevWarnings
		s.updatedAt = time.Now()
	}
}

// Install replaces the conversation after a successful Process and returns
// the one it replaced. History starts empty.
func (s *Session) Install(engine Conversation, summary *Summary, warnings []string) (previous Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.engine
	s.state = StateReady
	s.engine = engine
	s.history = nil
	s.summary = summary
	s.warnings = warnings
	s.updatedAt = time.Now()
	return previous
}

// SetHistory replaces the history wholesale after a question.
func (s *Session) SetHistory(history []llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
	s.updatedAt = time.Now()
}

// SetNotice stores a one-shot message for the next render.
func (s *Session) SetNotice(notice string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = notice
}

// TakeNotice returns the pending notice and clears it.
func (s *Session) TakeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.notice
	s.notice = ""
	return n
}

// Reset returns the session to EMPTY and hands back the dropped conversation.
func (s *Session) Reset() (previous Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous = s.engine
	s.state = StateEmpty
	s.engine = nil
	s.history = nil
	s.summary = nil
	s.warnings = nil
	s.notice = ""
	s.updatedAt = time.Now()
	return previous
}
