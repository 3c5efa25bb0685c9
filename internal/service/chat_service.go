package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"ai-pdfchat/internal/metrics"
	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/pkg/apperror"
	"ai-pdfchat/pkg/events"
	"ai-pdfchat/pkg/ingest"
	"ai-pdfchat/pkg/progress"
	"ai-pdfchat/pkg/rag/conversation"
	"ai-pdfchat/pkg/store"
	"ai-pdfchat/pkg/vectorindex"
)

const module = "ChatService"

const (
	NoticeUploadFiles = "Please upload one or more PDF files."
	NoticeNoText      = "No text could be extracted from the uploaded files."
	NoticeProcessed   = "Documents processed. Ask a question about your documents."
)

const (
	rawPreviewChars   = 2000
	chunkPreviewChars = 200
	chunkPreviewCount = 5
)

type IChatService interface {
	Process(ctx context.Context, sessionID string, docs []ingest.Document) (*store.Snapshot, error)
	Ask(ctx context.Context, sessionID, question string) (*conversation.AnswerTurn, error)
	Session(sessionID string) store.Snapshot
	TakeNotice(sessionID string) string
	Reset(sessionID string) error
}

// SessionStore is satisfied by the in-memory session repository.
type SessionStore interface {
	GetOrCreate(sessionID string) *store.Session
}

type DocumentIngestor interface {
	Ingest(ctx context.Context, docs []ingest.Document) (*ingest.Result, error)
}

type TextSplitter interface {
	SplitText(text string) []string
}

type IndexBuilder interface {
	Build(ctx context.Context, chunks []string, onProgress vectorindex.ProgressFunc) (*vectorindex.Index, error)
	Spec() vectorindex.IndexSpec
}

// EngineFactory creates the conversation for a freshly built index.
type EngineFactory func(index *vectorindex.Index) store.Conversation

// boundEngine ties a conversation to the index it retrieves from, so the
// index goes away with the conversation.
type boundEngine struct {
	store.Conversation
	index *vectorindex.Index
}

func (e *boundEngine) Release(ctx context.Context) error {
	return e.index.Release(ctx)
}

type chatService struct {
	sessions  SessionStore
	ingestor  DocumentIngestor
	splitter  TextSplitter
	builder   IndexBuilder
	newEngine EngineFactory
	progress  *progress.Bus
	events    events.Publisher
	metrics   *metrics.Metrics
	logger    logger.ILogger
}

func NewChatService(
	sessions SessionStore,
	ingestor DocumentIngestor,
	splitter TextSplitter,
	builder IndexBuilder,
	newEngine EngineFactory,
	progressBus *progress.Bus,
	eventPublisher events.Publisher,
	m *metrics.Metrics,
	log logger.ILogger,
) IChatService {
	if eventPublisher == nil {
		eventPublisher = events.Nop{}
	}
	return &chatService{
		sessions:  sessions,
		ingestor:  ingestor,
		splitter:  splitter,
		builder:   builder,
		newEngine: newEngine,
		progress:  progressBus,
		events:    eventPublisher,
		metrics:   m,
		logger:    log,
	}
}

func (s *chatService) reporter(sessionID string) progress.Reporter {
	if s.progress == nil {
		return nil
	}
	return s.progress.Reporter(sessionID)
}

// Process ingests docs, chunks and indexes them and installs a new
// conversation. On failure the session keeps its previous state.
func (s *chatService) Process(ctx context.Context, sessionID string, docs []ingest.Document) (*store.Snapshot, error) {
	ctx, span := otel.Tracer(module).Start(ctx, "ChatService.Process")
	defer span.End()
	span.SetAttributes(attribute.Int("documents", len(docs)))

	session := s.sessions.GetOrCreate(sessionID)
	if !session.TryBegin() {
		return nil, apperror.ErrBusy
	}
	defer session.End()

	start := time.Now()
	report := s.reporter(sessionID)

	if len(docs) == 0 {
		session.SetNotice(NoticeUploadFiles)
		s.metrics.ObserveProcess("empty_input", 0, 0, time.Since(start))
		return nil, apperror.ErrEmptyInput
	}

	restore := session.MarkProcessing()
	summary, index, err := s.runPipeline(ctx, docs, report)
	if err != nil {
		restore()
		outcome := "error"
		if errors.Is(err, apperror.ErrEmptyInput) {
			outcome = "empty_input"
			session.SetNotice(NoticeNoText)
		}
		s.metrics.ObserveProcess(outcome, 0, 0, time.Since(start))
		report.Report(progress.StageFailed, err.Error(), 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		s.logger.Error(module, "Process failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, err
	}

	warnings := make([]string, 0, len(summary.Skipped))
	for _, name := range summary.Skipped {
		warnings = append(warnings, fmt.Sprintf("Skipped %s: the file could not be read as a PDF.", name))
	}

	previous := session.Install(&boundEngine{Conversation: s.newEngine(index), index: index}, summary, warnings)
	s.release(ctx, sessionID, previous)
	session.SetNotice(NoticeProcessed)

	s.metrics.ObserveProcess("success", summary.Chunks, len(summary.Skipped), time.Since(start))
	report.Report(progress.StageReady, "Ready", summary.Chunks, summary.Chunks)
	span.SetAttributes(attribute.Int("chunks", summary.Chunks))

	if err := s.events.Publish(ctx, events.DocumentBatchProcessed(sessionID, summary.Namespace, len(summary.Files), len(summary.Skipped), summary.Chunks)); err != nil {
		s.logger.Warn(module, "Failed to publish event", map[string]interface{}{
			"event": events.TypeDocumentBatchProcessed,
			"error": err.Error(),
		})
	}

	s.logger.Info(module, "Documents processed", map[string]interface{}{
		"session_id":  sessionID,
		"files":       len(summary.Files),
		"skipped":     len(summary.Skipped),
		"chunks":      summary.Chunks,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	snap := session.Snapshot()
	return &snap, nil
}

func (s *chatService) runPipeline(ctx context.Context, docs []ingest.Document, report progress.Reporter) (*store.Summary, *vectorindex.Index, error) {
	report.Report(progress.StageIngest, fmt.Sprintf("Reading %d file(s)", len(docs)), 0, len(docs))
	res, err := s.ingestor.Ingest(ctx, docs)
	if err != nil {
		return nil, nil, fmt.Errorf("ingest documents: %w", err)
	}

	skipped := make(map[string]bool, len(res.Skipped))
	summary := &store.Summary{Pages: res.Pages}
	for _, ie := range res.Skipped {
		skipped[ie.File] = true
		summary.Skipped = append(summary.Skipped, ie.File)
	}
	for _, d := range docs {
		if !skipped[d.Name] {
			summary.Files = append(summary.Files, d.Name)
		}
	}

	if res.Blank() {
		return nil, nil, apperror.ErrEmptyInput
	}
	summary.Characters = len([]rune(res.Text))
	summary.RawPreview = truncate(res.Text, rawPreviewChars)

	report.Report(progress.StageChunk, "Splitting text", 0, 0)
	chunks := s.splitter.SplitText(res.Text)
	if len(chunks) == 0 {
		return nil, nil, apperror.ErrEmptyInput
	}
	summary.Chunks = len(chunks)
	for i := 0; i < len(chunks) && i < chunkPreviewCount; i++ {
		summary.ChunkPreviews = append(summary.ChunkPreviews, truncate(chunks[i], chunkPreviewChars))
	}

	index, err := s.builder.Build(ctx, chunks, func(p vectorindex.Progress) {
		summary.IndexReused = p.Reused
		report.Report(progress.StageIndex, "Embedding chunks", p.Done, p.Total)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build vector index: %w", err)
	}

	summary.IndexName = index.Name()
	summary.Namespace = index.Namespace()
	summary.ProcessedAt = time.Now()
	return summary, index, nil
}

// Ask answers one question. On failure the history is left unchanged.
func (s *chatService) Ask(ctx context.Context, sessionID, question string) (*conversation.AnswerTurn, error) {
	ctx, span := otel.Tracer(module).Start(ctx, "ChatService.Ask")
	defer span.End()

	if strings.TrimSpace(question) == "" {
		return nil, apperror.ErrEmptyQuestion
	}

	session := s.sessions.GetOrCreate(sessionID)
	if !session.TryBegin() {
		return nil, apperror.ErrBusy
	}
	defer session.End()

	engine := session.Engine()
	if engine == nil {
		return nil, apperror.ErrNotReady
	}

	start := time.Now()
	turn, err := engine.Ask(ctx, question)
	if err != nil {
		s.metrics.ObserveQuestion("error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(module, "Question failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return nil, err
	}

	session.SetHistory(turn.History)
	s.metrics.ObserveQuestion("success", time.Since(start))
	s.reporter(sessionID).Report(progress.StageAnswered, "Answered", len(turn.History), len(turn.History))
	span.SetAttributes(attribute.Int("history_len", len(turn.History)))

	if err := s.events.Publish(ctx, events.QuestionAnswered(sessionID, len(turn.History), len(turn.Sources), time.Since(start))); err != nil {
		s.logger.Warn(module, "Failed to publish event", map[string]interface{}{
			"event": events.TypeQuestionAnswered,
			"error": err.Error(),
		})
	}

	return turn, nil
}

func (s *chatService) Session(sessionID string) store.Snapshot {
	return s.sessions.GetOrCreate(sessionID).Snapshot()
}

func (s *chatService) TakeNotice(sessionID string) string {
	return s.sessions.GetOrCreate(sessionID).TakeNotice()
}

func (s *chatService) Reset(sessionID string) error {
	session := s.sessions.GetOrCreate(sessionID)
	if !session.TryBegin() {
		return apperror.ErrBusy
	}
	defer session.End()

	s.release(context.Background(), sessionID, session.Reset())
	s.logger.Info(module, "Session reset", map[string]interface{}{"session_id": sessionID})
	return nil
}

// release frees a conversation that is no longer installed. Errors are logged,
// not returned.
func (s *chatService) release(ctx context.Context, sessionID string, c store.Conversation) {
	if err := store.Release(ctx, c); err != nil {
		s.logger.Warn(module, "Failed to release previous conversation", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
