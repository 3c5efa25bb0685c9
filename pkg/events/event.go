package events

import (
	"context"
	"time"
)

const (
	TypeDocumentBatchProcessed = "document_batch_processed"
	TypeQuestionAnswered       = "question_answered"
)

// Event defines the contract for all domain events.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Publisher is implemented by the NATS publisher and by Nop.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Handler consumes one delivered event. A returned error asks for redelivery.
type Handler func(ctx context.Context, event Event) error

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func DocumentBatchProcessed(sessionID, namespace string, files, skipped, chunks int) BaseEvent {
	return BaseEvent{
		Type: TypeDocumentBatchProcessed,
		Data: map[string]interface{}{
			"session_id": sessionID,
			"namespace":  namespace,
			"files":      files,
			"skipped":    skipped,
			"chunks":     chunks,
		},
		OccurredAt: time.Now(),
	}
}

func QuestionAnswered(sessionID string, historyLen, sources int, latency time.Duration) BaseEvent {
	return BaseEvent{
		Type: TypeQuestionAnswered,
		Data: map[string]interface{}{
			"session_id":  sessionID,
			"history_len": historyLen,
			"sources":     sources,
			"latency_ms":  latency.Milliseconds(),
		},
		OccurredAt: time.Now(),
	}
}
