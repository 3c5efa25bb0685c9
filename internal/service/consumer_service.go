package service

import (
	"context"
	"fmt"
	"sync"

	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/pkg/events"
)

// EventSource is satisfied by the NATS subscriber.
type EventSource interface {
	Subscribe(ctx context.Context, subject, durableName string, handler events.Handler) error
}

// EventSink receives every event the consumer accepts.
type EventSink func(event events.Event) error

type IConsumerService interface {
	Consume(ctx context.Context) error
	Counts() map[string]int
}

type consumerService struct {
	source  EventSource
	subject string
	durable string
	sink    EventSink
	logger  logger.ILogger

	mu     sync.Mutex
	counts map[string]int
}

func NewConsumerService(source EventSource, subject, durable string, sink EventSink, log logger.ILogger) IConsumerService {
	return &consumerService{
		source:  source,
		subject: subject,
		durable: durable,
		sink:    sink,
		logger:  log,
		counts:  make(map[string]int),
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	if err := cs.source.Subscribe(ctx, cs.subject, cs.durable, cs.handle); err != nil {
		return fmt.Errorf("consume %s: %w", cs.subject, err)
	}
	cs.logger.Info("ConsumerService", "Consuming events", map[string]interface{}{
		"subject": cs.subject,
		"durable": cs.durable,
	})
	return nil
}

func (cs *consumerService) handle(ctx context.Context, event events.Event) error {
	switch event.EventType() {
	case events.TypeDocumentBatchProcessed, events.TypeQuestionAnswered:
	default:
		// unknown types are acked and ignored
		cs.logger.Debug("ConsumerService", "Ignoring event", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	if cs.sink != nil {
		if err := cs.sink(event); err != nil {
			return err
		}
	}

	cs.mu.Lock()
	cs.counts[event.EventType()]++
	cs.mu.Unlock()
	return nil
}

// Counts returns how many events of each type were handled.
func (cs *consumerService) Counts() map[string]int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make(map[string]int, len(cs.counts))
	for k, v := range cs.counts {
		out[k] = v
	}
	return out
}
