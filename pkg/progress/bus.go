// Package progress streams pipeline progress of a session to whoever is
// watching it, typically a websocket.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"ai-pdfchat/internal/pkg/logger"
)

type Stage string

const (
	StageIngest   Stage = "ingest"
	StageChunk    Stage = "chunk"
	StageIndex    Stage = "index"
	StageRetry    Stage = "retry"
	StageReady    Stage = "ready"
	StageFailed   Stage = "failed"
	StageAnswered Stage = "answered"
)

type Event struct {
	SessionID string    `json:"session_id"`
	Stage     Stage     `json:"stage"`
	Message   string    `json:"message"`
	Done      int       `json:"done,omitempty"`
	Total     int       `json:"total,omitempty"`
	At        time.Time `json:"at"`
}

// Reporter is handed to long-running actions. A nil Reporter is valid.
type Reporter func(stage Stage, message string, done, total int)

func (r Reporter) Report(stage Stage, message string, done, total int) {
	if r != nil {
		r(stage, message, done, total)
	}
}

const (
	subscriberBuffer = 64

	// every session shares one topic; subscribers filter on sessionKey
	topic      = "progress"
	sessionKey = "session_id"
)

type Bus struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
}

func NewBus(log logger.ILogger) *Bus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: subscriberBuffer,
			// keeps events ordered; subscribers ack on receipt
			BlockPublishUntilSubscriberAck: true,
		},
		logger.NewWatermillAdapter(log),
	)
	return &Bus{pubSub: pubSub, logger: log}
}

// Publish never fails the caller; an event nobody listens to is dropped.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		b.logger.Error("ProgressBus", "Failed to marshal progress event", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(sessionKey, ev.SessionID)
	if err := b.pubSub.Publish(topic, msg); err != nil {
		b.logger.Warn("ProgressBus", "Failed to publish progress event", map[string]interface{}{
			"session_id": ev.SessionID,
			"error":      err.Error(),
		})
	}
}

// Reporter returns a Reporter publishing events of sessionID.
func (b *Bus) Reporter(sessionID string) Reporter {
	return func(stage Stage, msg string, done, total int) {
		b.Publish(Event{SessionID: sessionID, Stage: stage, Message: msg, Done: done, Total: total})
	}
}

// Subscribe streams events for sessionID until ctx is done. Events are acked
// on receipt; a consumer that falls behind loses events rather than stalling
// the pipeline.
func (b *Bus) Subscribe(ctx context.Context, sessionID string) (<-chan Event, error) {
	msgs, err := b.pubSub.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe to progress of %s: %w", sessionID, err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			if msg.Metadata.Get(sessionKey) != sessionID {
				msg.Ack()
				continue
			}
			var ev Event
			err := json.Unmarshal(msg.Payload, &ev)
			msg.Ack()
			if err != nil {
				continue
			}
			select {
			case out <- ev:
			default:
			}
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	return b.pubSub.Close()
}
