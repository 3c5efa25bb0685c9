package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDocumentBatchProcessed(t *testing.T) {
	ev := DocumentBatchProcessed("s1", "ns", 3, 1, 12)

	assert.Equal(t, TypeDocumentBatchProcessed, ev.EventType())
	assert.Equal(t, 12, ev.Payload()["chunks"])
	assert.Equal(t, 1, ev.Payload()["skipped"])
	assert.WithinDuration(t, time.Now(), ev.Timestamp(), time.Second)
}

func TestQuestionAnswered(t *testing.T) {
	ev := QuestionAnswered("s1", 4, 2, 1500*time.Millisecond)

	assert.Equal(t, TypeQuestionAnswered, ev.EventType())
	assert.Equal(t, int64(1500), ev.Payload()["latency_ms"])
	assert.NoError(t, Nop{}.Publish(context.Background(), ev))
}
