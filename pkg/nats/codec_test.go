package nats

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/pkg/events"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	ev := events.DocumentBatchProcessed("s1", "ns", 2, 0, 7)
	data, err := json.Marshal(envelope{Type: ev.EventType(), OccurredAt: ev.Timestamp(), Data: ev.Payload()})
	require.NoError(t, err)

	got, err := decode(data)
	require.NoError(t, err)

	assert.Equal(t, events.TypeDocumentBatchProcessed, got.EventType())
	assert.Equal(t, float64(7), got.Payload()["chunks"])
	assert.WithinDuration(t, ev.Timestamp(), got.Timestamp(), time.Millisecond)
}

func TestDecode_Rejects(t *testing.T) {
	_, err := decode([]byte("not json"))
	assert.Error(t, err)

	_, err = decode([]byte(`{"data":{}}`))
	assert.Error(t, err)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "pdfchat.question_answered", Subject(events.TypeQuestionAnswered))
}
