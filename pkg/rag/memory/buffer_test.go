package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"ai-pdfchat/pkg/llm"
)

func TestBuffer_Unbounded(t *testing.T) {
	b := NewBuffer(0)
	for i := 0; i < 5; i++ {
		b.AppendTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	assert.Equal(t, 10, b.Len())
	assert.Equal(t, b.Messages(), b.Context())
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "q0"}, b.Messages()[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "a4"}, b.Messages()[9])
}

func TestBuffer_WindowOnlyLimitsContext(t *testing.T) {
	b := NewBuffer(2)
	for i := 0; i < 5; i++ {
		b.AppendTurn(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	ctx := b.Context()
	assert.Len(t, ctx, 4)
	assert.Equal(t, "q3", ctx[0].Content)
	assert.Len(t, b.Messages(), 10)
}

func TestBuffer_MessagesIsACopy(t *testing.T) {
	b := NewBuffer(0)
	b.AppendTurn("q", "a")

	msgs := b.Messages()
	msgs[0].Content = "changed"

	assert.Equal(t, "q", b.Messages()[0].Content)
}
