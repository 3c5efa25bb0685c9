package prompt

import (
	"fmt"
	"strings"

	"ai-pdfchat/pkg/llm"
)

const condenseTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

// CondenseQuestion renders the prompt that turns a follow-up question into a
// standalone one using the conversation so far.
func CondenseQuestion(history []llm.Message, question string) string {
	return fmt.Sprintf(condenseTemplate, formatHistory(history), question)
}

func formatHistory(history []llm.Message) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case llm.RoleUser:
			lines = append(lines, "Human: "+m.Content)
		case llm.RoleAssistant:
			lines = append(lines, "Assistant: "+m.Content)
		}
	}
	return strings.Join(lines, "\n")
}

// AnswerBuilder assembles the chat sent to the model for one question:
// a system message carrying the retrieved chunks, the replayed history and
// the question itself.
type AnswerBuilder struct {
	chunks   []string
	history  []llm.Message
	question string
}

func NewAnswerBuilder(chunks []string, history []llm.Message, question string) *AnswerBuilder {
	return &AnswerBuilder{
		chunks:   chunks,
		history:  history,
		question: question,
	}
}

func (b *AnswerBuilder) Messages() []llm.Message {
	msgs := make([]llm.Message, 0, len(b.history)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: b.System()})
	msgs = append(msgs, b.history...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: b.question})
	return msgs
}

// System renders the system message.
func (b *AnswerBuilder) System() string {
	var prompt strings.Builder

	b.writeTask(&prompt)
	b.writeReferenceMaterial(&prompt)
	b.writeGuidelines(&prompt)

	return prompt.String()
}

func (b *AnswerBuilder) writeTask(prompt *strings.Builder) {
	prompt.WriteString("<task>\n")
	prompt.WriteString("Use the following pieces of context to answer the user's question.\n")
	prompt.WriteString("</task>\n\n")
}

func (b *AnswerBuilder) writeReferenceMaterial(prompt *strings.Builder) {
	prompt.WriteString("<reference_material>\n")
	for i, chunk := range b.chunks {
		if i > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(chunk)
	}
	prompt.WriteString("\n</reference_material>\n\n")
}

func (b *AnswerBuilder) writeGuidelines(prompt *strings.Builder) {
	prompt.WriteString("<guidelines>\n")
	prompt.WriteString("- Base your answer on the reference material and the conversation so far\n")
	prompt.WriteString("- If you don't know the answer, just say that you don't know, don't try to make up an answer\n")
	prompt.WriteString("</guidelines>")
}
