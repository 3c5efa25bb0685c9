package mapper

import (
	"ai-pdfchat/internal/dto"
	"ai-pdfchat/pkg/llm"
	"ai-pdfchat/pkg/rag/conversation"
	"ai-pdfchat/pkg/store"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) MessagesToDTO(msgs []llm.Message) []dto.MessageDTO {
	out := make([]dto.MessageDTO, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, dto.MessageDTO{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func (m *ChatMapper) AnswerToDTO(turn *conversation.AnswerTurn) *dto.AskResponse {
	if turn == nil {
		return nil
	}

	sources := make([]dto.SourceDTO, 0, len(turn.Sources))
	for _, s := range turn.Sources {
		sources = append(sources, dto.SourceDTO{Text: s.Text, Score: s.Score})
	}

	var standalone string
	if turn.StandaloneQuestion != turn.Question {
		standalone = turn.StandaloneQuestion
	}

	return &dto.AskResponse{
		Reply:              turn.Reply,
		StandaloneQuestion: standalone,
		History:            m.MessagesToDTO(turn.History),
		Sources:            sources,
	}
}

func (m *ChatMapper) SummaryToDTO(s *store.Summary) *dto.DocumentSummaryDTO {
	if s == nil {
		return nil
	}
	return &dto.DocumentSummaryDTO{
		Files:         s.Files,
		Skipped:       s.Skipped,
		Pages:         s.Pages,
		Characters:    s.Characters,
		RawPreview:    s.RawPreview,
		Chunks:        s.Chunks,
		ChunkPreviews: s.ChunkPreviews,
		IndexName:     s.IndexName,
		IndexReused:   s.IndexReused,
		ProcessedAt:   s.ProcessedAt,
	}
}

func (m *ChatMapper) SessionToDTO(s store.Snapshot) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:        s.ID,
		State:     string(s.State),
		History:   m.MessagesToDTO(s.History),
		Warnings:  s.Warnings,
		Summary:   m.SummaryToDTO(s.Summary),
		UpdatedAt: s.UpdatedAt,
	}
}
