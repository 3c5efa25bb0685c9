package dto

import "time"

type AskRequest struct {
	Question string `json:"question" form:"question" validate:"required,max=4000"`
}

type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SourceDTO struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type AskResponse struct {
	Reply              string       `json:"reply"`
	StandaloneQuestion string       `json:"standalone_question,omitempty"`
	History            []MessageDTO `json:"history"`
	Sources            []SourceDTO  `json:"sources"`
}

type DocumentSummaryDTO struct {
	Files         []string  `json:"files"`
	Skipped       []string  `json:"skipped,omitempty"`
	Pages         int       `json:"pages"`
	Characters    int       `json:"characters"`
	RawPreview    string    `json:"raw_preview"`
	Chunks        int       `json:"chunks"`
	ChunkPreviews []string  `json:"chunk_previews"`
	IndexName     string    `json:"index_name"`
	IndexReused   bool      `json:"index_reused"`
	ProcessedAt   time.Time `json:"processed_at"`
}

type SessionResponse struct {
	Id        string              `json:"id"`
	State     string              `json:"state"`
	History   []MessageDTO        `json:"history"`
	Warnings  []string            `json:"warnings,omitempty"`
	Summary   *DocumentSummaryDTO `json:"summary,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}
