// Package view renders the browser UI.
package view

import (
	"embed"
	"html/template"
	"io"

	"ai-pdfchat/internal/dto"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Message is one rendered chat bubble. Even positions are the user's.
type Message struct {
	Content string
	User    bool
}

func (m Message) Class() string {
	if m.User {
		return "user"
	}
	return "bot"
}

type Page struct {
	State    string
	Ready    bool
	Notice   string
	Error    string
	Warnings []string
	Messages []Message
	Summary  *dto.DocumentSummaryDTO
}

// NewPage builds the page for a session, styling messages by position.
func NewPage(session *dto.SessionResponse, notice, errMsg string) Page {
	msgs := make([]Message, len(session.History))
	for i, m := range session.History {
		msgs[i] = Message{Content: m.Content, User: i%2 == 0}
	}
	return Page{
		State:    session.State,
		Ready:    session.State == "READY",
		Notice:   notice,
		Error:    errMsg,
		Warnings: session.Warnings,
		Messages: msgs,
		Summary:  session.Summary,
	}
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(w io.Writer, page Page) error {
	return r.tmpl.ExecuteTemplate(w, "index.html", page)
}
