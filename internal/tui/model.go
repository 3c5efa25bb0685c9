package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ai-pdfchat/pkg/apperror"
	"ai-pdfchat/pkg/ingest"
	"ai-pdfchat/pkg/llm"
	"ai-pdfchat/pkg/progress"
	"ai-pdfchat/pkg/rag/conversation"
	"ai-pdfchat/pkg/store"
)

// ChatPort is the TUI-facing subset of the chat service.
type ChatPort interface {
	Process(ctx context.Context, sessionID string, docs []ingest.Document) (*store.Snapshot, error)
	Ask(ctx context.Context, sessionID, question string) (*conversation.AnswerTurn, error)
	TakeNotice(sessionID string) string
	Reset(sessionID string) error
}

type processedMsg struct {
	snapshot *store.Snapshot
	notice   string
	err      error
}

type answeredMsg struct {
	turn *conversation.AnswerTurn
	err  error
}

type progressMsg progress.Event

type Model struct {
	service   ChatPort
	sessionID string
	updates   <-chan progress.Event

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	history  []llm.Message
	pending  []string
	status   string
	busy     bool
	ready    bool
	progress string
}

// New builds the model. paths, when given, are processed as soon as the
// program starts. updates may be nil.
func New(service ChatPort, sessionID string, paths []string, updates <-chan progress.Event) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question about your documents, or :load a.pdf b.pdf"
	ti.Focus()
	ti.CharLimit = 4000

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		service:   service,
		sessionID: sessionID,
		updates:   updates,
		input:     ti,
		viewport:  viewport.New(0, 0),
		spinner:   sp,
		pending:   paths,
		status:    "Please upload one or more PDF files.",
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForProgress())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		first := !m.ready
		m.ready = true
		_, bh := chatBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-4)
		m.viewport.Height = max(3, msg.Height-3-bh-ih-1)
		m.viewport.SetContent(m.renderHistory())
		if first && len(m.pending) > 0 {
			return m.startProcess(m.pending)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit(strings.TrimSpace(m.input.Value()))
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progressMsg:
		if msg.Stage == progress.StageIndex && msg.Total > 0 {
			m.progress = fmt.Sprintf("%s (%d/%d)", msg.Message, msg.Done, msg.Total)
		} else {
			m.progress = msg.Message
		}
		return m, m.waitForProgress()

	case processedMsg:
		m.busy = false
		m.progress = ""
		m.pending = nil
		switch {
		case msg.notice != "":
			m.status = msg.notice
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		default:
			m.status = "Documents processed."
		}
		if msg.err == nil && msg.snapshot != nil {
			m.history = msg.snapshot.History
			for _, w := range msg.snapshot.Warnings {
				m.status += "\n" + warnStyle.Render(w)
			}
		}
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case answeredMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			if errors.Is(msg.err, apperror.ErrNotReady) {
				m.status = "Process your documents first (:load a.pdf b.pdf)."
			}
			return m, nil
		}
		m.history = msg.turn.History
		m.status = fmt.Sprintf("Answered from %d chunk(s).", len(msg.turn.Sources))
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	if line == "" || m.busy {
		return m, nil
	}
	m.input.SetValue("")

	switch {
	case line == ":reset":
		if err := m.service.Reset(m.sessionID); err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.history = nil
		m.status = "Session cleared. Please upload one or more PDF files."
		m.viewport.SetContent(m.renderHistory())
		return m, nil
	case line == ":load" || strings.HasPrefix(line, ":load "):
		return m.startProcess(strings.Fields(strings.TrimPrefix(line, ":load")))
	case line == ":quit":
		return m, tea.Quit
	}

	m.busy = true
	m.status = "Thinking..."
	return m, tea.Batch(m.spinner.Tick, m.askCmd(line))
}

func (m Model) startProcess(paths []string) (tea.Model, tea.Cmd) {
	m.busy = true
	m.status = "Processing..."
	return m, tea.Batch(m.spinner.Tick, m.processCmd(paths))
}

func (m Model) processCmd(paths []string) tea.Cmd {
	service, sessionID := m.service, m.sessionID
	return func() tea.Msg {
		docs, err := LoadDocuments(paths)
		if err != nil {
			return processedMsg{err: err}
		}
		snap, err := service.Process(context.Background(), sessionID, docs)
		return processedMsg{snapshot: snap, notice: service.TakeNotice(sessionID), err: err}
	}
}

func (m Model) askCmd(question string) tea.Cmd {
	service, sessionID := m.service, m.sessionID
	return func() tea.Msg {
		turn, err := service.Ask(context.Background(), sessionID, question)
		return answeredMsg{turn: turn, err: err}
	}
}

func (m Model) waitForProgress() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		ev, ok := <-updates
		if !ok {
			return nil
		}
		return progressMsg(ev)
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Chat with multiple PDFs :books:")
	chat := chatBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())

	status := statusStyle.Render(m.status)
	if m.busy {
		line := m.spinner.View() + " " + m.status
		if m.progress != "" {
			line += " " + m.progress
		}
		status = statusStyle.Render(line)
	}
	return header + "\n" + chat + "\n" + input + "\n" + status
}

// renderHistory shows messages in order; even positions are the user's.
func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return hintStyle.Render("Ask a question about your documents:")
	}
	width := max(10, m.viewport.Width-2)
	var b strings.Builder
	for i, msg := range m.history {
		style := botStyle
		label := "bot"
		if i%2 == 0 {
			style = userStyle
			label = "you"
		}
		b.WriteString(style.Width(width).Render(label + ": " + msg.Content))
		b.WriteString("\n")
	}
	return b.String()
}

// LoadDocuments reads local files into upload documents. Empty paths are
// ignored; a missing file fails the whole batch.
func LoadDocuments(paths []string) ([]ingest.Document, error) {
	docs := make([]ingest.Document, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("cannot open %s: %w", p, err)
		}
		docs = append(docs, ingest.Document{Name: filepath.Base(p), Content: content})
	}
	return docs, nil
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle     = lipgloss.NewStyle().Background(lipgloss.Color("#2b313e")).Foreground(lipgloss.Color("#ffffff")).Padding(0, 1)
	botStyle      = lipgloss.NewStyle().Background(lipgloss.Color("#475063")).Foreground(lipgloss.Color("#ffffff")).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
