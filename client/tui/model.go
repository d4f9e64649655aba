package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github/itish2003/pdfchat/models"
)

const uploadCommand = "/upload"

// ChatPort is the TUI-facing subset of the server API.
type ChatPort interface {
	Upload(ctx context.Context, path string) (*models.UploadResponse, error)
	Chat(ctx context.Context, question string) (*models.ChatResponse, error)
}

type uploadDoneMsg struct {
	path string
	resp *models.UploadResponse
	err  error
}

type answerMsg struct {
	resp *models.ChatResponse
	err  error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	port     ChatPort
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	lines    []string
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model. timeout bounds each request.
func New(port ChatPort, timeout time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /upload <path-to-pdf>"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		port:     port,
		timeout:  timeout,
		input:    ti,
		viewport: viewport.New(0, 0),
		status:   "Upload a PDF to begin.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 1 + 1 + ih + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil

	case uploadDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Upload failed: " + msg.err.Error()
			m.push(errorStyle.Render("Upload of " + msg.path + " failed: " + msg.err.Error()))
		} else {
			m.status = fmt.Sprintf("Loaded %s (%d pages, %d passages)", msg.resp.Source, msg.resp.Pages, msg.resp.Passages)
			m.push(systemStyle.Render(msg.resp.Message + ": " + msg.resp.Source))
		}
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.push(errorStyle.Render(msg.err.Error()))
			return m, nil
		}
		m.status = "Ready."
		m.push(botStyle.Render("Bot: ") + msg.resp.Answer)
		if src := formatSources(msg.resp); src != "" {
			m.push(sourceStyle.Render("  " + src))
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy {
		return m, nil
	}
	m.input.SetValue("")

	if text == "/quit" {
		return m, tea.Quit
	}
	if strings.HasPrefix(text, uploadCommand) {
		path := strings.TrimSpace(strings.TrimPrefix(text, uploadCommand))
		if path == "" {
			m.status = "Usage: /upload <path-to-pdf>"
			return m, nil
		}
		m.busy = true
		m.status = "Uploading " + path + "..."
		return m, m.uploadCmd(path)
	}

	m.busy = true
	m.status = "Thinking..."
	m.push(userStyle.Render("You: ") + text)
	return m, m.chatCmd(text)
}

func (m Model) uploadCmd(path string) tea.Cmd {
	port, timeout := m.port, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := port.Upload(ctx, path)
		return uploadDoneMsg{path: path, resp: resp, err: err}
	}
}

func (m Model) chatCmd(question string) tea.Cmd {
	port, timeout := m.port, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := port.Chat(ctx, question)
		return answerMsg{resp: resp, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("PDF Chat")
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + transcriptStyle.Render(m.viewport.View()) + "\n" + inputStyle.Render(m.input.View()) + "\n" + status
}

func (m *Model) push(line string) {
	m.lines = append(m.lines, line)
	m.refresh()
}

func (m *Model) refresh() {
	if len(m.lines) == 0 {
		m.viewport.SetContent("No messages yet.")
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func formatSources(resp *models.ChatResponse) string {
	if len(resp.Sources) == 0 {
		return ""
	}
	out := "sources: " + strings.Join(resp.Sources, ", ")
	if len(resp.Pages) > 0 {
		pages := make([]string, len(resp.Pages))
		for i, p := range resp.Pages {
			pages[i] = fmt.Sprint(p)
		}
		out += " (pages " + strings.Join(pages, ", ") + ")"
	}
	return out
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	systemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	sourceStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
