// Package tui is the interactive chat screen: a transcript, a question box,
// a paste box for text uploads and a sidebar of recent uploads.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/smartnotes/internal/document"
	"github.com/kalambet/smartnotes/internal/gateway"
	"github.com/kalambet/smartnotes/internal/session"
)

const sidebarWidth = 30

type mode int

const (
	modeQuestion mode = iota
	modePaste
	modePath
)

type askDoneMsg struct{ err error }

type uploadDoneMsg struct{ err error }

// Model is the bubbletea model of the chat screen.
type Model struct {
	ctx  context.Context
	sess *session.Session

	viewport viewport.Model
	question textarea.Model
	paste    textarea.Model
	path     textinput.Model
	spin     spinner.Model

	mode      mode
	asking    bool
	uploading bool
	notice    string // local failures that never reached the session
	width     int
	height    int
}

// New creates the chat screen for sess.
func New(ctx context.Context, sess *session.Session) Model {
	q := textarea.New()
	q.Placeholder = "Ask a question about your documents..."
	q.ShowLineNumbers = false
	q.CharLimit = 4000
	q.SetHeight(3)
	q.Focus()

	p := textarea.New()
	p.Placeholder = "Paste text to store, then press ctrl+s"
	p.ShowLineNumbers = false
	p.CharLimit = 0
	p.SetHeight(6)
	p.SetValue(sess.Draft())

	in := textinput.New()
	in.Placeholder = "path/to/file.pdf"
	in.Prompt = "Upload> "
	in.CharLimit = 0

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	m := Model{
		ctx:      ctx,
		sess:     sess,
		viewport: viewport.New(70, 20),
		question: q,
		paste:    p,
		path:     in,
		spin:     s,
	}
	m.resize(100, 32)
	m.renderTranscript()
	return m
}

// Run shows the chat screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, sess *session.Session, bridge *Bridge) error {
	p := tea.NewProgram(New(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx))
	if bridge != nil {
		bridge.Attach(p)
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spin.Tick)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.renderTranscript()
		return m, nil

	case tea.KeyMsg:
		if model, cmd, handled := m.handleKey(msg); handled {
			return model, cmd
		}

	case eventMsg:
		m.renderTranscript()
		if msg.event.Kind == session.EventTurnAppended {
			m.viewport.GotoBottom()
		}
		return m, nil

	case askDoneMsg:
		m.asking = false
		m.renderTranscript()
		m.viewport.GotoBottom()
		return m, nil

	case uploadDoneMsg:
		m.uploading = false
		if msg.err == nil && m.mode == modePaste {
			m.paste.SetValue(m.sess.Draft())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	switch m.mode {
	case modeQuestion:
		m.question, cmd = m.question.Update(msg)
	case modePaste:
		m.paste, cmd = m.paste.Update(msg)
	case modePath:
		m.path, cmd = m.path.Update(msg)
	}
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit, true

	case "ctrl+p":
		m.toggleProvider()
		return m, nil, true

	case "ctrl+t":
		if m.mode == modePaste {
			m.setMode(modeQuestion)
		} else {
			m.setMode(modePaste)
		}
		return m, nil, true

	case "ctrl+o":
		m.setMode(modePath)
		return m, nil, true

	case "esc":
		if m.mode != modeQuestion {
			m.setMode(modeQuestion)
			return m, nil, true
		}

	case "ctrl+s":
		if m.mode == modePaste {
			return m, m.submitPaste(), true
		}

	case "enter":
		switch m.mode {
		case modeQuestion:
			return m, m.submitQuestion(), true
		case modePath:
			cmd := m.submitPath(m.path.Value())
			return m, cmd, true
		}
	}
	return m, nil, false
}

// submitQuestion sends the question box content. Empty input and input
// while a question is in flight are ignored and the box is left as is.
func (m *Model) submitQuestion() tea.Cmd {
	text := strings.TrimSpace(m.question.Value())
	if text == "" {
		return nil
	}
	if strings.HasPrefix(text, "/") {
		m.question.Reset()
		return m.runCommand(text)
	}
	if m.asking || m.sess.QueryState().Busy {
		return nil
	}
	m.question.Reset()
	m.asking = true
	return askCmd(m.ctx, m.sess, text)
}

func (m *Model) submitPaste() tea.Cmd {
	if m.uploading || m.sess.UploadState().Busy {
		return nil
	}
	text := m.paste.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	m.sess.SetDraft(text)
	m.uploading = true
	return uploadDraftCmd(m.ctx, m.sess)
}

func (m *Model) submitPath(path string) tea.Cmd {
	path = strings.TrimSpace(path)
	if path == "" || m.uploading || m.sess.UploadState().Busy {
		return nil
	}
	src, err := document.Load(path)
	if err != nil {
		m.notice = err.Error()
		return nil
	}
	m.notice = ""
	m.path.Reset()
	m.setMode(modeQuestion)
	m.uploading = true
	return uploadSourceCmd(m.ctx, m.sess, src)
}

// runCommand handles slash commands typed in the question box.
func (m *Model) runCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	arg := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	m.notice = ""

	switch fields[0] {
	case "/quit", "/exit":
		return tea.Quit
	case "/provider":
		if arg == "" {
			m.toggleProvider()
			return nil
		}
		p, err := gateway.ParseProvider(arg)
		if err != nil {
			m.notice = err.Error()
			return nil
		}
		m.sess.SetProvider(p)
	case "/upload":
		return m.submitPath(arg)
	case "/paste":
		m.setMode(modePaste)
	default:
		m.notice = fmt.Sprintf("unknown command %s (try /provider, /upload, /paste, /quit)", fields[0])
	}
	return nil
}

func (m *Model) toggleProvider() {
	next := gateway.ProviderOpenAI
	if m.sess.Provider() == gateway.ProviderOpenAI {
		next = gateway.ProviderAnthropic
	}
	m.sess.SetProvider(next)
}

func (m *Model) setMode(md mode) {
	m.mode = md
	m.question.Blur()
	m.paste.Blur()
	m.path.Blur()
	switch md {
	case modeQuestion:
		m.question.Focus()
	case modePaste:
		if m.paste.Value() == "" {
			m.paste.SetValue(m.sess.Draft())
		}
		m.paste.Focus()
	case modePath:
		m.path.Focus()
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	mainWidth := max(width-sidebarWidth-6, 20)
	m.viewport.Width = mainWidth
	m.viewport.Height = max(height-14, 5)
	m.question.SetWidth(max(width-4, 10))
	m.paste.SetWidth(max(width-4, 10))
	m.path.Width = max(width-12, 10)
}

func askCmd(ctx context.Context, s *session.Session, question string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.Ask(ctx, question)
		return askDoneMsg{err: err}
	}
}

func uploadDraftCmd(ctx context.Context, s *session.Session) tea.Cmd {
	return func() tea.Msg {
		_, err := s.UploadDraft(ctx)
		return uploadDoneMsg{err: err}
	}
}

func uploadSourceCmd(ctx context.Context, s *session.Session, src *document.Source) tea.Cmd {
	return func() tea.Msg {
		var err error
		if src.Kind == document.KindPDF {
			_, err = s.UploadFile(ctx, src.Name, src.Data)
		} else {
			_, err = s.UploadTextAs(ctx, src.Name, src.Text)
		}
		return uploadDoneMsg{err: err}
	}
}

func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("smartnotes") + " " + providerStyle.Render(m.sess.Provider().Label())
	if m.asking || m.sess.QueryState().Busy {
		header += " " + m.spin.View() + statusStyle.Render("Thinking...")
	}
	if m.uploading || m.sess.UploadState().Busy {
		header += " " + m.spin.View() + statusStyle.Render("Uploading...")
	}
	b.WriteString(header + "\n")

	main := paneStyle.Render(m.viewport.View())
	side := paneStyle.Width(sidebarWidth).Height(m.viewport.Height).Render(m.renderSidebar())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, main, side) + "\n")

	if st := m.sess.QueryState(); st.HasError() {
		b.WriteString(errorStyle.Render("Error: "+st.LastError) + "\n")
	}
	if m.notice != "" {
		b.WriteString(errorStyle.Render(m.notice) + "\n")
	}

	switch m.mode {
	case modeQuestion:
		b.WriteString(m.question.View() + "\n")
		b.WriteString(helpStyle.Render("enter: ask • ctrl+p: switch provider • ctrl+t: paste text • ctrl+o: upload file • ctrl+c: quit"))
	case modePaste:
		b.WriteString(m.paste.View() + "\n")
		b.WriteString(helpStyle.Render("ctrl+s: store text • esc/ctrl+t: back to questions"))
	case modePath:
		b.WriteString(m.path.View() + "\n")
		b.WriteString(helpStyle.Render("enter: upload (.pdf, .txt, .md) • esc: cancel"))
	}
	return b.String()
}
