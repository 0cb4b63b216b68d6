package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kalambet/smartnotes/internal/conversation"
)

func (m *Model) renderTranscript() {
	turns := m.sess.Turns()
	if len(turns) == 0 {
		m.viewport.SetContent(helpStyle.Render("No questions yet. Upload a document, then ask about it."))
		return
	}

	width := max(m.viewport.Width-2, 10)
	body := lipgloss.NewStyle().Width(width)

	var b strings.Builder
	for _, t := range turns {
		b.WriteString(renderTurn(t, body))
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(strings.TrimRight(b.String(), "\n"))
}

func renderTurn(t conversation.Turn, body lipgloss.Style) string {
	var b strings.Builder
	ts := metaStyle.Render(t.Timestamp.Format("15:04:05"))

	if t.Role == conversation.RoleUser {
		b.WriteString(userLabelStyle.Render("You") + " " + ts + "\n")
		b.WriteString(body.Render(t.Content))
		return b.String()
	}

	b.WriteString(assistantLabelStyle.Render("Assistant") + " " + ts)
	if t.ProviderUsed != "" {
		b.WriteString(metaStyle.Render(fmt.Sprintf(" %s · %s", t.ProviderUsed, t.ModelUsed)))
	}
	b.WriteString("\n")
	b.WriteString(body.Render(t.Content))
	for _, src := range t.Sources {
		line := "• " + src.SourceName
		if label := src.PageLabel(); label != "" {
			line += " (" + label + ")"
		}
		b.WriteString("\n" + sourceStyle.Render(line))
	}
	return b.String()
}

func (m Model) renderSidebar() string {
	var b strings.Builder
	b.WriteString(sidebarTitleStyle.Render("Recent uploads") + "\n")

	recent := m.sess.RecentUploads()
	if len(recent) == 0 {
		b.WriteString(helpStyle.Render("none yet"))
	}
	for i, r := range recent {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(truncate(r.Name, sidebarWidth-4) + " " + metaStyle.Render(r.UploadedAt.Format("15:04")))
	}

	if msg, ok := m.sess.Message(); ok {
		b.WriteString("\n\n" + successStyle.Render(msg))
	}
	if st := m.sess.UploadState(); st.HasError() {
		b.WriteString("\n\n" + errorStyle.Render(st.LastError))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
