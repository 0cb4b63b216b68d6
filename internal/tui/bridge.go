package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kalambet/smartnotes/internal/session"
)

// eventMsg carries a session change into the program.
type eventMsg struct {
	event session.Event
}

// Bridge forwards session events to a running program. Create it before the
// session, pass Notify as the session notifier, and Attach the program once
// it exists. Events before Attach are dropped; the first render reads the
// whole session anyway.
type Bridge struct {
	mu sync.Mutex
	p  *tea.Program
}

// NewBridge returns an unattached Bridge.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach starts forwarding to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	b.p = p
	b.mu.Unlock()
}

// Notify is a session notifier. It never blocks the caller.
func (b *Bridge) Notify(e session.Event) {
	b.mu.Lock()
	p := b.p
	b.mu.Unlock()
	if p != nil {
		go p.Send(eventMsg{event: e})
	}
}
