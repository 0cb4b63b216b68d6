// Package conversation holds the append-only transcript of a session.
package conversation

import (
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// CitedSource is an excerpt an assistant turn was grounded on.
// Page is zero-based; nil when the origin has no pages.
type CitedSource struct {
	Content    string
	SourceName string
	Page       *int
}

// PageLabel renders the one-based page for display, or "" when unknown.
func (c CitedSource) PageLabel() string {
	if c.Page == nil {
		return ""
	}
	return "p. " + strconv.Itoa(*c.Page+1)
}

// Turn is one message of the conversation. ProviderUsed, ModelUsed and
// Sources are only set on assistant turns.
type Turn struct {
	ID           string
	Role         Role
	Content      string
	Timestamp    time.Time
	ProviderUsed string
	ModelUsed    string
	Sources      []CitedSource
}

// Answer is what an assistant turn is built from.
type Answer struct {
	Content  string
	Provider string
	Model    string
	Sources  []CitedSource
}

// Store is the ordered transcript. Turns are only ever appended.
type Store struct {
	mu    sync.RWMutex
	turns []Turn
	newID func() string
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithIDFunc overrides turn ID generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// AppendUser records a user question.
func (s *Store) AppendUser(text string) Turn {
	return s.append(Turn{Role: RoleUser, Content: text})
}

// AppendAssistant records an answer with the provider and model the backend
// reported, not the ones that were requested.
func (s *Store) AppendAssistant(a Answer) Turn {
	var sources []CitedSource
	if len(a.Sources) > 0 {
		sources = make([]CitedSource, len(a.Sources))
		for i, src := range a.Sources {
			sources[i] = copySource(src)
		}
	}
	return s.append(Turn{
		Role:         RoleAssistant,
		Content:      a.Content,
		ProviderUsed: a.Provider,
		ModelUsed:    a.Model,
		Sources:      sources,
	})
}

func (s *Store) append(t Turn) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.newID()
	t.Timestamp = s.now()
	s.turns = append(s.turns, t)
	return copyTurn(t)
}

// Turns returns a copy of the transcript in append order.
func (s *Store) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	for i, t := range s.turns {
		out[i] = copyTurn(t)
	}
	return out
}

// Len returns the number of turns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Empty reports whether no turn has been appended yet.
func (s *Store) Empty() bool {
	return s.Len() == 0
}

// Last returns the most recent turn.
func (s *Store) Last() (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return Turn{}, false
	}
	return copyTurn(s.turns[len(s.turns)-1]), true
}

func copyTurn(t Turn) Turn {
	if t.Sources != nil {
		src := make([]CitedSource, len(t.Sources))
		for i, c := range t.Sources {
			src[i] = copySource(c)
		}
		t.Sources = src
	}
	return t
}

func copySource(c CitedSource) CitedSource {
	if c.Page != nil {
		p := *c.Page
		c.Page = &p
	}
	return c
}
