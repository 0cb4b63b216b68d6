// Package session coordinates question and document submissions: it
// validates input, applies the single-flight guard of each surface, calls the
// gateway and applies the outcome to the conversation and ingestion state.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/smartnotes/internal/conversation"
	"github.com/kalambet/smartnotes/internal/gateway"
	"github.com/kalambet/smartnotes/internal/ingestion"
	"github.com/kalambet/smartnotes/internal/opstate"
)

// DefaultTextUploadName is recorded for uploads made from pasted text.
const DefaultTextUploadName = "Pasted text"

var (
	// ErrRejected is wrapped by every error returned for a submission that
	// was ignored before any request was issued.
	ErrRejected = errors.New("submission rejected")
	// ErrBusy means the surface already has an operation in flight.
	ErrBusy = fmt.Errorf("%w: operation already in flight", ErrRejected)
	// ErrEmptyInput means there was nothing to submit.
	ErrEmptyInput = fmt.Errorf("%w: nothing to submit", ErrRejected)
)

// IsRejected reports whether err is a silent validation rejection.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}

// Gateway issues the backend calls. *gateway.Client satisfies it.
type Gateway interface {
	Ask(ctx context.Context, question string, provider gateway.Provider) (*gateway.Answer, error)
	UploadPDF(ctx context.Context, filename string, content io.Reader) (*gateway.UploadResult, error)
	UploadText(ctx context.Context, text, source string) (*gateway.UploadResult, error)
}

// EventKind says which part of the session changed.
type EventKind int

const (
	EventTurnAppended EventKind = iota + 1
	EventQueryState
	EventUploadState
	EventUploadRecorded
	EventMessage
	EventProvider
	EventDraft
)

// Event is delivered to the notifier after a state change.
type Event struct {
	Kind EventKind
}

// Session is the client state of one user session. It is safe for
// concurrent use; each surface admits one operation at a time.
type Session struct {
	gw       Gateway
	logger   *slog.Logger
	notify   func(Event)
	textName string
	ttl      time.Duration
	limit    int
	ingOpts  []ingestion.Option

	queryOp  *opstate.Tracker
	uploadOp *opstate.Tracker
	convo    *conversation.Store
	ingest   *ingestion.Tracker

	mu       sync.RWMutex
	provider gateway.Provider
	draft    string
}

// Option configures a Session.
type Option func(*Session)

// WithProvider sets the initial provider selection.
func WithProvider(p gateway.Provider) Option {
	return func(s *Session) { s.provider = p }
}

// WithTextUploadName sets the name recorded for pasted-text uploads.
func WithTextUploadName(name string) Option {
	return func(s *Session) { s.textName = name }
}

// WithMessageTTL sets how long the upload success banner stays visible.
func WithMessageTTL(d time.Duration) Option {
	return func(s *Session) { s.ttl = d }
}

// WithRecentLimit caps the recently-uploaded list; 0 keeps it unbounded.
func WithRecentLimit(n int) Option {
	return func(s *Session) { s.limit = n }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithNotifier registers fn to receive change events. fn is called
// synchronously from the goroutine that made the change and must not block.
func WithNotifier(fn func(Event)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithConversation uses an existing transcript store.
func WithConversation(c *conversation.Store) Option {
	return func(s *Session) { s.convo = c }
}

// WithIngestionOptions passes extra options to the ingestion tracker.
func WithIngestionOptions(opts ...ingestion.Option) Option {
	return func(s *Session) { s.ingOpts = append(s.ingOpts, opts...) }
}

// New creates a Session issuing requests through gw.
func New(gw Gateway, opts ...Option) *Session {
	s := &Session{
		gw:       gw,
		provider: gateway.ProviderOpenAI,
		textName: DefaultTextUploadName,
		ttl:      ingestion.DefaultMessageTTL,
		queryOp:  opstate.New(),
		uploadOp: opstate.New(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.convo == nil {
		s.convo = conversation.NewStore()
	}
	ingOpts := []ingestion.Option{
		ingestion.WithMessageTTL(s.ttl),
		ingestion.WithRecentLimit(s.limit),
		ingestion.WithExpiryHook(func(string) { s.emit(EventMessage) }),
	}
	s.ingest = ingestion.NewTracker(append(ingOpts, s.ingOpts...)...)
	return s
}

// Close stops pending timers. The session remains readable.
func (s *Session) Close() {
	s.ingest.Close()
}

func (s *Session) emit(kind EventKind) {
	if s.notify != nil {
		s.notify(Event{Kind: kind})
	}
}

// Provider returns the current provider selection.
func (s *Session) Provider() gateway.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

// SetProvider changes the provider used by later questions.
func (s *Session) SetProvider(p gateway.Provider) error {
	if !p.Valid() {
		return fmt.Errorf("unknown provider %q", p)
	}
	s.mu.Lock()
	changed := s.provider != p
	s.provider = p
	s.mu.Unlock()
	if changed {
		s.logger.Debug("provider selected", "provider", p)
		s.emit(EventProvider)
	}
	return nil
}

// Turns returns the transcript in order.
func (s *Session) Turns() []conversation.Turn {
	return s.convo.Turns()
}

// QueryState returns the question surface state.
func (s *Session) QueryState() opstate.State {
	return s.queryOp.State()
}

// UploadState returns the document surface state.
func (s *Session) UploadState() opstate.State {
	return s.uploadOp.State()
}

// RecentUploads returns uploaded documents, most recent first.
func (s *Session) RecentUploads() []ingestion.Record {
	return s.ingest.Recent()
}

// Message returns the visible upload success banner.
func (s *Session) Message() (string, bool) {
	return s.ingest.Message()
}

// Draft returns the pending paste text.
func (s *Session) Draft() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.draft
}

// SetDraft replaces the pending paste text.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
	s.emit(EventDraft)
}

// Ask submits a question with the current provider. The user turn is
// appended before the request is sent and stays even if the request fails;
// on success the returned turn is the assistant answer. Empty input or a
// question already in flight yields an error wrapping ErrRejected and
// changes nothing.
func (s *Session) Ask(ctx context.Context, question string) (conversation.Turn, error) {
	return s.AskWith(ctx, question, s.Provider())
}

// AskWith is Ask with an explicit provider for this one question. The
// session's selected provider is left as it is.
func (s *Session) AskWith(ctx context.Context, question string, provider gateway.Provider) (conversation.Turn, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return conversation.Turn{}, ErrEmptyInput
	}
	if !provider.Valid() {
		return conversation.Turn{}, fmt.Errorf("unknown provider %q", provider)
	}
	if !s.queryOp.Begin() {
		s.logger.Debug("question ignored, query in flight")
		return conversation.Turn{}, ErrBusy
	}
	s.emit(EventQueryState)

	s.convo.AppendUser(q)
	s.emit(EventTurnAppended)

	s.logger.Info("question dispatched", "provider", provider, "length", len(q))

	ans, err := s.gw.Ask(ctx, q, provider)
	if err != nil {
		s.logger.Warn("question failed", "provider", provider, "error", err)
		s.queryOp.ResolveError(err.Error())
		s.emit(EventQueryState)
		return conversation.Turn{}, err
	}

	turn := s.convo.AppendAssistant(toAnswer(ans))
	s.emit(EventTurnAppended)
	s.logger.Info("answer received",
		"provider", ans.Provider,
		"model", ans.Model,
		"sources", len(ans.Sources),
	)
	s.queryOp.ResolveSuccess()
	s.emit(EventQueryState)
	return turn, nil
}

// UploadFile sends PDF content and records it under name on success.
func (s *Session) UploadFile(ctx context.Context, name string, data []byte) (*gateway.UploadResult, error) {
	if name == "" || data == nil {
		return nil, ErrEmptyInput
	}
	return s.submitUpload(ctx, name, func(ctx context.Context) (*gateway.UploadResult, error) {
		return s.gw.UploadPDF(ctx, name, bytes.NewReader(data))
	}, nil)
}

// UploadText sends pasted text and records it under the pasted-text name.
// The backend names its chunks with its own default source.
func (s *Session) UploadText(ctx context.Context, text string) (*gateway.UploadResult, error) {
	return s.uploadText(ctx, s.textName, "", text)
}

// UploadTextAs sends text read from a named file. name is both the recorded
// upload and the source the backend cites.
func (s *Session) UploadTextAs(ctx context.Context, name, text string) (*gateway.UploadResult, error) {
	return s.uploadText(ctx, name, name, text)
}

func (s *Session) uploadText(ctx context.Context, name, source, text string) (*gateway.UploadResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	return s.submitUpload(ctx, name, func(ctx context.Context) (*gateway.UploadResult, error) {
		return s.gw.UploadText(ctx, text, source)
	}, nil)
}

// UploadDraft sends the pending paste text. The draft is cleared only when
// the upload succeeds, so a failed attempt can be resubmitted as is.
func (s *Session) UploadDraft(ctx context.Context) (*gateway.UploadResult, error) {
	text := s.Draft()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	return s.submitUpload(ctx, s.textName, func(ctx context.Context) (*gateway.UploadResult, error) {
		return s.gw.UploadText(ctx, text, "")
	}, func() {
		s.SetDraft("")
	})
}

func (s *Session) submitUpload(
	ctx context.Context,
	name string,
	send func(context.Context) (*gateway.UploadResult, error),
	onSuccess func(),
) (*gateway.UploadResult, error) {
	if !s.uploadOp.Begin() {
		s.logger.Debug("upload ignored, upload in flight", "name", name)
		return nil, ErrBusy
	}
	s.ingest.ClearMessage()
	s.emit(EventUploadState)
	s.emit(EventMessage)

	s.logger.Info("upload dispatched", "name", name)
	res, err := send(ctx)
	if err != nil {
		s.logger.Warn("upload failed", "name", name, "error", err)
		s.uploadOp.ResolveError(err.Error())
		s.emit(EventUploadState)
		return nil, err
	}

	s.ingest.RecordUpload(name)
	s.emit(EventUploadRecorded)
	s.ingest.SetMessage(res.Message)
	s.emit(EventMessage)
	if onSuccess != nil {
		onSuccess()
	}
	s.logger.Info("upload stored",
		"name", name,
		"chunks", res.ChunksStored,
		"already_existed", res.AlreadyExisted,
	)
	s.uploadOp.ResolveSuccess()
	s.emit(EventUploadState)
	return res, nil
}

func toAnswer(a *gateway.Answer) conversation.Answer {
	out := conversation.Answer{
		Content:  a.Answer,
		Provider: a.Provider,
		Model:    a.Model,
	}
	if len(a.Sources) > 0 {
		out.Sources = make([]conversation.CitedSource, len(a.Sources))
		for i, src := range a.Sources {
			out.Sources[i] = conversation.CitedSource{
				Content:    src.Content,
				SourceName: src.Source,
				Page:       src.Page,
			}
		}
	}
	return out
}
