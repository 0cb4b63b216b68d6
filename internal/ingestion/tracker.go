// Package ingestion tracks upload outcomes for a session: the recency list of
// uploaded documents and the transient success banner.
package ingestion

import (
	"sync"
	"time"
)

// Record is one successfully uploaded document.
type Record struct {
	Name       string
	UploadedAt time.Time
}

// Tracker owns the uploaded-document records of a session.
type Tracker struct {
	clock    Clock
	limit    int
	ttl      time.Duration
	onExpire func(string)
	banner   *Banner

	mu      sync.Mutex
	records []Record
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithRecentLimit caps the recency list; n <= 0 means unbounded.
func WithRecentLimit(n int) Option {
	return func(t *Tracker) { t.limit = n }
}

// WithMessageTTL sets the banner lifetime.
func WithMessageTTL(d time.Duration) Option {
	return func(t *Tracker) { t.ttl = d }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithExpiryHook registers a callback run when a banner message times out.
func WithExpiryHook(fn func(text string)) Option {
	return func(t *Tracker) { t.onExpire = fn }
}

// NewTracker returns a Tracker with an empty recency list.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{clock: realClock{}, ttl: DefaultMessageTTL}
	for _, o := range opts {
		o(t)
	}
	t.banner = NewBanner(t.ttl, t.clock, t.onExpire)
	return t
}

// RecordUpload puts name at the head of the recency list. An existing entry
// with the same name is removed first, so re-uploading refreshes recency.
func (t *Tracker) RecordUpload(name string) Record {
	rec := Record{Name: name, UploadedAt: t.clock.Now()}

	t.mu.Lock()
	defer t.mu.Unlock()

	next := make([]Record, 0, len(t.records)+1)
	next = append(next, rec)
	for _, r := range t.records {
		if r.Name != name {
			next = append(next, r)
		}
	}
	if t.limit > 0 && len(next) > t.limit {
		next = next[:t.limit]
	}
	t.records = next
	return rec
}

// Recent returns the records, most recent first.
func (t *Tracker) Recent() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// SetMessage shows text as the success banner, replacing any current one.
func (t *Tracker) SetMessage(text string) {
	t.banner.Set(text)
}

// ClearMessage hides the success banner.
func (t *Tracker) ClearMessage() {
	t.banner.Clear()
}

// Message returns the visible success banner, if any.
func (t *Tracker) Message() (string, bool) {
	return t.banner.Current()
}

// Close stops the pending banner timer.
func (t *Tracker) Close() {
	t.banner.Clear()
}
