package ingestion

import (
	"sync"
	"time"
)

// DefaultMessageTTL is how long a success banner stays visible.
const DefaultMessageTTL = 5000 * time.Millisecond

// Clock abstracts time for the banner's expiry timer.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Banner is a single transient message with one owned expiry timer. Setting
// a new message voids the previous timer; messages never stack.
type Banner struct {
	clock    Clock
	ttl      time.Duration
	onExpire func(text string)

	mu     sync.Mutex
	text   string
	setAt  time.Time
	active bool
	timer  Timer
	gen    uint64
}

// NewBanner returns an empty banner. onExpire, if non-nil, is called after a
// message times out; it is not called for messages replaced or cleared early.
func NewBanner(ttl time.Duration, clock Clock, onExpire func(text string)) *Banner {
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Banner{clock: clock, ttl: ttl, onExpire: onExpire}
}

// Set shows text until ttl elapses from now. An empty text clears the banner.
func (b *Banner) Set(text string) {
	if text == "" {
		b.Clear()
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	b.gen++
	gen := b.gen
	b.text = text
	b.setAt = b.clock.Now()
	b.active = true
	b.timer = b.clock.AfterFunc(b.ttl, func() { b.expire(gen) })
}

// Clear hides the current message and voids its timer.
func (b *Banner) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
	b.gen++
	b.text = ""
	b.active = false
}

// Current returns the visible message. A message is absent once ttl has
// elapsed even if its timer has not fired yet.
func (b *Banner) Current() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return "", false
	}
	if b.clock.Now().Sub(b.setAt) >= b.ttl {
		return "", false
	}
	return b.text, true
}

// TTL returns the configured lifetime of a message.
func (b *Banner) TTL() time.Duration {
	return b.ttl
}

func (b *Banner) expire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || !b.active {
		b.mu.Unlock()
		return
	}
	text := b.text
	b.text = ""
	b.active = false
	b.timer = nil
	hook := b.onExpire
	b.mu.Unlock()

	if hook != nil {
		hook(text)
	}
}

func (b *Banner) stopLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
