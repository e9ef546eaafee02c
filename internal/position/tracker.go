// Package position keeps the last known device position of a session and fans
// fixes out to subscribers.
package position

import (
	"context"
	"sync"
	"time"

	"github.com/vbonduro/icewatch/internal/domain"
)

type Fix struct {
	Coordinate domain.Coordinate `json:"coordinate"`
	// Accuracy is the reported radius of uncertainty in meters, 0 if unknown.
	Accuracy float64   `json:"accuracy"`
	At       time.Time `json:"at"`
}

// Tracker is safe for concurrent use. Subscriptions end when their context is
// done or the tracker is closed, whichever comes first.
type Tracker struct {
	mu     sync.Mutex
	last   *Fix
	subs   map[chan Fix]struct{}
	closed bool
	done   chan struct{}
}

func NewTracker() *Tracker {
	return &Tracker{
		subs: make(map[chan Fix]struct{}),
		done: make(chan struct{}),
	}
}

// Publish records f as the latest fix. Slow subscribers miss fixes rather
// than block the publisher.
func (t *Tracker) Publish(f Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.last = &f
	for ch := range t.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (t *Tracker) Last() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last == nil {
		return Fix{}, false
	}
	return *t.last, true
}

// Position returns the last known coordinate, or nil if none was reported.
func (t *Tracker) Position() *domain.Coordinate {
	f, ok := t.Last()
	if !ok {
		return nil
	}
	c := f.Coordinate
	return &c
}

// Center is where the map should be centered: the last fix, or fallback when
// the position is not known yet.
func (t *Tracker) Center(fallback domain.Coordinate) domain.Coordinate {
	if c := t.Position(); c != nil {
		return *c
	}
	return fallback
}

// Subscribe returns a channel that receives the latest fix immediately, if
// any, and every fix published afterwards. The channel is closed on
// unsubscribe.
func (t *Tracker) Subscribe(ctx context.Context, buffer int) <-chan Fix {
	ch := make(chan Fix, buffer+1)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		close(ch)
		return ch
	}
	if t.last != nil {
		ch <- *t.last
	}
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-t.done:
		}
		t.unsubscribe(ch)
	}()

	return ch
}

func (t *Tracker) unsubscribe(ch chan Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.subs[ch]; ok {
		delete(t.subs, ch)
		close(ch)
	}
}

// Close ends all subscriptions. Publishing after Close is a no-op.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	close(t.done)
	for ch := range t.subs {
		delete(t.subs, ch)
		close(ch)
	}
}

func (t *Tracker) subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
