package sched

import (
	"sync"
	"time"
)

// Category names one remote API rate-limit bucket.
type Category string

const (
	CategoryCore    Category = "core"
	CategorySearch  Category = "search"
	CategoryGraphQL Category = "graphql"
)

// bufferFraction is the share of the limit held in reserve; requests are
// queued instead of dispatched once remaining capacity falls inside it.
const bufferFraction = 0.10

// Window is the remaining-call budget for one API category.
type Window struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Used      int       `json:"used"`
	Reset     time.Time `json:"reset"`

	period time.Duration
}

// Limiter tracks rate-limit windows per API category. Every dispatched
// call decrements pessimistically; remote response metadata corrects the
// estimate when available.
type Limiter struct {
	mu      sync.Mutex
	windows map[Category]*Window

	now func() time.Time // overridable for tests
}

// NewLimiter creates a limiter with the hosted API's published budgets:
// 5000 core and GraphQL points per hour, 30 search calls per minute.
func NewLimiter() *Limiter {
	l := &Limiter{
		windows: make(map[Category]*Window),
		now:     time.Now,
	}
	start := l.now()
	l.windows[CategoryCore] = &Window{Limit: 5000, Remaining: 5000, Reset: start.Add(time.Hour), period: time.Hour}
	l.windows[CategorySearch] = &Window{Limit: 30, Remaining: 30, Reset: start.Add(time.Minute), period: time.Minute}
	l.windows[CategoryGraphQL] = &Window{Limit: 5000, Remaining: 5000, Reset: start.Add(time.Hour), period: time.Hour}
	return l
}

// window returns the tracked window for cat, falling back to core for an
// unknown category. Caller holds the mutex.
func (l *Limiter) window(cat Category) *Window {
	if w, ok := l.windows[cat]; ok {
		return w
	}
	return l.windows[CategoryCore]
}

// replenish restores a window whose reset time has passed.
// Caller holds the mutex.
func (l *Limiter) replenish(w *Window) {
	now := l.now()
	if now.Before(w.Reset) {
		return
	}
	w.Remaining = w.Limit
	w.Used = 0
	w.Reset = now.Add(w.period)
}

// HasCapacity reports whether cat has capacity outside the reserve buffer.
func (l *Limiter) HasCapacity(cat Category) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(cat)
	l.replenish(w)
	return float64(w.Remaining) > bufferFraction*float64(w.Limit)
}

// Acquire consumes one unit of capacity from cat. It returns false
// without consuming when remaining capacity is inside the reserve buffer.
func (l *Limiter) Acquire(cat Category) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(cat)
	l.replenish(w)
	if float64(w.Remaining) <= bufferFraction*float64(w.Limit) {
		return false
	}
	w.Remaining--
	w.Used++
	return true
}

// Update replaces a window's budget from remote response metadata.
func (l *Limiter) Update(cat Category, limit, remaining int, reset time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(cat)
	if limit > 0 {
		w.Limit = limit
	}
	if remaining >= 0 {
		w.Remaining = remaining
		w.Used = w.Limit - remaining
	}
	if !reset.IsZero() {
		w.Reset = reset
	}
}

// Fraction returns the remaining share of cat's budget in [0, 1].
func (l *Limiter) Fraction(cat Category) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.window(cat)
	l.replenish(w)
	if w.Limit <= 0 {
		return 0
	}
	return float64(w.Remaining) / float64(w.Limit)
}

// Status returns a snapshot of every tracked window.
func (l *Limiter) Status() map[Category]Window {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[Category]Window, len(l.windows))
	for cat, w := range l.windows {
		l.replenish(w)
		out[cat] = *w
	}
	return out
}
