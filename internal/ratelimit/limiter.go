package ratelimit

import (
	"sync"
	"time"
)

const (
	ActionResetRequest = "reset_request"
	ActionResetSubmit  = "reset_submit"
)

type window struct {
	start time.Time
	count int
}

// Limiter is a fixed-window counter keyed by (action, origin). Once a window
// is over its threshold the counter stops growing, so hostile flooding never
// inflates state; stale windows are pruned on the way through.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	duration time.Duration
	limits   map[string]int
	fallback int
	now      func() time.Time
}

func New(duration time.Duration, limits map[string]int) *Limiter {
	return &Limiter{
		windows:  make(map[string]*window),
		duration: duration,
		limits:   limits,
		fallback: 10,
		now:      time.Now,
	}
}

func (l *Limiter) Allow(action, origin string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	key := action + "|" + origin

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= l.duration {
		w = &window{start: now}
		l.windows[key] = w
		l.pruneLocked(now)
	}

	limit, ok := l.limits[action]
	if !ok {
		limit = l.fallback
	}

	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// pruneLocked drops windows that rolled past. Called opportunistically when
// a fresh window is opened, which bounds map growth without a sweeper.
func (l *Limiter) pruneLocked(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.duration {
			delete(l.windows, key)
		}
	}
}
