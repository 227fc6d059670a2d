package ratelimit

import (
	"sync"
	"time"
)

// Window is an in-memory sliding-window counter keyed by string.
type Window struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	entries map[string][]time.Time

	lastSweep time.Time
}

func NewWindow(window time.Duration, max int) *Window {
	return &Window{
		window:  window,
		max:     max,
		entries: make(map[string][]time.Time),
	}
}

// Allow records a hit for key and reports whether it fits in the window.
// Rejected hits are not recorded.
func (w *Window) Allow(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sweep(now)
	ts := w.prune(key, now)
	if len(ts) >= w.max {
		return false
	}
	w.entries[key] = append(ts, now)
	return true
}

// Blocked reports whether key has used up the window without recording a hit.
func (w *Window) Blocked(key string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.prune(key, now)) >= w.max
}

func (w *Window) Record(key string, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sweep(now)
	w.entries[key] = append(w.prune(key, now), now)
}

func (w *Window) Reset(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.entries, key)
}

// sweep drops keys whose hits all left the window, at most once per window,
// so keys that are never looked up again do not accumulate.
func (w *Window) sweep(now time.Time) {
	if now.Sub(w.lastSweep) < w.window {
		return
	}
	w.lastSweep = now
	for key := range w.entries {
		w.prune(key, now)
	}
}

func (w *Window) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-w.window)
	ts := w.entries[key]

	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(w.entries, key)
		return nil
	}
	w.entries[key] = kept
	return kept
}
