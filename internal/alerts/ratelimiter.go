package alerts

import "time"

// RateLimiter enforces a sliding-window cap on notification volume: at
// most maxPerWindow sends are allowed within the trailing window.
type RateLimiter struct {
	maxPerWindow int
	window       time.Duration
	recent       []time.Time
}

// NewRateLimiter builds a limiter allowing maxPerWindow sends per window.
func NewRateLimiter(maxPerWindow int, window time.Duration) *RateLimiter {
	return &RateLimiter{maxPerWindow: maxPerWindow, window: window}
}

// CanSend reports whether another send is currently permitted, after
// expiring any timestamps that have aged out of the window.
func (r *RateLimiter) CanSend() bool {
	r.cleanup(time.Now())
	return len(r.recent) < r.maxPerWindow
}

// RecordNotification records a send at now.
func (r *RateLimiter) RecordNotification() {
	r.RecordNotificationAt(time.Now())
}

// RecordNotificationAt records a send at an explicit timestamp,
// primarily for deterministic tests.
func (r *RateLimiter) RecordNotificationAt(timestamp time.Time) {
	r.recent = append(r.recent, timestamp)
	r.cleanup(time.Now())
}

// CurrentCount reports how many sends fall within the current window.
func (r *RateLimiter) CurrentCount() int {
	r.cleanup(time.Now())
	return len(r.recent)
}

// cleanup drops every timestamp older than window relative to asOf.
// It filters rather than only trimming the front, since
// RecordNotificationAt may be handed timestamps out of order by tests.
func (r *RateLimiter) cleanup(asOf time.Time) {
	cutoff := asOf.Add(-r.window)
	kept := r.recent[:0]
	for _, t := range r.recent {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.recent = kept
}
