// Package ratelimit throttles clients with per-key token buckets.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Policy allows Requests per Window for each key, with bursts up to
// Requests.
type Policy struct {
	Name     string
	Requests int
	Window   time.Duration
	Message  string
}

// Enabled reports whether the policy limits anything.
func (p Policy) Enabled() bool { return p.Requests > 0 && p.Window > 0 }

func (p Policy) limit() rate.Limit {
	return rate.Limit(float64(p.Requests) / p.Window.Seconds())
}

// Decision is the outcome of one check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, at least 1.
func (d Decision) RetryAfterSeconds() int {
	return max(1, int(math.Ceil(d.RetryAfter.Seconds())))
}

type entry struct {
	lim      *rate.Limiter
	lastUsed time.Time
}

// Limiter tracks one bucket per key for a single policy.
type Limiter struct {
	policy Policy
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*entry
}

// New builds a Limiter. now may be nil.
func New(p Policy, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{policy: p, now: now, buckets: make(map[string]*entry)}
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy { return l.policy }

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) Decision {
	if !l.policy.Enabled() {
		return Decision{Allowed: true}
	}
	now := l.now()

	l.mu.Lock()
	e, ok := l.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.policy.limit(), l.policy.Requests)}
		l.buckets[key] = e
	}
	e.lastUsed = now
	l.mu.Unlock()

	r := e.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return Decision{RetryAfter: delay}
	}
	return Decision{Allowed: true}
}

// EvictStale drops buckets unused since cutoff and returns how many were
// removed. An evicted key starts again with a full bucket.
func (l *Limiter) EvictStale(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, e := range l.buckets {
		if e.lastUsed.Before(cutoff) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Len is the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
