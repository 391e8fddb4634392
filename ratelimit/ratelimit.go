// Package ratelimit paces outbound requests per retailer. The limiter
// enforces a sliding 60-second window (never more than the configured
// request count inside any trailing window) together with a minimum
// inter-request interval, which keeps short bursts as well as sustained
// throughput inside the retailer's budget.
package ratelimit

import (
	"sync"
	"time"
)

const window = time.Minute

// Limiter is scoped to a single scraper instance. Wait and the timestamp
// append run under one lock so concurrent callers cannot both pass the
// window check before either records its request.
type Limiter struct {
	mu          sync.Mutex
	limit       int
	minInterval time.Duration
	history     []time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New builds a limiter allowing requestsPerMinute requests in any trailing
// 60-second window. Values below one are treated as one.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	return &Limiter{
		limit:       requestsPerMinute,
		minInterval: window / time.Duration(requestsPerMinute),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Wait blocks until the next request may be issued, then records its
// timestamp. Both constraints are evaluated before the append: the sliding
// window is pruned and, if full, Wait sleeps until the oldest entry falls
// out; afterwards the minimum interval since the previous request is
// enforced regardless of window occupancy.
func (l *Limiter) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.history) >= l.limit {
		if wait := l.history[0].Add(window).Sub(now); wait > 0 {
			l.sleep(wait)
			now = l.now()
			l.prune(now)
		}
	}

	if n := len(l.history); n > 0 {
		if since := now.Sub(l.history[n-1]); since < l.minInterval {
			l.sleep(l.minInterval - since)
			now = l.now()
		}
	}

	l.history = append(l.history, now)
	if len(l.history) > l.limit {
		l.history = l.history[len(l.history)-l.limit:]
	}
}

// prune drops history entries older than the window. Caller holds the lock.
func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.history) && now.Sub(l.history[cut]) > window {
		cut++
	}
	if cut > 0 {
		l.history = l.history[cut:]
	}
}
