package scraper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// expiryMargin is subtracted from a token's reported lifetime so a token
// is never handed out moments before it lapses server-side.
const expiryMargin = time.Minute

// Exchanger performs the client-credential exchange for a bearer token.
type Exchanger interface {
	Exchange(ctx context.Context) (token string, ttl time.Duration, err error)
}

// TokenCache holds one bearer credential shared by every API-capable
// scraper in the process. A manually configured static token bypasses
// expiry tracking entirely; otherwise tokens are acquired lazily and
// refreshed once the cached entry is within the expiry margin. Forget
// drops the entry after an authentication failure so the next call
// re-acquires instead of reusing a dead token.
//
// Check-then-set runs under the mutex. A duplicate exchange under race is
// tolerated (last writer wins); holding the lock across the network call
// keeps it from happening in practice.
type TokenCache struct {
	mu        sync.Mutex
	static    string
	exchanger Exchanger
	metrics   *Metrics

	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewTokenCache builds a cache that acquires tokens through ex.
func NewTokenCache(ex Exchanger, metrics *Metrics) *TokenCache {
	return &TokenCache{exchanger: ex, metrics: metrics, now: time.Now}
}

// NewStaticTokenCache wraps a manually configured token.
func NewStaticTokenCache(token string) *TokenCache {
	return &TokenCache{static: token, now: time.Now}
}

// Token returns a usable bearer token, exchanging for a fresh one when the
// cached entry is absent or near expiry. A failed exchange returns false;
// the caller falls back to its HTML path.
func (tc *TokenCache) Token(ctx context.Context) (string, bool) {
	if tc == nil {
		return "", false
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.static != "" {
		return tc.static, true
	}
	if tc.exchanger == nil {
		return "", false
	}

	if tc.token != "" && tc.now().Before(tc.expiresAt.Add(-expiryMargin)) {
		return tc.token, true
	}

	token, ttl, err := tc.exchanger.Exchange(ctx)
	if err != nil {
		slog.Warn("token exchange failed", slog.Any("error", err))
		tc.metrics.IncTokenExchange("error")
		tc.token = ""
		return "", false
	}

	tc.metrics.IncTokenExchange("ok")
	tc.token = token
	tc.expiresAt = tc.now().Add(ttl)
	return token, true
}

// Forget invalidates the cached token. Called from the authentication
// failure path; the next Token call performs a fresh exchange.
func (tc *TokenCache) Forget() {
	if tc == nil {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.token = ""
	tc.expiresAt = time.Time{}
}
