package scraper

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedExchanger struct {
	calls  int
	tokens []string
	ttl    time.Duration
	err    error
}

func (e *scriptedExchanger) Exchange(context.Context) (string, time.Duration, error) {
	e.calls++
	if e.err != nil {
		return "", 0, e.err
	}
	token := e.tokens[0]
	if len(e.tokens) > 1 {
		e.tokens = e.tokens[1:]
	}
	return token, e.ttl, nil
}

func TestTokenCacheNil(t *testing.T) {
	var tc *TokenCache
	if _, ok := tc.Token(context.Background()); ok {
		t.Fatal("nil cache produced a token")
	}
	tc.Forget() // must not panic
}

func TestTokenCacheStatic(t *testing.T) {
	tc := NewStaticTokenCache("manual-token")
	for i := 0; i < 3; i++ {
		token, ok := tc.Token(context.Background())
		if !ok || token != "manual-token" {
			t.Fatalf("Token() = %q, %v", token, ok)
		}
	}
	// A static token has no expiry to invalidate.
	tc.Forget()
	if token, ok := tc.Token(context.Background()); !ok || token != "manual-token" {
		t.Fatalf("after Forget: %q, %v", token, ok)
	}
}

func TestTokenCacheReusesUntilMargin(t *testing.T) {
	ex := &scriptedExchanger{tokens: []string{"first", "second"}, ttl: 2 * time.Hour}
	tc := NewTokenCache(ex, nil)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tc.now = func() time.Time { return clock }

	token, ok := tc.Token(context.Background())
	if !ok || token != "first" {
		t.Fatalf("initial Token() = %q, %v", token, ok)
	}
	if ex.calls != 1 {
		t.Fatalf("exchanges = %d, want 1", ex.calls)
	}

	// Well inside the lifetime: the cached token is reused.
	clock = clock.Add(time.Hour)
	if token, _ := tc.Token(context.Background()); token != "first" {
		t.Fatalf("Token() = %q, want cached first", token)
	}
	if ex.calls != 1 {
		t.Fatalf("exchanges = %d after cached read, want 1", ex.calls)
	}

	// Inside the safety margin before expiry: refreshed early.
	clock = clock.Add(59*time.Minute + 30*time.Second)
	token, ok = tc.Token(context.Background())
	if !ok || token != "second" {
		t.Fatalf("Token() near expiry = %q, %v, want fresh second", token, ok)
	}
	if ex.calls != 2 {
		t.Fatalf("exchanges = %d, want 2", ex.calls)
	}
}

func TestTokenCacheExchangeFailure(t *testing.T) {
	ex := &scriptedExchanger{err: errors.New("identity service down")}
	tc := NewTokenCache(ex, nil)

	if _, ok := tc.Token(context.Background()); ok {
		t.Fatal("failed exchange still produced a token")
	}
	// No broken entry is cached; every call retries.
	if _, ok := tc.Token(context.Background()); ok {
		t.Fatal("second call produced a token")
	}
	if ex.calls != 2 {
		t.Fatalf("exchanges = %d, want 2", ex.calls)
	}
}

func TestTokenCacheForget(t *testing.T) {
	ex := &scriptedExchanger{tokens: []string{"first", "second"}, ttl: 2 * time.Hour}
	tc := NewTokenCache(ex, nil)

	if token, _ := tc.Token(context.Background()); token != "first" {
		t.Fatalf("Token() = %q", token)
	}
	tc.Forget()
	token, ok := tc.Token(context.Background())
	if !ok || token != "second" {
		t.Fatalf("Token() after Forget = %q, %v, want second", token, ok)
	}
	if ex.calls != 2 {
		t.Fatalf("exchanges = %d, want 2", ex.calls)
	}
}

func TestTokenCacheNoExchanger(t *testing.T) {
	tc := NewTokenCache(nil, nil)
	if _, ok := tc.Token(context.Background()); ok {
		t.Fatal("cache with no exchanger produced a token")
	}
}
