package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/fundgateapp/fundgate/internal/model"
)

// CounterStore is the admission counter behind a rate limiter. The in-memory
// store below is process-local; a shared external store can be swapped in for
// multi-instance correctness without touching call sites.
type CounterStore interface {
	// Increment bumps the counter for key within a fixed window and returns
	// the post-increment count and the time the window resets.
	Increment(key string, window time.Duration) (count int, resetAt time.Time)
	// Cleanup drops expired windows.
	Cleanup()
}

type counterEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore is a mutex-guarded fixed-window counter map. The increment and
// compare happen under one lock, so concurrent requests on the same key
// cannot both observe a pre-increment count.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*counterEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*counterEntry)}
}

func (s *MemoryStore) Increment(key string, window time.Duration) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &counterEntry{count: 0, resetAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return e.count, e.resetAt
}

func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.entries {
		if now.After(e.resetAt) {
			delete(s.entries, key)
		}
	}
}

// LimitConfig configures one limiter instance.
type LimitConfig struct {
	Window         time.Duration
	MaxRequests    int
	KeyPrefix      string
	OnLimitReached func(ip, endpoint string)
}

// Preconfigured tiers.
var (
	SignatureLimits = LimitConfig{Window: 15 * time.Minute, MaxRequests: 5, KeyPrefix: "sig"}
	AuthLimits      = LimitConfig{Window: time.Hour, MaxRequests: 10, KeyPrefix: "auth"}
	APILimits       = LimitConfig{Window: time.Minute, MaxRequests: 100, KeyPrefix: "api"}
	StrictLimits    = LimitConfig{Window: time.Hour, MaxRequests: 3, KeyPrefix: "strict"}
)

// AuditWriter records rate-limit violations. Satisfied by *store.AuditStore.
type AuditWriter interface {
	Insert(entry *model.AuditLog) error
}

// Limiter is an admission-control gate in front of sensitive endpoints,
// keyed by (prefix, client IP, endpoint path).
type Limiter struct {
	store  CounterStore
	cfg    LimitConfig
	audit  AuditWriter
	logger *slog.Logger
}

func NewLimiter(store CounterStore, cfg LimitConfig, audit AuditWriter, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, cfg: cfg, audit: audit, logger: logger}
}

// Middleware applies the admission rule: count requests in the current
// window, attach X-RateLimit headers, and reject overflow with a 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.Header.Get(ClientIPHeader)
		if ip == "" {
			ip = RealIP(r)
		}
		endpoint := r.URL.Path
		key := l.cfg.KeyPrefix + ":" + ip + ":" + endpoint

		count, resetAt := l.store.Increment(key, l.cfg.Window)
		retryAfter := int(time.Until(resetAt).Seconds())
		if retryAfter < 0 {
			retryAfter = 0
		}

		remaining := l.cfg.MaxRequests - count
		if remaining < 0 {
			remaining = 0
		}
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.MaxRequests))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.Itoa(retryAfter))

		if count > l.cfg.MaxRequests {
			if l.cfg.OnLimitReached != nil {
				l.cfg.OnLimitReached(ip, endpoint)
			}
			l.recordViolation(ip, endpoint)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{
				"error":      "Too many requests",
				"message":    fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter),
				"retryAfter": retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recordViolation writes the audit row best-effort: a failed write must not
// change the admission decision.
func (l *Limiter) recordViolation(ip, endpoint string) {
	if l.audit == nil {
		return
	}
	err := l.audit.Insert(&model.AuditLog{
		Kind:     model.AuditRateLimitExceeded,
		Severity: model.SeverityWarning,
		Actor:    ip,
		IP:       ip,
		Detail:   endpoint,
	})
	if err != nil && l.logger != nil {
		l.logger.Warn("rate limit audit write failed", "error", err)
	}
}
