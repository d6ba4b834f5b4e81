package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"wink/internal/platform/requestctx"
	"wink/internal/transport/http/api"
)

// maxTrackedKeys bounds the limiter table; idle buckets are swept once it
// is reached.
const maxTrackedKeys = 10000

type RateLimitKeyFunc func(r *http.Request) string

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter keeps one token bucket per caller key. Each bucket holds
// limit tokens and refills limit tokens per window.
type keyedLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	keyFn   RateLimitKeyFunc
	buckets map[string]*bucket
}

// RateLimit throttles every request per authenticated user, falling back to
// the client IP.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	kl := newKeyedLimiter(limit, window, actorOrIPKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !kl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveMutationRateLimit applies tighter budgets to credential endpoints
// (keyed by IP and by submitted email) and to privileged mutations (keyed by
// actor). Other requests pass through untouched.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	mutationLimit := max(baseLimit/2, 1)
	authByIP := newKeyedLimiter(authLimit, window, clientIPKey)
	authByEmail := newKeyedLimiter(authLimit, window, AuthEmailOrIPKey("email"))
	byActor := newKeyedLimiter(mutationLimit, window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case scopeCredentials:
				if !authByIP.enforce(w, r) || !authByEmail.enforce(w, r) {
					return
				}
			case scopePrivileged:
				if !byActor.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	field = strings.TrimSpace(field)
	if field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		email := peekJSONField(r, field)
		if email == "" {
			return clientIPKey(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

// clientIPKey prefers the address resolved by ClientIP and otherwise uses
// the direct peer. Forwarding headers are never read here.
func clientIPKey(r *http.Request) string {
	if ip := requestctx.GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return remoteHost(r)
}

func newKeyedLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *keyedLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &keyedLimiter{
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		buckets: map[string]*bucket{},
	}
}

func (kl *keyedLimiter) bucketFor(key string, now time.Time) *rate.Limiter {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if b, ok := kl.buckets[key]; ok {
		b.lastSeen = now
		return b.limiter
	}
	if len(kl.buckets) >= maxTrackedKeys {
		for k, b := range kl.buckets {
			if now.Sub(b.lastSeen) > kl.window {
				delete(kl.buckets, k)
			}
		}
	}
	every := kl.window / time.Duration(kl.limit)
	lim := rate.NewLimiter(rate.Every(every), kl.limit)
	kl.buckets[key] = &bucket{limiter: lim, lastSeen: now}
	return lim
}

func (kl *keyedLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if kl.limit <= 0 || kl.window <= 0 {
		return true
	}

	key := kl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	now := time.Now()
	lim := kl.bucketFor(key, now)

	res := lim.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
	}
	remaining := int(math.Floor(lim.TokensAt(now)))
	untilFull := time.Duration(float64(kl.limit-max(remaining, 0)) * float64(kl.window) / float64(kl.limit))

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(kl.limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(untilFull)))

	if delay > 0 {
		h.Set("Retry-After", strconv.Itoa(max(ceilSeconds(delay), 1)))
		slog.Warn("rate limit exceeded",
			"key", key,
			"path", r.URL.Path,
			"method", r.Method,
			"limit", kl.limit,
			"windowSec", int(kl.window.Seconds()),
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// peekJSONField reads a string field from a JSON body and restores the body
// for the downstream handler.
func peekJSONField(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	if !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	value, _ := payload[field].(string)
	return strings.TrimSpace(value)
}

type rateScope int

const (
	scopeNone rateScope = iota
	scopeCredentials
	scopePrivileged
)

var credentialPaths = map[string]bool{
	"/auth/login":           true,
	"/auth/request-reset":   true,
	"/auth/reset":           true,
	"/auth/mfa/setup":       true,
	"/auth/mfa/enable":      true,
	"/auth/mfa/disable":     true,
	"/invitations/activate": true,
}

func sensitiveRateScope(r *http.Request) rateScope {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return scopeNone
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch {
	case credentialPaths[path]:
		return scopeCredentials
	case path == "/analytics/gar-weights", path == "/invitations":
		return scopePrivileged
	case strings.HasPrefix(path, "/jobs/") && strings.HasSuffix(path, "/run"):
		return scopePrivileged
	case strings.HasPrefix(path, "/tasks/") && strings.HasSuffix(path, "/review"):
		return scopePrivileged
	case strings.HasPrefix(path, "/users/") && (strings.HasSuffix(path, "/role") || strings.HasSuffix(path, "/status")):
		return scopePrivileged
	}
	return scopeNone
}
