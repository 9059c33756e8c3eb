package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/Flexing/internal/auth"
	"github.com/MikeSquared-Agency/Flexing/internal/metrics"
)

type ctxKey int

const evaluatorKey ctxKey = iota

// EvaluatorFromContext returns the evaluator id set by EvaluatorAuthMiddleware.
func EvaluatorFromContext(ctx context.Context) string {
	id, _ := ctx.Value(evaluatorKey).(string)
	return id
}

func withEvaluator(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, evaluatorKey, id)
}

// EvaluatorAuthMiddleware identifies the evaluator from a signed bearer token.
// With no secret configured it trusts the X-Evaluator-ID header instead.
func EvaluatorAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				id := r.Header.Get("X-Evaluator-ID")
				if id == "" {
					http.Error(w, `{"error":"X-Evaluator-ID header required"}`, http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(withEvaluator(r.Context(), id)))
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				http.Error(w, `{"error":"bearer token required"}`, http.StatusUnauthorized)
				return
			}
			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(withEvaluator(r.Context(), claims.EvaluatorID)))
		})
	}
}

func AdminAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("Authorization") != "Bearer "+token {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chiMiddleware.GetReqID(r.Context()),
			)
		})
	}
}

// MetricsMiddleware records request counts and latency per route pattern.
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveHTTP(route, r.Method, status, time.Since(start))
		})
	}
}

type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

func (rl *rateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window)
	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

// rateLimitKey prefers the caller's credentials so evaluators behind one
// proxy do not share a request allowance. The X-Evaluator-ID header only
// identifies the caller when it is the trusted identity, i.e. no token
// secret is configured; otherwise it is caller-controlled and ignored.
func rateLimitKey(r *http.Request, trustEvaluatorHeader bool) string {
	if trustEvaluatorHeader {
		if id := r.Header.Get("X-Evaluator-ID"); id != "" {
			return "evaluator:" + id
		}
	}
	if a := r.Header.Get("Authorization"); a != "" {
		return "auth:" + a
	}
	return "addr:" + r.RemoteAddr
}

// RateLimitMiddleware allows requestsPerMinute per caller. Pass
// trustEvaluatorHeader=true only when evaluators are identified by header.
func RateLimitMiddleware(requestsPerMinute int, trustEvaluatorHeader bool) func(http.Handler) http.Handler {
	rl := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    requestsPerMinute,
		window:   time.Minute,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.allow(rateLimitKey(r, trustEvaluatorHeader), time.Now()) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
