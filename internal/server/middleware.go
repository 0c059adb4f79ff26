package server

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/archlens/archlens/internal/apperr"
)

type ctxKey int

const apiKeyIDKey ctxKey = iota

// apiKeyID returns the authenticated key id stored by requireAPIKey.
func apiKeyID(ctx context.Context) string {
	id, _ := ctx.Value(apiKeyIDKey).(string)
	return id
}

// requireAPIKey authenticates the X-API-Key header against the key
// store and stashes the key id in the request context.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeError(w, apperr.New(apperr.CodeAuthInvalidKey, "missing API key"))
			return
		}

		keyID, err := s.deps.Store.ValidateAPIKey(r.Context(), key)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), apiKeyIDKey, keyID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// keyLimiter is one API key's token bucket.
type keyLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterFor returns the rate limiter for a key, creating it on first
// use. Buckets refill at the configured per-minute rate and allow a
// burst of the full minute budget.
func (s *Server) limiterFor(keyID string) *rate.Limiter {
	perMinute := s.cfg.RateLimitPerMinute
	if perMinute <= 0 {
		return nil
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	kl, ok := s.limiters[keyID]
	if !ok {
		kl = &keyLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute),
		}
		s.limiters[keyID] = kl
	}
	kl.lastSeen = time.Now()
	return kl.limiter
}

// rateLimit rejects requests once a key exhausts its per-minute budget.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limiter := s.limiterFor(apiKeyID(r.Context()))
		if limiter != nil && !limiter.Allow() {
			writeErrorStatus(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the wrapped writer so SSE streaming works through
// the logging middleware.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// logRequests emits one structured log line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"remote", r.RemoteAddr)
	})
}
