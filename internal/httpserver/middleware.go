// internal/httpserver/middleware.go
//
// Middleware shared by the API routes: JSON content type, CORS, request
// logging, per-client rate limiting and the optional admin guard.

package httpserver

import (
	"net/http"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// AdminKeyHeader carries the admin key for dictionary mutations.
const AdminKeyHeader = "X-Admin-Key"

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for a single origin.
func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+AdminKeyHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// withRequestID tags the request logger with chi's request id.
// Must run after chimw.RequestID and hlog.NewHandler.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("req_id", id)
			})
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one line per request.
func accessLog(r *http.Request, status, size int, dur time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("remote", r.RemoteAddr).
		Int("status", status).
		Int("size", size).
		Dur("duration", dur).
		Msg("request")
}

// rateLimiter hands out one token bucket per client.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      int
	burst    int
	identity ClientResolver
}

func newRateLimiter(rps, burst int, identity ClientResolver) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
		identity: identity,
	}
}

// get returns the limiter for key, creating it on first use.
func (rl *rateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if lim, ok := rl.limiters[key]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(rl.rps), rl.burst)
	rl.limiters[key] = lim
	return lim
}

// middleware rejects clients over their budget with 429. A non-positive
// rate disables limiting.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	if rl.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.identity.ClientID(r)
		if !rl.get(key).Allow() {
			hlog.FromRequest(r).Warn().Str("client", key).Msg("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "too_many_requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin checks the X-Admin-Key header against a bcrypt hash.
// An empty hash leaves the routes open.
func requireAdmin(hash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if hash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(AdminKeyHeader)
			if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
