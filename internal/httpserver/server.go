// internal/httpserver/server.go
//
// HTTP server wiring for the Wordle backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     access logs).
//   - Public endpoints: "/", "/health".
//   - Dictionary maintenance: POST/DELETE /api/dictionary (optional admin key).
//   - Round endpoints: POST/GET/DELETE /api/word, POST /api/guess (optionally
//     rate limited).
//   - Session tokens: POST /api/session (when a token issuer is configured).
//
// Notes:
//   - Rounds are owned by the injected store.Rounds; the client key comes from
//     the configured ClientResolver.
//   - X-Forwarded-For/X-Real-IP are only honoured with TrustProxy; otherwise a
//     client could pick its own IP identity.
//   - Dictionary calls never fail from the handler's point of view; storage
//     errors are logged inside the dictionary package.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/csaldivar-astate/persistence-is-key/internal/store"
	"github.com/csaldivar-astate/persistence-is-key/internal/words"
)

// Dictionary is the word store the handlers need.
type Dictionary interface {
	AddManyWords(ctx context.Context, list []string)
	RemoveWord(ctx context.Context, word string)
	RandomWord(ctx context.Context) (string, bool)
	Contains(ctx context.Context, word string) bool
	Count(ctx context.Context) int
}

// Options tunes optional server behaviour. The zero value serves the plain
// API keyed by IP with no rate limit, no admin key and no session tokens.
type Options struct {
	Identity       ClientResolver
	Tokens         *TokenIssuer
	SecureCookies  bool
	RateLimitRPS   int
	RateLimitBurst int
	AdminKeyHash   string
	ClientOrigin   string
	TrustProxy     bool // take the client IP from proxy headers
}

// Server bundles router, round table and dictionary.
type Server struct {
	r        *chi.Mux
	rounds   store.Rounds
	dict     Dictionary
	identity ClientResolver
	opts     Options
}

// New constructs a Server, installs middleware, and registers routes.
func New(rounds store.Rounds, dict Dictionary, opts Options) *Server {
	if opts.Identity == nil {
		opts.Identity = IPResolver{}
	}
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{r: chi.NewRouter(), rounds: rounds, dict: dict, identity: opts.Identity, opts: opts}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	if opts.TrustProxy {
		s.r.Use(chimw.RealIP) // set RemoteAddr from X-Forwarded-For etc.
	}
	s.r.Use(hlog.NewHandler(log.Logger))     // request-scoped logger
	s.r.Use(withRequestID)                   // tag logger with request id
	s.r.Use(hlog.AccessHandler(accessLog))   // one line per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(cors(opts.ClientOrigin))         // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"persistence-is-key","endpoints":["/health","POST /api/dictionary","DELETE /api/dictionary","POST /api/word","GET /api/word","DELETE /api/word","POST /api/guess"]}`))
	})
	s.r.Get("/health", s.handleHealth)

	limiter := newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, s.identity)

	s.r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin(opts.AdminKeyHash))
			r.Post("/dictionary", s.handleAddWords)
			r.Delete("/dictionary", s.handleRemoveWord)
		})
		r.Group(func(r chi.Router) {
			r.Use(limiter.middleware)
			r.Post("/word", s.handleStartRound)
			r.Get("/word", s.handleGetWord)
			r.Delete("/word", s.handleAbandonRound)
			r.Post("/guess", s.handleGuess)
		})
		if opts.Tokens != nil {
			r.Post("/session", s.handleSession)
		}
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found")
	})

	return s
}

// Start serves HTTP on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received, shutting down server gracefully")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- helpers -------------------------------------

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error": code} with the given status.
func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// handleHealth reports liveness plus dictionary and round counts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"words":  s.dict.Count(r.Context()),
		"rounds": s.rounds.Len(),
	})
}

// ---------------------------- DICTIONARY -----------------------------------

// addWordsReq is the payload for POST /api/dictionary.
type addWordsReq struct {
	Words []string `json:"words"`
}

// handleAddWords bulk-inserts words. Invalid entries are skipped by the store.
func (s *Server) handleAddWords(w http.ResponseWriter, r *http.Request) {
	var req addWordsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	list := words.Clean(req.Words)
	if len(list) == 0 {
		writeError(w, http.StatusBadRequest, "words_required")
		return
	}
	s.dict.AddManyWords(r.Context(), list)
	hlog.FromRequest(r).Info().Int("count", len(list)).Msg("dictionary: words submitted")
	w.WriteHeader(http.StatusCreated)
}

// removeWordReq is the payload for DELETE /api/dictionary.
type removeWordReq struct {
	Word string `json:"word"`
}

// handleRemoveWord deletes a word; absent words still yield 204.
func (s *Server) handleRemoveWord(w http.ResponseWriter, r *http.Request) {
	var req removeWordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	word := words.Normalize(req.Word)
	if word == "" {
		writeError(w, http.StatusBadRequest, "word_required")
		return
	}
	s.dict.RemoveWord(r.Context(), word)
	w.WriteHeader(http.StatusNoContent)
}

// ------------------------------ ROUNDS -------------------------------------

// handleStartRound picks a random secret and opens a round for the client.
func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	client := s.identity.ClientID(r)
	if _, err := s.rounds.Get(r.Context(), client); err == nil {
		writeError(w, http.StatusConflict, "round_active")
		return
	}

	word, ok := s.dict.RandomWord(r.Context())
	if !ok {
		hlog.FromRequest(r).Warn().Msg("cannot start round: dictionary is empty")
		writeError(w, http.StatusServiceUnavailable, "dictionary_empty")
		return
	}

	if err := s.rounds.Start(r.Context(), client, word); err != nil {
		if errors.Is(err, store.ErrRoundActive) {
			writeError(w, http.StatusConflict, "round_active")
			return
		}
		hlog.FromRequest(r).Error().Err(err).Msg("start round")
		writeError(w, http.StatusInternalServerError, "start_failed")
		return
	}
	hlog.FromRequest(r).Debug().Str("client", client).Msg("round started")
	w.WriteHeader(http.StatusNoContent)
}

// wordRes is returned by GET /api/word.
type wordRes struct {
	Word string `json:"word"`
}

// handleGetWord reveals the client's current secret.
func (s *Server) handleGetWord(w http.ResponseWriter, r *http.Request) {
	round, err := s.rounds.Get(r.Context(), s.identity.ClientID(r))
	if err != nil {
		writeError(w, http.StatusNotFound, "no_round")
		return
	}
	writeJSON(w, http.StatusOK, wordRes{Word: round.Word})
}

// handleAbandonRound discards the client's round so a new one can start.
// Answers 204 whether or not a round was active.
func (s *Server) handleAbandonRound(w http.ResponseWriter, r *http.Request) {
	client := s.identity.ClientID(r)
	s.rounds.End(r.Context(), client)
	hlog.FromRequest(r).Debug().Str("client", client).Msg("round abandoned")
	w.WriteHeader(http.StatusNoContent)
}

// guessReq/Res payloads for POST /api/guess.
type guessReq struct {
	Guess string `json:"guess"`
}
type guessRes struct {
	Result string `json:"result"`
}

// handleGuess validates and scores a guess against the client's round.
// Unknown words are rejected before they count as a guess.
func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	guess := words.Normalize(req.Guess)
	if !words.HasLength(guess) {
		writeError(w, http.StatusBadRequest, "invalid_guess")
		return
	}

	client := s.identity.ClientID(r)
	if _, err := s.rounds.Get(r.Context(), client); err != nil {
		writeError(w, http.StatusNotFound, "no_round")
		return
	}
	if !s.dict.Contains(r.Context(), guess) {
		writeError(w, http.StatusNotFound, "not_in_dictionary")
		return
	}

	verdict, err := s.rounds.Guess(r.Context(), client, guess)
	switch {
	case errors.Is(err, store.ErrNoRound):
		writeError(w, http.StatusNotFound, "no_round")
		return
	case errors.Is(err, store.ErrGuessesExhausted):
		writeError(w, http.StatusNotFound, "round_over")
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("guess")
		writeError(w, http.StatusInternalServerError, "guess_failed")
		return
	}
	writeJSON(w, http.StatusOK, guessRes{Result: string(verdict)})
}

// ------------------------------ SESSION ------------------------------------

// sessionRes is returned by POST /api/session.
type sessionRes struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleSession issues a client session token and sets it as a cookie.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	tok, sid, exp, err := s.opts.Tokens.Issue()
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("sign session token")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	setSessionCookie(w, tok, exp, s.opts.SecureCookies)
	hlog.FromRequest(r).Debug().Str("sid", sid).Msg("session issued")
	writeJSON(w, http.StatusCreated, sessionRes{Token: tok, ExpiresAt: exp})
}
