package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/csaldivar-astate/persistence-is-key/internal/dictionary"
	"github.com/csaldivar-astate/persistence-is-key/internal/store"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

type testEnv struct {
	srv    *Server
	dict   *dictionary.Store
	rounds store.Rounds
}

func newTestEnv(t *testing.T, opts Options, seed ...string) *testEnv {
	t.Helper()
	dict, err := dictionary.Open(context.Background(), filepath.Join(t.TempDir(), "dict.db"))
	if err != nil {
		t.Fatalf("open dictionary: %v", err)
	}
	t.Cleanup(func() { _ = dict.Close() })
	dict.AddManyWords(context.Background(), seed)

	// clients are told apart by X-Forwarded-For
	opts.TrustProxy = true

	rounds := store.NewMemoryStore(nil)
	return &testEnv{srv: New(rounds, dict, opts), dict: dict, rounds: rounds}
}

// do sends a request from client (an IP, sent as X-Forwarded-For).
func (e *testEnv) do(t *testing.T, method, path, client string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if client != "" {
		req.Header.Set("X-Forwarded-For", client)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %q)", w.Code, want, w.Body.String())
	}
}

const alice = "10.0.0.1"

func TestAddWords(t *testing.T) {
	e := newTestEnv(t, Options{})
	w := e.do(t, http.MethodPost, "/api/dictionary", alice, map[string]any{"words": []string{"Humor", "mayor", "toolong", " crane", "toast\n"}})
	expectStatus(t, w, http.StatusCreated)

	ctx := context.Background()
	if !e.dict.Contains(ctx, "humor") || !e.dict.Contains(ctx, "mayor") {
		t.Error("words not inserted")
	}
	if e.dict.Count(ctx) != 2 {
		t.Errorf("Count = %d, want 2", e.dict.Count(ctx))
	}
}

func TestAddWordsBadRequest(t *testing.T) {
	e := newTestEnv(t, Options{})
	cases := map[string]any{
		"missing field": map[string]any{},
		"empty list":    map[string]any{"words": []string{}},
		"empty entries": map[string]any{"words": []string{"", ""}},
		"not json":      "words=humor",
		"no body":       nil,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/api/dictionary", alice, body)
			expectStatus(t, w, http.StatusBadRequest)
		})
	}
}

func TestRemoveWord(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor")
	w := e.do(t, http.MethodDelete, "/api/dictionary", alice, map[string]string{"word": "HUMOR"})
	expectStatus(t, w, http.StatusNoContent)
	if e.dict.Contains(context.Background(), "humor") {
		t.Error("humor should be removed")
	}
}

func TestRemoveAbsentWord(t *testing.T) {
	e := newTestEnv(t, Options{})
	w := e.do(t, http.MethodDelete, "/api/dictionary", alice, map[string]string{"word": "ghost"})
	expectStatus(t, w, http.StatusNoContent)
}

func TestRemoveWordMissing(t *testing.T) {
	e := newTestEnv(t, Options{})
	w := e.do(t, http.MethodDelete, "/api/dictionary", alice, map[string]string{})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestStartRoundTwiceConflicts(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor")
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusConflict)
}

func TestStartRoundEmptyDictionary(t *testing.T) {
	e := newTestEnv(t, Options{})
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusServiceUnavailable)
	if e.rounds.Len() != 0 {
		t.Error("no round should be created")
	}
}

func TestGetWord(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor")
	expectStatus(t, e.do(t, http.MethodGet, "/api/word", alice, nil), http.StatusNotFound)

	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
	w := e.do(t, http.MethodGet, "/api/word", alice, nil)
	expectStatus(t, w, http.StatusOK)
	if got := decode[wordRes](t, w); got.Word != "humor" {
		t.Errorf("word = %q, want humor", got.Word)
	}
}

func TestGuessWinsRound(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor")
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
	e.dict.AddManyWords(context.Background(), []string{"mayor"})

	w := e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": "mayor"})
	expectStatus(t, w, http.StatusOK)
	if got := decode[guessRes](t, w); got.Result != "pwwcc" {
		t.Errorf("result = %q, want pwwcc", got.Result)
	}

	w = e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": "HUMOR"})
	expectStatus(t, w, http.StatusOK)
	if got := decode[guessRes](t, w); got.Result != "ccccc" {
		t.Errorf("result = %q, want ccccc", got.Result)
	}

	// round is over
	expectStatus(t, e.do(t, http.MethodGet, "/api/word", alice, nil), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
}

func TestSixthGuessIsNotFound(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor")
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
	e.dict.AddManyWords(context.Background(), []string{"crane"})

	for i := 1; i <= store.MaxGuesses; i++ {
		w := e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": "crane"})
		expectStatus(t, w, http.StatusOK)
		if got := decode[guessRes](t, w); got.Result != "wpwww" {
			t.Fatalf("guess %d result = %q", i, got.Result)
		}
	}

	w := e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": "crane"})
	expectStatus(t, w, http.StatusNotFound)

	// state cleared: a new round can start
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
}

func TestGuessValidation(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor")

	// no round
	expectStatus(t, e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": "humor"}), http.StatusNotFound)

	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)

	expectStatus(t, e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": "hum"}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": " humor"}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": "humor\n"}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{}), http.StatusBadRequest)
	expectStatus(t, e.do(t, http.MethodPost, "/api/guess", alice, "{"), http.StatusBadRequest)

	// unknown word does not consume a guess
	expectStatus(t, e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": "zzzzz"}), http.StatusNotFound)
	r, err := e.rounds.Get(context.Background(), alice)
	if err != nil {
		t.Fatalf("round lost: %v", err)
	}
	if r.NumGuesses != 0 {
		t.Errorf("NumGuesses = %d, want 0", r.NumGuesses)
	}
}

func TestClientsAreIsolated(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor")
	const bob = "10.0.0.2"
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", bob, nil), http.StatusNoContent)

	w := e.do(t, http.MethodPost, "/api/guess", alice, map[string]string{"guess": "humor"})
	expectStatus(t, w, http.StatusOK)

	expectStatus(t, e.do(t, http.MethodGet, "/api/word", alice, nil), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodGet, "/api/word", bob, nil), http.StatusOK)
}

func TestAbandonRound(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor")

	// nothing to abandon is still fine
	expectStatus(t, e.do(t, http.MethodDelete, "/api/word", alice, nil), http.StatusNoContent)

	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
	expectStatus(t, e.do(t, http.MethodDelete, "/api/word", alice, nil), http.StatusNoContent)
	expectStatus(t, e.do(t, http.MethodGet, "/api/word", alice, nil), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
}

func TestForwardedForNeedsTrustProxy(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor")
	e.srv = New(e.rounds, e.dict, Options{})

	// both requests come from httptest's fixed RemoteAddr
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", "10.0.0.2", nil), http.StatusConflict)
	if n := e.rounds.Len(); n != 1 {
		t.Errorf("rounds = %d, want 1", n)
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, Options{RateLimitRPS: 1, RateLimitBurst: 2})
	expectStatus(t, e.do(t, http.MethodGet, "/api/word", alice, nil), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodGet, "/api/word", alice, nil), http.StatusNotFound)
	expectStatus(t, e.do(t, http.MethodGet, "/api/word", alice, nil), http.StatusTooManyRequests)

	// other clients have their own budget
	expectStatus(t, e.do(t, http.MethodGet, "/api/word", "10.0.0.9", nil), http.StatusNotFound)

	// dictionary routes are not limited
	for i := 0; i < 5; i++ {
		expectStatus(t, e.do(t, http.MethodDelete, "/api/dictionary", alice, map[string]string{"word": "ghost"}), http.StatusNoContent)
	}
}

func TestAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	e := newTestEnv(t, Options{AdminKeyHash: string(hash)})
	body := map[string]any{"words": []string{"humor"}}

	expectStatus(t, e.do(t, http.MethodPost, "/api/dictionary", alice, body), http.StatusUnauthorized)
	expectStatus(t, e.do(t, http.MethodPost, "/api/dictionary", alice, body, AdminKeyHeader, "wrong"), http.StatusUnauthorized)
	expectStatus(t, e.do(t, http.MethodPost, "/api/dictionary", alice, body, AdminKeyHeader, "letmein"), http.StatusCreated)
	expectStatus(t, e.do(t, http.MethodDelete, "/api/dictionary", alice, map[string]string{"word": "humor"}), http.StatusUnauthorized)

	// game routes stay open
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
}

func TestSessionTokens(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	e := newTestEnv(t, Options{
		Identity: TokenResolver{Issuer: issuer, Fallback: IPResolver{}},
		Tokens:   issuer,
	}, "humor")

	w := e.do(t, http.MethodPost, "/api/session", alice, nil)
	expectStatus(t, w, http.StatusCreated)
	first := decode[sessionRes](t, w)
	if first.Token == "" {
		t.Fatal("empty token")
	}
	if len(w.Result().Cookies()) == 0 {
		t.Error("session cookie not set")
	}
	second := decode[sessionRes](t, e.do(t, http.MethodPost, "/api/session", alice, nil))

	// same IP, two sessions, two rounds
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil, "Authorization", "Bearer "+first.Token), http.StatusNoContent)
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil, "Authorization", "Bearer "+second.Token), http.StatusNoContent)
	// no token falls back to the IP, which has no round yet
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusNoContent)
	expectStatus(t, e.do(t, http.MethodPost, "/api/word", alice, nil), http.StatusConflict)

	if e.rounds.Len() != 3 {
		t.Errorf("rounds = %d, want 3", e.rounds.Len())
	}
}

func TestSessionRouteDisabledWithoutIssuer(t *testing.T) {
	e := newTestEnv(t, Options{})
	expectStatus(t, e.do(t, http.MethodPost, "/api/session", alice, nil), http.StatusNotFound)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, Options{}, "humor", "mayor")
	w := e.do(t, http.MethodGet, "/health", alice, nil)
	expectStatus(t, w, http.StatusOK)
	got := decode[map[string]any](t, w)
	if got["ok"] != true || got["words"] != float64(2) {
		t.Errorf("health = %v", got)
	}
}

func TestNotFoundAndCORS(t *testing.T) {
	e := newTestEnv(t, Options{ClientOrigin: "http://example.test"})
	w := e.do(t, http.MethodGet, "/nope", alice, nil)
	expectStatus(t, w, http.StatusNotFound)
	if got := decode[map[string]string](t, w); got["error"] != "not_found" {
		t.Errorf("body = %v", got)
	}

	w = e.do(t, http.MethodOptions, "/api/guess", alice, nil)
	expectStatus(t, w, http.StatusNoContent)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.test" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
