// internal/store/memory.go
//
// In-memory round table: client identifier → active round.
//
// Characteristics:
//   - One round per client; starting a second one while active is rejected.
//   - Each guess increments the round's counter; the entry is removed once the
//     guess is fully correct or the counter reaches the guess limit.
//   - Concurrency-safe via a Mutex (Guess is a read-modify-write).
//   - State is lost when the process restarts.

package store

import (
	"context"
	"errors"
	"sync"

	"github.com/csaldivar-astate/persistence-is-key/internal/game"
)

// MaxGuesses is the number of guesses a round allows.
const MaxGuesses = 5

var (
	// ErrRoundActive is returned by Start when the client already has a round.
	ErrRoundActive = errors.New("round already active")
	// ErrNoRound is returned when the client has no active round.
	ErrNoRound = errors.New("no active round")
	// ErrGuessesExhausted is returned when a guess arrives after the limit
	// was reached. The round is removed.
	ErrGuessesExhausted = errors.New("guesses exhausted")
)

// Round is the state of one client's game.
type Round struct {
	Word       string // secret, lowercase
	NumGuesses int    // guesses made so far (0..MaxGuesses)
}

// Rounds defines the round-state contract used by the HTTP layer.
// Client identifiers are opaque: an IP address, a session id, etc.
type Rounds interface {
	// Start opens a round for client with the given secret.
	Start(ctx context.Context, client, word string) error

	// Get returns a copy of client's active round.
	Get(ctx context.Context, client string) (Round, error)

	// Guess counts one guess against client's round and scores it.
	// The verdict is returned even when the guess ends the round.
	Guess(ctx context.Context, client, guess string) (game.Verdict, error)

	// End discards client's round, if any.
	End(ctx context.Context, client string)

	// Len returns the number of active rounds.
	Len() int
}

// memory is the map-backed Rounds implementation.
type memory struct {
	mu         sync.Mutex        // guards rounds
	rounds     map[string]*Round // keyed by client identifier
	score      game.Scorer
	maxGuesses int
}

// NewMemoryStore constructs an empty in-memory Rounds table.
// A nil scorer means game.Evaluate.
func NewMemoryStore(score game.Scorer) Rounds {
	if score == nil {
		score = game.Evaluate
	}
	return &memory{
		rounds:     make(map[string]*Round),
		score:      score,
		maxGuesses: MaxGuesses,
	}
}

func (m *memory) Start(_ context.Context, client, word string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[client]; ok {
		return ErrRoundActive
	}
	m.rounds[client] = &Round{Word: word}
	return nil
}

func (m *memory) Get(_ context.Context, client string) (Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rounds[client]; ok {
		return *r, nil
	}
	return Round{}, ErrNoRound
}

func (m *memory) Guess(_ context.Context, client, guess string) (game.Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rounds[client]
	if !ok {
		return "", ErrNoRound
	}
	if r.NumGuesses >= m.maxGuesses {
		delete(m.rounds, client)
		return "", ErrGuessesExhausted
	}

	r.NumGuesses++
	v := m.score(guess, r.Word)
	if v.Solved() || r.NumGuesses >= m.maxGuesses {
		delete(m.rounds, client)
	}
	return v, nil
}

func (m *memory) End(_ context.Context, client string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rounds, client)
}

func (m *memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rounds)
}
