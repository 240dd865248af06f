// internal/dictionary/dictionary.go
//
// SQLite-backed set of valid five-letter words.
//
// The mutating and lookup methods are fire-and-forget: storage errors are
// logged and swallowed, and callers carry on as if the call was a no-op.
// Only Open (startup) reports errors.

package dictionary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/csaldivar-astate/persistence-is-key/internal/words"
)

// Store wraps the Dictionary table.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate dictionary: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// AddWord lowercases word and inserts it if absent.
// Words that are not exactly five characters are logged and skipped.
func (s *Store) AddWord(ctx context.Context, word string) {
	w := words.Normalize(word)
	if !words.HasLength(w) {
		log.Warn().Str("word", word).Msg("dictionary: rejected word, must be 5 characters")
		return
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO Dictionary (word) VALUES (?)`, w); err != nil {
		log.Error().Err(err).Str("word", w).Msg("dictionary: insert failed")
	}
}

// AddManyWords applies AddWord to each element.
func (s *Store) AddManyWords(ctx context.Context, list []string) {
	for _, w := range list {
		s.AddWord(ctx, w)
	}
}

// RemoveWord deletes word if present.
func (s *Store) RemoveWord(ctx context.Context, word string) {
	w := words.Normalize(word)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM Dictionary WHERE word=?`, w); err != nil {
		log.Error().Err(err).Str("word", w).Msg("dictionary: delete failed")
	}
}

// RandomWord returns a uniformly random word; ok is false when the
// dictionary is empty or the query failed.
func (s *Store) RandomWord(ctx context.Context) (word string, ok bool) {
	err := s.db.QueryRowContext(ctx, `SELECT word FROM Dictionary ORDER BY RANDOM() LIMIT 1`).Scan(&word)
	switch {
	case err == nil:
		return word, true
	case errors.Is(err, sql.ErrNoRows):
		return "", false
	default:
		log.Error().Err(err).Msg("dictionary: random pick failed")
		return "", false
	}
}

// Contains reports whether word (case-insensitive) is in the dictionary.
func (s *Store) Contains(ctx context.Context, word string) bool {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM Dictionary WHERE word=?`, words.Normalize(word)).Scan(&one)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Str("word", word).Msg("dictionary: lookup failed")
	}
	return err == nil
}

// Count returns the number of stored words (0 on error).
func (s *Store) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM Dictionary`).Scan(&n); err != nil {
		log.Error().Err(err).Msg("dictionary: count failed")
		return 0
	}
	return n
}
