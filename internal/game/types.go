// internal/game/types.go
//
// Core type definitions for guess evaluation.
// Defines:
//   - Mark: per-letter result of a guess (correct/present/wrong).
//   - Verdict: the per-position string of marks for one guess.
//   - Mode: which scoring rule the evaluator applies.

package game

// Mark is the evaluation result for a single letter in a guess.
//   - 'c': letter is in the correct position.
//   - 'p': letter occurs elsewhere in the secret.
//   - 'w': letter does not occur in the secret.
type Mark byte

const (
	MarkCorrect Mark = 'c'
	MarkPresent Mark = 'p'
	MarkWrong   Mark = 'w'
)

// Verdict is one Mark per guess position, e.g. "pwwcc".
type Verdict string

// Solved reports whether every position is MarkCorrect.
func (v Verdict) Solved() bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		if Mark(v[i]) != MarkCorrect {
			return false
		}
	}
	return true
}

// Mode selects the scoring rule.
type Mode string

const (
	// ModeSimple marks a letter present whenever it occurs anywhere in the
	// secret, regardless of how many times it was already matched.
	ModeSimple Mode = "simple"
	// ModeStrict is classic Wordle: presents are capped by the number of
	// unmatched occurrences left in the secret.
	ModeStrict Mode = "strict"
)

// Scorer evaluates guess against word.
type Scorer func(guess, word string) Verdict
