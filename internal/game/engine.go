// internal/game/engine.go
//
// Guess evaluation.
// Responsibilities:
//   - Evaluate: the simple per-position rule (c / p / w by plain membership).
//   - EvaluateStrict: the classic two-pass Wordle algorithm.
//   - ScorerFor: pick a rule from a configured Mode.
//
// Both functions compare by character (rune), and expect guess and word to be
// already normalized to lowercase and of equal length. A shorter input is
// scored only up to the shorter length.

package game

import (
	"fmt"
	"strings"
)

// Evaluate scores guess against word:
//   - 'c' if guess[i] == word[i]
//   - else 'p' if guess[i] occurs anywhere in word
//   - else 'w'
//
// Repeated letters are not capped: with word "humor", guess "mummy" marks
// every 'm' that is not an exact hit as present.
func Evaluate(guess, word string) Verdict {
	g, w := []rune(guess), []rune(word)
	n := min(len(g), len(w))

	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		switch {
		case g[i] == w[i]:
			b.WriteByte(byte(MarkCorrect))
		case strings.ContainsRune(word, g[i]):
			b.WriteByte(byte(MarkPresent))
		default:
			b.WriteByte(byte(MarkWrong))
		}
	}
	return Verdict(b.String())
}

// EvaluateStrict implements the standard two-pass Wordle scoring.
//
// Pass 1:
//   - Mark exact matches as correct.
//   - Count the remaining (non-hit) secret letters.
//
// Pass 2:
//   - For each non-hit guess letter: if a remaining count exists, mark present
//     and decrement; otherwise mark wrong.
func EvaluateStrict(guess, word string) Verdict {
	g, w := []rune(guess), []rune(word)
	n := min(len(g), len(w))
	res := make([]byte, n)

	counts := make(map[rune]int, n)

	// First pass: hits and counts for the remaining secret letters.
	for i := 0; i < n; i++ {
		if g[i] == w[i] {
			res[i] = byte(MarkCorrect)
		} else {
			counts[w[i]]++
		}
	}

	// Second pass: presents/wrongs for non-hit tiles.
	for i := 0; i < n; i++ {
		if res[i] == byte(MarkCorrect) {
			continue
		}
		if counts[g[i]] > 0 {
			res[i] = byte(MarkPresent)
			counts[g[i]]--
		} else {
			res[i] = byte(MarkWrong)
		}
	}
	return Verdict(res)
}

// ScorerFor returns the Scorer for mode. An empty mode means ModeSimple.
func ScorerFor(mode Mode) (Scorer, error) {
	switch mode {
	case "", ModeSimple:
		return Evaluate, nil
	case ModeStrict:
		return EvaluateStrict, nil
	default:
		return nil, fmt.Errorf("unknown scoring mode %q", mode)
	}
}
