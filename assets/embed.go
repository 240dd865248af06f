// assets/embed.go
//
// Embedded default word list used to seed an empty dictionary.

package assets

import "embed"

//go:embed words.txt
var FS embed.FS

// DefaultWords returns the raw bundled seed list: one word per line, with
// blank lines and `#` comments left for the caller to skip.
func DefaultWords() ([]byte, error) {
	return FS.ReadFile("words.txt")
}
