// internal/words/words.go
//
// Word normalization and word-list file handling shared by the dictionary
// store, the HTTP layer and the CLI.
//
// Responsibilities:
//   - Normalize candidate words (lowercase) and check their length.
//   - Clean incoming lists (normalize, drop empty entries, de-duplicate).
//   - Read seed files: plain text (one word per line) or YAML (`words: [...]`).
//   - Expose the embedded default list for seeding an empty dictionary.
//
// Length is counted in characters (runes), not bytes. Surrounding whitespace
// counts toward it; only the file readers and TrimAll strip it.

package words

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"gopkg.in/yaml.v2"

	"github.com/csaldivar-astate/persistence-is-key/assets"
)

// Length is the number of characters in every dictionary word.
const Length = 5

// Normalize lowercases w. Whitespace is kept, so " humor" stays six
// characters long and fails HasLength.
func Normalize(w string) string {
	return strings.ToLower(w)
}

// HasLength reports whether w is exactly Length characters long.
func HasLength(w string) bool {
	return utf8.RuneCountInString(w) == Length
}

// Clean normalizes every entry, drops empty strings and removes duplicates
// while keeping first-seen order. Length is not enforced here; the
// dictionary store rejects (and logs) wrong-length words itself.
func Clean(list []string) []string {
	normalized := lo.Map(list, func(w string, _ int) string { return Normalize(w) })
	return lo.Uniq(lo.Compact(normalized))
}

// TrimAll strips surrounding whitespace from every entry. Used for
// operator input (CLI arguments, seed files), never for API payloads.
func TrimAll(list []string) []string {
	return lo.Map(list, func(w string, _ int) string { return strings.TrimSpace(w) })
}

// seedFile is the YAML shape accepted by ReadFile.
type seedFile struct {
	Words []string `yaml:"words"`
}

// ReadFile loads a word list from path.
// Files ending in .yaml/.yml are decoded as {words: [...]}; anything else is
// read one word per line with blank lines and `#` comments skipped.
func ReadFile(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return readYAML(path)
	default:
		return readLines(path)
	}
}

func readYAML(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var sf seedFile
	if err := yaml.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return Clean(TrimAll(sf.Words)), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	list, err := parseLines(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return list, nil
}

// parseLines reads one word per line, skipping blank lines and `#` comments.
func parseLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return Clean(out), nil
}

// Defaults returns the embedded seed list.
func Defaults() ([]string, error) {
	raw, err := assets.DefaultWords()
	if err != nil {
		return nil, fmt.Errorf("embedded words: %w", err)
	}
	list, err := parseLines(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("embedded words: %w", err)
	}
	return list, nil
}
