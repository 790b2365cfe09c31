// Package vocabulary provides the word lists micros are built from.
package vocabulary

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// ErrInvalidWord is returned when a word list contains something other than lowercase ASCII letters.
var ErrInvalidWord = errors.New("vocabulary words must consist of lowercase ascii letters")

//go:embed words.txt
var defaultWords string

var wordRe = regexp.MustCompile(`^[a-z]+$`)

// Default returns the embedded vocabulary.
func Default() []string {
	words, err := Parse(strings.NewReader(defaultWords))
	if err != nil {
		panic(fmt.Sprintf("vocabulary: embedded word list is invalid: %s", err))
	}
	return words
}

// Load reads a vocabulary from the file at path.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads one word per line from r. Blank lines and lines starting with '#' are skipped,
// surrounding whitespace is trimmed and duplicates are dropped while keeping the first occurrence.
func Parse(r io.Reader) ([]string, error) {
	seen := make(map[string]struct{})
	words := make([]string, 0)

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}

		if !wordRe.MatchString(word) {
			return nil, fmt.Errorf("line %d: %q: %w", line, word, ErrInvalidWord)
		}

		if _, ok := seen[word]; ok {
			continue
		}
		seen[word] = struct{}{}
		words = append(words, word)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}

	return words, nil
}
