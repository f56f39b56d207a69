package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxN is the longest n-gram considered a name candidate.
const DefaultMaxN = 5

// Extractor produces the n-grams of one tokenized text.
type Extractor struct {
	maxN int
}

// NewExtractor creates an extractor for n-grams of length 1..maxN.
// Values below 1 fall back to DefaultMaxN.
func NewExtractor(maxN int) *Extractor {
	if maxN < 1 {
		maxN = DefaultMaxN
	}
	return &Extractor{maxN: maxN}
}

// MaxN returns the longest n-gram length produced.
func (e *Extractor) MaxN() int { return e.maxN }

// Extract counts the n-grams starting at every token position.
//
// Unigrams must be longer than one character and contain no '@'. Longer
// n-grams are skipped when two adjacent tokens inside them are identical
// (separator stutter such as "- -"). Finally every n-gram containing
// anything but letters, spaces and ,'.- is discarded, which removes amounts,
// dates and reference numbers.
func (e *Extractor) Extract(tokens []string) map[string]int {
	terms := make(map[string]int)

	for i, tok := range tokens {
		if utf8.RuneCountInString(tok) > 1 && !strings.Contains(tok, "@") {
			terms[tok]++
		}
		for n := 2; n <= e.maxN && i+n <= len(tokens); n++ {
			window := tokens[i : i+n]
			if hasAdjacentDuplicate(window) {
				continue
			}
			terms[strings.Join(window, " ")]++
		}
	}

	for term := range terms {
		if !isNameShaped(term) {
			delete(terms, term)
		}
	}
	return terms
}

func hasAdjacentDuplicate(tokens []string) bool {
	for k := 1; k < len(tokens); k++ {
		if tokens[k] == tokens[k-1] {
			return true
		}
	}
	return false
}

// isNameShaped reports whether s consists solely of letters, spaces and
// the punctuation ,'.-
func isNameShaped(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			continue
		}
		switch r {
		case ' ', ',', '\'', '.', '-':
			continue
		}
		return false
	}
	return true
}
