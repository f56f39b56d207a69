package abbrev

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/cognicore/anonym/pkg/anonym/score"
)

var capsRe = regexp.MustCompile(`^[A-Z]{2,4}$`)

// PrefixSet reports whether a lowercase token is a surname particle.
type PrefixSet interface {
	IsPrefix(token string) bool
}

// Candidate is an all-caps token with its corpus frequency.
type Candidate struct {
	Token string
	Freq  int64
}

// Counter counts short all-caps tokens across a corpus. Tokens that are
// surname particles or salutations are never counted: "VD" and "DHR" must
// keep their own meaning instead of turning into abbreviations.
type Counter struct {
	prefixes PrefixSet
	counts   map[string]int64
}

// NewCounter creates a counter; prefixes may be nil.
func NewCounter(prefixes PrefixSet) *Counter {
	return &Counter{prefixes: prefixes, counts: make(map[string]int64)}
}

// Add counts the qualifying tokens of one document.
func (c *Counter) Add(tokens []string) {
	for _, tok := range tokens {
		if !capsRe.MatchString(tok) || score.IsHonorific(tok) {
			continue
		}
		if c.prefixes != nil && c.prefixes.IsPrefix(strings.ToLower(tok)) {
			continue
		}
		c.counts[tok]++
	}
}

// Candidates returns tokens seen at least minFreq times, most frequent
// first; equal frequencies sort by token.
func (c *Counter) Candidates(minFreq int64) []Candidate {
	var out []Candidate
	for tok, n := range c.counts {
		if n >= minFreq {
			out = append(out, Candidate{Token: tok, Freq: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Freq != out[j].Freq {
			return out[i].Freq > out[j].Freq
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// WriteTable writes "token<TAB>frequency" lines, the format read back by
// lexicon.ReadAbbreviations.
func WriteTable(w io.Writer, cands []Candidate) error {
	bw := bufio.NewWriter(w)
	for _, c := range cands {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", c.Token, c.Freq); err != nil {
			return err
		}
	}
	return bw.Flush()
}
