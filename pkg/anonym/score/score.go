package score

import (
	"context"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/anonym/pkg/anonym/lexicon"
)

// Tag labels one classified sub-span of an n-gram.
type Tag string

const (
	TagFirstName Tag = "firstname"
	TagLastName  Tag = "lastname"
	TagPrefix    Tag = "prefix"
	TagInitial   Tag = "initial"
	TagInitials  Tag = "initials"
	TagNonWord   Tag = "non-word"

	// TagHonorific marks salutations (dhr, mevr, ...). It occupies word
	// positions but is never counted as name evidence.
	TagHonorific Tag = "honorific"

	// TagTentativeLastName marks an unrecognised word next to an initial or
	// first name that passes the surname plausibility check.
	TagTentativeLastName Tag = "lastname?"
)

// NameThreshold is the minimum score of a name candidate.
const NameThreshold = 1.0

var (
	initialRe   = regexp.MustCompile(`^[A-Z]\.?$`)
	honorificRe = regexp.MustCompile(`(?i)^(dhr|mevr|dr|drs|mr|mw|ir|ing|mrs|sr)\.?$`)
	initialsRe  = regexp.MustCompile(`^[A-Z][A-Z][A-Z]?$`)
	capWordRe   = regexp.MustCompile(`^[A-Z][a-z].`)
	costsRe     = regexp.MustCompile(`^[A-Za-z]+kosten`)
)

// Evidence is the scoring outcome for one n-gram.
type Evidence struct {
	NGram     string
	Features  []Tag // name evidence in classification order; honorifics excluded
	Positions []Tag // winning tag per word, "" when untagged
	Score     float64
}

// IsName reports whether the n-gram qualifies as a name candidate.
func (e Evidence) IsName() bool {
	return e.Score >= NameThreshold
}

// rule classifies one sub-span. Rules are evaluated in slice order and the
// first match wins.
type rule struct {
	tag   Tag
	match func(s *Scorer, sub string) bool
}

var rules = []rule{
	{TagFirstName, (*Scorer).isFirstName},
	{TagLastName, (*Scorer).isLastName},
	{TagPrefix, (*Scorer).isPrefix},
	{TagInitial, (*Scorer).isInitial},
	{TagHonorific, (*Scorer).isHonorific},
	{TagInitials, (*Scorer).isInitials},
	{TagNonWord, (*Scorer).isNonWord},
}

// Scorer classifies n-grams against a set of lexicons. It holds no mutable
// state and is safe for concurrent use.
type Scorer struct {
	lex *lexicon.Lexicons
}

// New creates a scorer backed by lex.
func New(lex *lexicon.Lexicons) *Scorer {
	return &Scorer{lex: lex}
}

// Score classifies every contiguous sub-span of ngram and derives its name
// score.
//
// Each word position keeps the tag of the last sub-span covering it, so a
// multi-word match ("de Vries" as surname) overrides the tags of its
// parts. The n-gram scores the number of feature tags collected, but only
// when every position is tagged, the n-gram is longer than three
// characters, it neither starts nor ends with a salutation, and at least
// one position carries real name evidence (not just prefix, initial or
// salutation).
func (s *Scorer) Score(ngram string) Evidence {
	words := strings.Split(ngram, " ")
	ev := Evidence{NGram: ngram, Positions: make([]Tag, len(words))}

	for i := 0; i < len(words); i++ {
		for j := i + 1; j <= len(words); j++ {
			sub := strings.Join(words[i:j], " ")
			tag, ok := s.classify(sub)
			if !ok {
				continue
			}
			if tag != TagHonorific {
				ev.Features = append(ev.Features, tag)
			}
			for k := i; k < j; k++ {
				ev.Positions[k] = tag
			}
		}
	}

	s.inferLastName(words, ev.Positions)

	if !fullyTagged(ev.Positions) || utf8.RuneCountInString(ngram) <= 3 {
		return ev
	}
	if ev.Positions[0] == TagHonorific || ev.Positions[len(words)-1] == TagHonorific {
		return ev
	}
	if salutationOnly(ev.Positions) {
		return ev
	}
	ev.Score = float64(len(ev.Features))
	return ev
}

func (s *Scorer) classify(sub string) (Tag, bool) {
	for _, r := range rules {
		if r.match(s, sub) {
			return r.tag, true
		}
	}
	return "", false
}

// inferLastName fills a single untagged position that sits right after
// (or, failing that, right before) an initial or first name, provided the
// word there looks like a surname. The gap may sit anywhere in the n-gram,
// so "P. ZWARTKOP Jansen" is inferred as well as "P. ZWARTKOP". N-grams
// with two or more gaps are left alone.
func (s *Scorer) inferLastName(words []string, pos []Tag) {
	gap := -1
	for k, t := range pos {
		if t != "" {
			continue
		}
		if gap >= 0 {
			return
		}
		gap = k
	}
	if gap < 0 {
		return
	}

	anchors := func(k int) bool {
		return k >= 0 && k < len(pos) && (pos[k] == TagInitial || pos[k] == TagFirstName)
	}
	if (anchors(gap-1) || anchors(gap+1)) && s.plausibleLastName(words[gap]) {
		pos[gap] = TagTentativeLastName
	}
}

func (s *Scorer) isFirstName(sub string) bool {
	return s.lex.IsFirstName(lexicon.TitleCase(sub))
}

func (s *Scorer) isLastName(sub string) bool {
	bare := strings.ReplaceAll(sub, ",", "")
	if s.lex.IsLastName(lexicon.TitleCase(bare)) {
		return true
	}
	return strings.Contains(sub, " ") && s.lex.IsLastName(bare)
}

func (s *Scorer) isPrefix(sub string) bool {
	return s.lex.IsPrefix(strings.TrimSuffix(strings.ToLower(sub), "."))
}

func (s *Scorer) isInitial(sub string) bool {
	return initialRe.MatchString(sub)
}

func (s *Scorer) isHonorific(sub string) bool {
	return IsHonorific(sub)
}

// IsHonorific reports whether word is a salutation such as "Dhr." or "MEVR".
func IsHonorific(word string) bool {
	return honorificRe.MatchString(word)
}

func (s *Scorer) isInitials(sub string) bool {
	return initialsRe.MatchString(sub) && !s.lex.IsAbbreviation(sub)
}

// isNonWord flags a capitalised single word that no dictionary knows: an
// unknown proper noun is probably a name.
func (s *Scorer) isNonWord(sub string) bool {
	if strings.Contains(sub, " ") || !capWordRe.MatchString(sub) {
		return false
	}
	if s.lex.IsAbbreviation(strings.ToUpper(sub)) {
		return false
	}
	return s.notCommonWord(sub)
}

// plausibleLastName is the looser check used for gap inference: any word
// starting with a capital that is not a known abbreviation or common word.
func (s *Scorer) plausibleLastName(word string) bool {
	if word == "" || word[0] < 'A' || word[0] > 'Z' {
		return false
	}
	if s.lex.IsAbbreviation(word) {
		return false
	}
	return s.notCommonWord(word)
}

func (s *Scorer) notCommonWord(word string) bool {
	lower := strings.ToLower(word)
	switch {
	case lexicon.IsMonth(lower):
		return false
	case strings.Contains(word, "."):
		return false
	case s.lex.InVocabulary(lower):
		return false
	case strings.Contains(word, "Pdirekt"):
		return false
	case costsRe.MatchString(word):
		return false
	}
	return true
}

func fullyTagged(pos []Tag) bool {
	for _, t := range pos {
		if t == "" {
			return false
		}
	}
	return true
}

func salutationOnly(pos []Tag) bool {
	for _, t := range pos {
		switch t {
		case TagPrefix, TagInitial, TagHonorific:
		default:
			return false
		}
	}
	return true
}

// ScoreAll scores every n-gram once using up to workers goroutines (0 means
// GOMAXPROCS) and returns the evidence of those that qualify as names.
func (s *Scorer) ScoreAll(ctx context.Context, ngrams []string, workers int) (map[string]Evidence, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	names := make(map[string]Evidence)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	const batch = 1024
	for lo := 0; lo < len(ngrams); lo += batch {
		part := ngrams[lo:min(lo+batch, len(ngrams))]
		g.Go(func() error {
			found := make(map[string]Evidence)
			for _, ng := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				if ev := s.Score(ng); ev.IsName() {
					found[ng] = ev
				}
			}
			mu.Lock()
			for ng, ev := range found {
				names[ng] = ev
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}
