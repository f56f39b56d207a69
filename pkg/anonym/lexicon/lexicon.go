package lexicon

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// DefaultPrefixes are surname particles that the last-name list does not
// spell out on its own but that appear in abbreviated form in free text.
var DefaultPrefixes = []string{"der", "vd", "v", "d", "'t"}

var months = map[string]struct{}{
	"jan": {}, "januari": {}, "feb": {}, "februari": {}, "mrt": {}, "maart": {},
	"apr": {}, "april": {}, "mei": {}, "jun": {}, "juni": {}, "jul": {}, "juli": {},
	"aug": {}, "augustus": {}, "sept": {}, "september": {}, "okt": {}, "oktober": {},
	"nov": {}, "november": {}, "dec": {}, "december": {},
}

// Lexicons holds the reference sets used for name scoring:
// - first names: title-cased name -> summed frequency
// - last names: surname and "prefix surname" -> frequency
// - prefixes: lowercase surname particles (de, van, ter, ...)
// - abbreviations: frequent all-caps tokens from the corpus itself
// - vocabulary: general-language word -> highest frequency seen
//
// A Lexicons value is immutable once built; share it freely between goroutines.
type Lexicons struct {
	firstNames    map[string]int64
	lastNames     map[string]int64
	prefixes      map[string]struct{}
	abbreviations map[string]int64
	vocabulary    map[string]int64
}

// IsFirstName reports whether name is a known first name. Callers pass the
// title-cased form.
func (l *Lexicons) IsFirstName(name string) bool {
	_, ok := l.firstNames[name]
	return ok
}

// IsLastName reports whether name (bare or with prefix) is a known surname.
func (l *Lexicons) IsLastName(name string) bool {
	_, ok := l.lastNames[name]
	return ok
}

// IsPrefix reports whether token is a known surname particle.
func (l *Lexicons) IsPrefix(token string) bool {
	_, ok := l.prefixes[token]
	return ok
}

// IsAbbreviation reports whether token is a frequent in-domain abbreviation.
// The lookup is exact; callers decide on case folding.
func (l *Lexicons) IsAbbreviation(token string) bool {
	_, ok := l.abbreviations[token]
	return ok
}

// InVocabulary reports whether word occurs in the general-language table.
func (l *Lexicons) InVocabulary(word string) bool {
	_, ok := l.vocabulary[word]
	return ok
}

// FirstNameFreq returns the aggregate frequency of a first name.
func (l *Lexicons) FirstNameFreq(name string) int64 {
	return l.firstNames[name]
}

// LastNameFreq returns the frequency of a surname.
func (l *Lexicons) LastNameFreq(name string) int64 {
	return l.lastNames[name]
}

// IsMonth reports whether the lowercase word is a Dutch month name or
// abbreviation.
func IsMonth(word string) bool {
	_, ok := months[word]
	return ok
}

// Stats returns statistics about the lexicon contents.
func (l *Lexicons) Stats() Stats {
	return Stats{
		FirstNames:    len(l.firstNames),
		LastNames:     len(l.lastNames),
		Prefixes:      len(l.prefixes),
		Abbreviations: len(l.abbreviations),
		Vocabulary:    len(l.vocabulary),
	}
}

// Stats holds the number of entries per reference set.
type Stats struct {
	FirstNames    int
	LastNames     int
	Prefixes      int
	Abbreviations int
	Vocabulary    int
}

// TitleCase upper-cases the first letter of every word and lower-cases the
// rest, using Dutch rules ("ijzerman" -> "IJzerman").
func TitleCase(s string) string {
	// Casers are stateful; one per call keeps TitleCase goroutine-safe.
	return cases.Title(language.Dutch).String(s)
}

// Builder accumulates lexicon entries before freezing them into Lexicons.
type Builder struct {
	firstNames    map[string]int64
	lastNames     map[string]int64
	prefixes      map[string]struct{}
	abbreviations map[string]int64
	vocabulary    map[string]int64
}

// NewBuilder creates an empty builder seeded with DefaultPrefixes.
func NewBuilder() *Builder {
	b := &Builder{
		firstNames:    make(map[string]int64),
		lastNames:     make(map[string]int64),
		prefixes:      make(map[string]struct{}),
		abbreviations: make(map[string]int64),
		vocabulary:    make(map[string]int64),
	}
	for _, p := range DefaultPrefixes {
		b.AddPrefix(p)
	}
	return b
}

// AddFirstName adds a first name; frequencies of duplicate names are summed.
func (b *Builder) AddFirstName(name string, freq int64) {
	name = TitleCase(norm.NFC.String(strings.TrimSpace(name)))
	if name == "" {
		return
	}
	b.firstNames[name] += freq
}

// AddLastName adds a surname and, when prefix is non-empty, the prefixed
// form "prefix surname". Every word of the prefix is registered as a prefix
// token. Duplicate keys keep the higher frequency.
func (b *Builder) AddLastName(name, prefix string, freq int64) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return
	}
	keepMax(b.lastNames, name, freq)

	prefix = norm.NFC.String(strings.TrimSpace(prefix))
	if prefix == "" {
		return
	}
	keepMax(b.lastNames, prefix+" "+name, freq)
	for _, p := range strings.Fields(prefix) {
		b.AddPrefix(p)
	}
}

// AddPrefix registers a surname particle (stored lowercase).
func (b *Builder) AddPrefix(prefix string) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return
	}
	b.prefixes[prefix] = struct{}{}
}

// AddAbbreviation adds an abbreviation; duplicates keep the higher frequency.
func (b *Builder) AddAbbreviation(token string, freq int64) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	keepMax(b.abbreviations, token, freq)
}

// AddVocabulary adds a general-language word; duplicates keep the higher
// frequency.
func (b *Builder) AddVocabulary(word string, freq int64) {
	word = norm.NFC.String(strings.TrimSpace(word))
	if word == "" {
		return
	}
	keepMax(b.vocabulary, word, freq)
}

// Build freezes the accumulated entries. The builder may keep being used;
// later additions do not affect the returned Lexicons.
func (b *Builder) Build() *Lexicons {
	prefixes := make(map[string]struct{}, len(b.prefixes))
	for p := range b.prefixes {
		prefixes[p] = struct{}{}
	}
	return &Lexicons{
		firstNames:    copyCounts(b.firstNames),
		lastNames:     copyCounts(b.lastNames),
		prefixes:      prefixes,
		abbreviations: copyCounts(b.abbreviations),
		vocabulary:    copyCounts(b.vocabulary),
	}
}

func keepMax(m map[string]int64, key string, freq int64) {
	if cur, ok := m[key]; !ok || freq > cur {
		m[key] = freq
	}
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
