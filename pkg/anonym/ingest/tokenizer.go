package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// diacritics lists the accented letters that survive tokenization next to
// ASCII letters and digits.
const diacritics = "èéêëėęûüùúūôöòóõœøîïíīįìàáâäæãåçćč" +
	"ÇĆČÉÈÊËĒĘÛÜÙÚŪÔÖÒÓŒØŌÕÎÏÍĪĮÌ"

// symbols are kept because names and initials need them ("A.W.", "'t",
// "Advies-").
const symbols = "&@#/()',.-"

// Tokenizer splits a free-text field into tokens. Unlike search tokenizers
// it keeps case and punctuation: both are evidence for name scoring.
type Tokenizer struct {
	allowed map[rune]struct{}
}

// NewTokenizer creates a tokenizer with the default character allow-list.
func NewTokenizer() *Tokenizer {
	allowed := make(map[rune]struct{}, utf8.RuneCountInString(diacritics)+len(symbols))
	for _, r := range diacritics + symbols {
		allowed[r] = struct{}{}
	}
	return &Tokenizer{allowed: allowed}
}

// Tokenize applies, in order: newlines to spaces, markup removal, a space
// after every period and hyphen ("H.Jansen" -> "H. Jansen"), removal of
// characters outside the allow-list, and a split on spaces.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = stripMarkup(text)
	text = strings.ReplaceAll(text, ".", ". ")
	text = strings.ReplaceAll(text, "-", "- ")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if t.keep(r) {
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}

func (t *Tokenizer) keep(r rune) bool {
	switch {
	case r == ' ':
		return true
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	_, ok := t.allowed[r]
	return ok
}

// stripMarkup drops closed tags and comments and keeps text bytes as
// written; entities are not decoded. A tag or comment left open at the end
// of s is not markup and is kept as text.
func stripMarkup(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	n := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// Tokens tile the input, so anything past n was an open tag.
			if n < len(s) {
				b.WriteString(s[n:])
			}
			return b.String()
		}
		raw := z.Raw()
		n += len(raw)
		switch tt {
		case html.TextToken:
			b.Write(raw)
		case html.CommentToken, html.DoctypeToken:
			if !bytes.HasSuffix(raw, []byte(">")) {
				b.Write(raw)
			}
		}
	}
}
