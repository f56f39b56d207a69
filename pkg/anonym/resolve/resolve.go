package resolve

import (
	"sort"
	"strings"
)

// Resolve turns the name candidates found in one text into the final span
// set: candidates are de-duplicated and ordered by first occurrence, nested
// candidates are dropped, partial overlaps are merged, and the result is
// reduced once more so that no span contains another.
func Resolve(text string, candidates []string) []string {
	terms := Order(text, candidates)
	terms = RemoveNested(terms)
	terms = MergeOverlapping(text, terms)
	return RemoveNested(terms)
}

// Order de-duplicates terms and sorts them by first offset in text, longer
// terms first at equal offsets. Terms that do not occur in text go last.
func Order(text string, terms []string) []string {
	type located struct {
		term string
		off  int
	}
	seen := make(map[string]struct{}, len(terms))
	var ls []located
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		ls = append(ls, located{term: t, off: strings.Index(text, t)})
	}

	sort.SliceStable(ls, func(i, j int) bool {
		a, b := ls[i], ls[j]
		if (a.off < 0) != (b.off < 0) {
			return b.off < 0
		}
		if a.off != b.off {
			return a.off < b.off
		}
		if len(a.term) != len(b.term) {
			return len(a.term) > len(b.term)
		}
		return a.term < b.term
	})

	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.term
	}
	return out
}

// RemoveNested drops every term that is a literal substring of another,
// distinct term. Duplicates collapse to their first occurrence.
func RemoveNested(terms []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(terms))
	for _, a := range terms {
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}

		nested := false
		for _, b := range terms {
			if a != b && strings.Contains(b, a) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, a)
		}
	}
	return out
}

// MergeOverlapping joins pairs of terms that overlap partially. For every
// pair where term1 occurs in text before term2, the longest word sequence
// of term2 that also appears inside term1 is cut from term2 and the rest is
// appended to term1 ("H. de" + "de Jong" -> "H. de Jong"). The merge is
// kept only when the joined string occurs in text. Terms taking part in a
// merge are replaced by the merged span; the others pass through.
func MergeOverlapping(text string, terms []string) []string {
	var merged []string
	consumed := make(map[string]struct{})

	for _, t1 := range terms {
		off1 := strings.Index(text, t1)
		if off1 < 0 {
			continue
		}
		for _, t2 := range terms {
			if t1 == t2 {
				continue
			}
			off2 := strings.Index(text, t2)
			if off2 < 0 || off1 >= off2 {
				continue
			}

			overlap := longestOverlap(t1, t2)
			if overlap == "" {
				continue
			}
			joined := t1 + strings.Replace(t2, overlap, "", 1)
			if !strings.Contains(text, joined) {
				continue
			}
			merged = append(merged, joined)
			consumed[t1] = struct{}{}
			consumed[t2] = struct{}{}
		}
	}

	out := merged
	for _, t := range terms {
		if _, ok := consumed[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}

// longestOverlap returns the longest run of consecutive words of t2 that is
// a substring of t1. Ties keep the first run found.
func longestOverlap(t1, t2 string) string {
	words := strings.Split(t2, " ")
	longest := ""
	for i := 0; i < len(words); i++ {
		for j := i + 1; j <= len(words); j++ {
			sub := strings.Join(words[i:j], " ")
			if len(sub) > len(longest) && strings.Contains(t1, sub) {
				longest = sub
			}
		}
	}
	return longest
}
