package redact

import "strings"

// DefaultPlaceholder replaces every redacted name.
const DefaultPlaceholder = "***"

// Redactor substitutes name spans with a fixed placeholder.
type Redactor struct {
	placeholder string
}

// New creates a redactor; an empty placeholder falls back to
// DefaultPlaceholder.
func New(placeholder string) *Redactor {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Redactor{placeholder: placeholder}
}

// Placeholder returns the replacement string.
func (r *Redactor) Placeholder() string { return r.placeholder }

// Redact replaces every literal, case-sensitive occurrence of each span in
// text, span by span in the given order. Spans that do not occur verbatim
// leave the text unchanged.
func (r *Redactor) Redact(text string, spans []string) string {
	for _, span := range spans {
		if span == "" {
			continue
		}
		text = strings.ReplaceAll(text, span, r.placeholder)
	}
	return text
}
