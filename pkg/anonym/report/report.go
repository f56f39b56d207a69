package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Header is the column layout of the anonymized output.
var Header = []string{"id", "description anonymized", "names (automatic)", "names (manual)"}

// Writer emits one tab-separated line per document. The fourth column is
// left empty for manual review.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteHeader writes the column names.
func (w *Writer) WriteHeader() error {
	_, err := w.w.WriteString(strings.Join(Header, "\t") + "\n")
	return err
}

// WriteResult writes one document. Spans are encoded as a JSON array;
// documents without names get an empty spans column. Tabs and newlines in
// the redacted text are replaced by spaces so the row stays on one line.
func (w *Writer) WriteResult(id int64, redacted string, spans []string) error {
	names := ""
	if len(spans) > 0 {
		b, err := json.Marshal(spans)
		if err != nil {
			return fmt.Errorf("encode spans of row %d: %w", id, err)
		}
		names = string(b)
	}

	line := strconv.FormatInt(id, 10) + "\t" + flatten(redacted) + "\t" + names + "\t\n"
	_, err := w.w.WriteString(line)
	return err
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

var flattener = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func flatten(s string) string {
	return flattener.Replace(s)
}

// Summary aggregates per-run statistics.
type Summary struct {
	Rows          int
	RowsWithNames int
	NamesFound    int
	Rejected      int
}

// Add accounts for one processed document.
func (s *Summary) Add(spans []string) {
	s.Rows++
	if len(spans) > 0 {
		s.RowsWithNames++
		s.NamesFound += len(spans)
	}
}

// Coverage returns the fraction of rows with at least one name.
func (s Summary) Coverage() float64 {
	if s.Rows == 0 {
		return 0
	}
	return float64(s.RowsWithNames) / float64(s.Rows)
}

func (s Summary) String() string {
	return fmt.Sprintf("%d rows, %d with names (%.1f%%), %d names found, %d rejected",
		s.Rows, s.RowsWithNames, 100*s.Coverage(), s.NamesFound, s.Rejected)
}
