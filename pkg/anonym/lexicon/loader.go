package lexicon

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/cognicore/anonym/pkg/anonym/internalerr"
)

// DefaultMinAbbreviationFreq is the corpus frequency an all-caps token needs
// before it is trusted as an abbreviation rather than someone's initials.
const DefaultMinAbbreviationFreq = 50

var genderMarker = regexp.MustCompile(` \([MV]\)`)

// LoadStats counts accepted and skipped rows of one lexicon source.
type LoadStats struct {
	Loaded  int
	Skipped int
}

// Sources names the four lexicon files plus loading options.
type Sources struct {
	FirstNames    string
	LastNames     string
	Abbreviations string
	Vocabulary    string

	// VocabularyEncoding is "utf-8" (default), "latin1" or "windows-1252".
	VocabularyEncoding  string
	ExtraPrefixes       []string
	MinAbbreviationFreq int64
}

// Report holds per-source load statistics.
type Report struct {
	FirstNames    LoadStats
	LastNames     LoadStats
	Abbreviations LoadStats
	Vocabulary    LoadStats
}

// Load reads every source file and returns the frozen lexicons. Any file
// that cannot be opened or read aborts the load.
func Load(src Sources) (*Lexicons, Report, error) {
	var rep Report
	b := NewBuilder()
	for _, p := range src.ExtraPrefixes {
		b.AddPrefix(p)
	}

	minFreq := src.MinAbbreviationFreq
	if minFreq <= 0 {
		minFreq = DefaultMinAbbreviationFreq
	}

	steps := []struct {
		name string
		path string
		enc  string
		read func(io.Reader) (LoadStats, error)
		out  *LoadStats
	}{
		{"first names", src.FirstNames, "", b.ReadFirstNames, &rep.FirstNames},
		{"last names", src.LastNames, "", b.ReadLastNamesXML, &rep.LastNames},
		{"abbreviations", src.Abbreviations, "", func(r io.Reader) (LoadStats, error) {
			return b.ReadAbbreviations(r, minFreq)
		}, &rep.Abbreviations},
		{"vocabulary", src.Vocabulary, src.VocabularyEncoding, b.ReadVocabulary, &rep.Vocabulary},
	}

	for _, s := range steps {
		st, err := readFile(s.path, s.enc, s.read)
		if err != nil {
			return nil, rep, fmt.Errorf("load %s: %w", s.name, err)
		}
		*s.out = st
	}

	return b.Build(), rep, nil
}

func readFile(path, encoding string, read func(io.Reader) (LoadStats, error)) (LoadStats, error) {
	if path == "" {
		return LoadStats{}, fmt.Errorf("%w: no path configured", internalerr.ErrLexiconUnavailable)
	}
	f, err := os.Open(path)
	if err != nil {
		return LoadStats{}, fmt.Errorf("%w: %v", internalerr.ErrLexiconUnavailable, err)
	}
	defer f.Close()

	r, err := decodeReader(f, encoding)
	if err != nil {
		return LoadStats{}, err
	}
	return read(r)
}

func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin1", "latin-1", "iso-8859-1":
		return charmap.ISO8859_1.NewDecoder().Reader(r), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder().Reader(r), nil
	default:
		return nil, fmt.Errorf("%w: unsupported encoding %q", internalerr.ErrInvalidConfig, encoding)
	}
}

// ReadFirstNames parses tab-separated rows "name ... frequency". A trailing
// gender marker such as " (M)" is stripped from the name; names listed once
// per gender have their frequencies summed.
func (b *Builder) ReadFirstNames(r io.Reader) (LoadStats, error) {
	var st LoadStats
	err := scanLines(r, func(line string) {
		cols := strings.Split(strings.TrimRight(line, " \t\r"), "\t")
		name := genderMarker.ReplaceAllString(cols[0], "")
		freq, err := strconv.ParseInt(strings.TrimSpace(cols[len(cols)-1]), 10, 64)
		if err != nil || strings.TrimSpace(name) == "" {
			st.Skipped++
			return
		}
		b.AddFirstName(name, freq)
		st.Loaded++
	})
	return st, err
}

type surnameRecord struct {
	Name   *string `xml:"naam"`
	Prefix *string `xml:"prefix"`
	Freq   *string `xml:"n2007"`
}

// ReadLastNamesXML parses <record> elements carrying <naam>, an optional
// <prefix> and the frequency in <n2007>. Records without a name or a
// numeric frequency are skipped.
func (b *Builder) ReadLastNamesXML(r io.Reader) (LoadStats, error) {
	var st LoadStats
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return st, nil
		}
		if err != nil {
			return st, fmt.Errorf("parse last names: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}

		var rec surnameRecord
		if err := dec.DecodeElement(&rec, &start); err != nil {
			return st, fmt.Errorf("parse last names: %w", err)
		}
		if rec.Name == nil || strings.TrimSpace(*rec.Name) == "" || rec.Freq == nil {
			st.Skipped++
			continue
		}
		freq, err := strconv.ParseInt(strings.TrimSpace(*rec.Freq), 10, 64)
		if err != nil {
			st.Skipped++
			continue
		}
		prefix := ""
		if rec.Prefix != nil {
			prefix = *rec.Prefix
		}
		b.AddLastName(*rec.Name, prefix, freq)
		st.Loaded++
	}
}

// ReadAbbreviations parses tab-separated rows "token ... frequency" and keeps
// tokens whose frequency reaches minFreq.
func (b *Builder) ReadAbbreviations(r io.Reader, minFreq int64) (LoadStats, error) {
	var st LoadStats
	err := scanLines(r, func(line string) {
		cols := strings.Split(strings.TrimRight(line, " \t\r"), "\t")
		freq, err := strconv.ParseInt(strings.TrimSpace(cols[len(cols)-1]), 10, 64)
		if err != nil || len(cols) < 2 {
			st.Skipped++
			return
		}
		if freq < minFreq {
			return
		}
		b.AddAbbreviation(cols[0], freq)
		st.Loaded++
	})
	return st, err
}

// ReadVocabulary parses a CELEX-style word-form frequency list: fields are
// separated by backslashes (or pipes), the word is in column 1 and its
// frequency in column 5. The highest frequency per word wins.
func (b *Builder) ReadVocabulary(r io.Reader) (LoadStats, error) {
	var st LoadStats
	err := scanLines(r, func(line string) {
		sep := "\\"
		if !strings.Contains(line, sep) {
			sep = "|"
		}
		cols := strings.Split(strings.TrimRight(line, " \r"), sep)
		if len(cols) < 6 {
			st.Skipped++
			return
		}
		freq, err := strconv.ParseInt(strings.TrimSpace(cols[5]), 10, 64)
		if err != nil || cols[1] == "" {
			st.Skipped++
			return
		}
		b.AddVocabulary(cols[1], freq)
		st.Loaded++
	})
	return st, err
}

func scanLines(r io.Reader, fn func(line string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(line)
	}
	return sc.Err()
}
