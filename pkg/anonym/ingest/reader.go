package ingest

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadOptions controls how a tab-separated export is read.
type ReadOptions struct {
	MinColumns int
	MaxRows    int // data rows; 0 reads everything
}

// Corpus is the ordered document store of one input file.
type Corpus struct {
	Header      []string
	Docs        []Document
	Rejected    []int64 // ids of rows with too few columns
	Fingerprint string  // sha256 over every line read, header included
}

// ReadCorpus reads a tab-separated export. The first line is the header;
// every following line becomes a Document whose id equals its line number,
// so rejected rows leave a gap rather than shifting later ids.
func ReadCorpus(r io.Reader, opts ReadOptions) (*Corpus, error) {
	if opts.MinColumns <= 0 {
		opts.MinColumns = DefaultMinColumns
	}

	c := &Corpus{}
	h := sha256.New()
	br := bufio.NewReader(r)

	var id int64
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			if opts.MaxRows > 0 && id > int64(opts.MaxRows) {
				break
			}
			h.Write([]byte(line))
			c.add(id, strings.Split(strings.TrimRight(line, "\r\n"), "\t"), opts.MinColumns)
			id++
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read corpus: %w", err)
		}
	}

	c.Fingerprint = hex.EncodeToString(h.Sum(nil))
	return c, nil
}

func (c *Corpus) add(id int64, fields []string, minColumns int) {
	if id == 0 {
		c.Header = fields
		return
	}
	doc := Document{ID: id, Fields: fields}
	if err := doc.Validate(minColumns); err != nil {
		c.Rejected = append(c.Rejected, id)
		return
	}
	c.Docs = append(c.Docs, doc)
}
