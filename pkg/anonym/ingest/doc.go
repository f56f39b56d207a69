package ingest

import (
	"fmt"

	"github.com/cognicore/anonym/pkg/anonym/internalerr"
)

// Column layout of the transaction export:
// MINISTERIE, BOEKJAAR, NAAM LEVERANCIER, OMSCHRIJVING, BEDRAG, VALUTA, GB_DATUM, EUR_BEDRAG
const (
	DefaultDescriptionColumn = 3
	DefaultMinColumns        = 8
)

// Document is one data row. ID is the 1-based row number (the header is
// row 0); Fields holds the original column values untouched.
type Document struct {
	ID     int64
	Fields []string
}

// Validate checks that the row has at least minColumns fields.
func (d *Document) Validate(minColumns int) error {
	if len(d.Fields) < minColumns {
		return fmt.Errorf("%w: row %d has %d fields, want at least %d",
			internalerr.ErrMalformedRow, d.ID, len(d.Fields), minColumns)
	}
	return nil
}

// Field returns column col, or "" when the row is too short.
func (d *Document) Field(col int) string {
	if col < 0 || col >= len(d.Fields) {
		return ""
	}
	return d.Fields[col]
}

// Description returns the free-text description column.
func (d *Document) Description() string {
	return d.Field(DefaultDescriptionColumn)
}
