package anonym

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cognicore/anonym/internal/logging"
	"github.com/cognicore/anonym/pkg/anonym/ingest"
	"github.com/cognicore/anonym/pkg/anonym/internalerr"
	"github.com/cognicore/anonym/pkg/anonym/lexicon"
	"github.com/cognicore/anonym/pkg/anonym/store/memstore"
)

func testLexicons() *lexicon.Lexicons {
	b := lexicon.NewBuilder()
	b.AddFirstName("Jan", 5000)
	b.AddLastName("Vries", "de", 80000)
	b.AddLastName("Jansen", "", 70000)
	b.AddAbbreviation("BTW", 1500)
	for _, w := range []string{"betaling", "aan", "voor", "diensten", "factuur", "afdracht"} {
		b.AddVocabulary(w, 100)
	}
	return b.Build()
}

func row(id int64, desc string) ingest.Document {
	return ingest.Document{ID: id, Fields: []string{"BZK", "2020", "Leverancier", desc, "10,00", "EUR", "2020-01-01", "10,00"}}
}

func TestAnonymizeScenarios(t *testing.T) {
	docs := []ingest.Document{
		row(1, "Betaling aan J. de Vries voor diensten"),
		row(2, "DHR P. Jansen factuur 2020"),
		row(3, "BTW afdracht"),
	}

	results, err := Anonymize(context.Background(), docs, testLexicons())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int64(1), results[0].DocID)
	assert.Equal(t, []string{"J. de Vries"}, results[0].Spans)
	assert.Equal(t, "Betaling aan *** voor diensten", results[0].Redacted)

	assert.Equal(t, []string{"P. Jansen"}, results[1].Spans)
	assert.Equal(t, "DHR *** factuur 2020", results[1].Redacted)

	assert.Empty(t, results[2].Spans)
	assert.Equal(t, "BTW afdracht", results[2].Redacted)
	assert.Equal(t, "BTW afdracht", results[2].Original)
}

func TestAnonymizeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	lex := testLexicons()
	first, err := Anonymize(ctx, []ingest.Document{row(1, "Betaling aan J. de Vries voor diensten")}, lex)
	require.NoError(t, err)

	second, err := Anonymize(ctx, []ingest.Document{row(1, first[0].Redacted)}, lex)
	require.NoError(t, err)
	assert.Empty(t, second[0].Spans)
	assert.Equal(t, first[0].Redacted, second[0].Redacted)
}

func TestAnonymizeSpansAreNotNested(t *testing.T) {
	docs := []ingest.Document{
		row(1, "Jan Jansen en J. de Vries"),
		row(2, "Vries de Vries Jansen"),
		row(3, "Advies-A.W. van Engen, de Vries"),
	}
	results, err := Anonymize(context.Background(), docs, testLexicons())
	require.NoError(t, err)

	for _, r := range results {
		for _, a := range r.Spans {
			for _, b := range r.Spans {
				if a != b {
					assert.False(t, strings.Contains(b, a), "%q nested in %q", a, b)
				}
			}
		}
	}
}

func TestAnonymizeWorkersAgree(t *testing.T) {
	var docs []ingest.Document
	descs := []string{
		"Betaling aan J. de Vries voor diensten",
		"DHR P. Jansen factuur 2020",
		"BTW afdracht",
		"Jan Jansen diensten",
	}
	for i := 0; i < 40; i++ {
		docs = append(docs, row(int64(i+1), descs[i%len(descs)]))
	}

	ctx := context.Background()
	seq, err := New(Options{Lexicons: testLexicons(), Workers: 1})
	require.NoError(t, err)
	par, err := New(Options{Lexicons: testLexicons(), Workers: 4})
	require.NoError(t, err)

	a, err := seq.Anonymize(ctx, docs)
	require.NoError(t, err)
	b, err := par.Anonymize(ctx, docs)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNewRequiresLexicons(t *testing.T) {
	_, err := New(Options{})
	assert.True(t, errors.Is(err, internalerr.ErrLexiconUnavailable))
}

const export = "MINISTERIE\tBOEKJAAR\tNAAM LEVERANCIER\tOMSCHRIJVING\tBEDRAG\tVALUTA\tGB_DATUM\tEUR_BEDRAG\n" +
	"BZK\t2020\tX\tBetaling aan J. de Vries voor diensten\t1\tEUR\td\t1\n" +
	"BZK\t2020\tX\tkort\n" +
	"BZK\t2020\tX\tBTW afdracht\t2\tEUR\td\t2\n"

func TestRunUsesCacheAndRecordsRuns(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	core, logs := observer.New(zap.InfoLevel)

	e, err := New(Options{Lexicons: testLexicons(), Store: st, Logger: zap.New(core)})
	require.NoError(t, err)

	corpus, err := ingest.ReadCorpus(strings.NewReader(export), ingest.ReadOptions{})
	require.NoError(t, err)

	first, err := e.Run(ctx, corpus)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, 2, first.Summary.Rows)
	assert.Equal(t, 1, first.Summary.RowsWithNames)
	assert.Equal(t, 1, first.Summary.NamesFound)
	assert.Equal(t, 1, first.Summary.Rejected)
	assert.Len(t, first.ID, 26)

	second, err := e.Run(ctx, corpus)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Results, second.Results)
	assert.NotEqual(t, first.ID, second.ID)

	runs, err := st.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, corpus.Fingerprint, runs[0].Fingerprint)

	assert.Equal(t, 1, logs.FilterMessage("corpus index loaded from cache").Len())
	assert.Equal(t, 2, logs.FilterMessage("run complete").Len())
}

// supplierExport carries a name in the supplier column (2) only; the
// default description column (3) holds none.
const supplierExport = "MINISTERIE\tBOEKJAAR\tNAAM LEVERANCIER\tOMSCHRIJVING\tBEDRAG\tVALUTA\tGB_DATUM\tEUR_BEDRAG\n" +
	"BZK\t2020\tBetaling aan J. de Vries\tBTW afdracht\t1\tEUR\td\t1\n" +
	"BZK\t2020\tX\tkort\n"

func TestRunCacheKeyedOnDescriptionColumn(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	corpus, err := ingest.ReadCorpus(strings.NewReader(supplierExport), ingest.ReadOptions{})
	require.NoError(t, err)

	byDescription, err := New(Options{Lexicons: testLexicons(), Store: st, Logger: logging.Nop()})
	require.NoError(t, err)
	rep, err := byDescription.Run(ctx, corpus)
	require.NoError(t, err)
	assert.False(t, rep.CacheHit)
	require.Len(t, rep.Results, 1)
	assert.Empty(t, rep.Results[0].Spans)

	supplier := 2
	bySupplier, err := New(Options{Lexicons: testLexicons(), Store: st, Logger: logging.Nop(), DescriptionColumn: &supplier})
	require.NoError(t, err)
	rep, err = bySupplier.Run(ctx, corpus)
	require.NoError(t, err)
	assert.False(t, rep.CacheHit, "another column must not reuse the cached index")
	require.Len(t, rep.Results, 1)
	assert.Equal(t, []string{"J. de Vries"}, rep.Results[0].Spans)
	assert.Equal(t, "Betaling aan ***", rep.Results[0].Redacted)
}

func TestRunCacheMissesOnKeyChange(t *testing.T) {
	supplier := 2
	tests := []struct {
		name   string
		opts   Options
		reread ingest.ReadOptions
	}{
		{"description column", Options{DescriptionColumn: &supplier}, ingest.ReadOptions{}},
		{"max n-gram length", Options{Extractor: ingest.NewExtractor(2)}, ingest.ReadOptions{}},
		{"min columns", Options{}, ingest.ReadOptions{MinColumns: 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := memstore.New()

			corpus, err := ingest.ReadCorpus(strings.NewReader(supplierExport), ingest.ReadOptions{})
			require.NoError(t, err)
			first, err := New(Options{Lexicons: testLexicons(), Store: st, Logger: logging.Nop()})
			require.NoError(t, err)
			rep, err := first.Run(ctx, corpus)
			require.NoError(t, err)
			require.False(t, rep.CacheHit)

			core, logs := observer.New(zap.InfoLevel)
			opts := tt.opts
			opts.Lexicons = testLexicons()
			opts.Store = st
			opts.Logger = zap.New(core)
			second, err := New(opts)
			require.NoError(t, err)

			recorpus, err := ingest.ReadCorpus(strings.NewReader(supplierExport), tt.reread)
			require.NoError(t, err)
			assert.Equal(t, corpus.Fingerprint, recorpus.Fingerprint)

			rep, err = second.Run(ctx, recorpus)
			require.NoError(t, err)
			assert.False(t, rep.CacheHit)
			assert.Zero(t, logs.FilterMessage("corpus index loaded from cache").Len())
			assert.Equal(t, 1, logs.FilterMessage("corpus index built").Len())

			rep, err = second.Run(ctx, recorpus)
			require.NoError(t, err)
			assert.True(t, rep.CacheHit, "same settings hit on the next run")
		})
	}
}

func TestNewDescriptionColumn(t *testing.T) {
	first := 0
	e, err := New(Options{Lexicons: testLexicons(), DescriptionColumn: &first})
	require.NoError(t, err)

	docs := []ingest.Document{{ID: 1, Fields: []string{"Betaling aan J. de Vries", "BTW afdracht"}}}
	results, err := e.Anonymize(context.Background(), docs)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, []string{"J. de Vries"}, results[0].Spans)

	negative := -1
	_, err = New(Options{Lexicons: testLexicons(), DescriptionColumn: &negative})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestExplain(t *testing.T) {
	e, err := New(Options{Lexicons: testLexicons()})
	require.NoError(t, err)

	ev := e.Explain("P. Jansen")
	assert.True(t, ev.IsName())
	assert.Equal(t, 2.0, ev.Score)
}
