package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/anonym/pkg/anonym/ingest"
)

func docs(texts ...string) []ingest.Document {
	out := make([]ingest.Document, len(texts))
	for i, t := range texts {
		out[i] = ingest.Document{ID: int64(i + 1), Fields: []string{"", "", "", t, "", "", "", ""}}
	}
	return out
}

func extractor() ExtractFunc {
	tok := ingest.NewTokenizer()
	ex := ingest.NewExtractor(ingest.DefaultMaxN)
	return func(d ingest.Document) map[string]int {
		return ex.Extract(tok.Tokenize(d.Description()))
	}
}

func TestIndexAdd(t *testing.T) {
	x := New()
	x.Add(ingest.Document{ID: 1}, map[string]int{"Jan": 2, "de Vries": 1})
	x.Add(ingest.Document{ID: 2}, map[string]int{"Jan": 1})

	assert.Equal(t, int64(3), x.Count("Jan"))
	assert.Equal(t, []int64{1, 2}, x.Postings("Jan"))
	assert.Equal(t, []int64{1}, x.Postings("de Vries"))
	assert.Equal(t, []string{"Jan", "de Vries"}, x.NGrams())
	assert.Equal(t, 2, x.NumDocs())
	assert.Equal(t, 2, x.UniqueNGrams())
}

func TestBuildParallelMatchesSequential(t *testing.T) {
	var texts []string
	for i := 0; i < 37; i++ {
		texts = append(texts, fmt.Sprintf("Betaling aan J. de Vries factuur %d", i))
		texts = append(texts, "Declaratie P. Jansen")
	}
	corpus := docs(texts...)

	seq, err := Build(context.Background(), corpus, extractor(), 1)
	require.NoError(t, err)
	par, err := Build(context.Background(), corpus, extractor(), 8)
	require.NoError(t, err)

	assert.Equal(t, seq.Snapshot(), par.Snapshot())
	assert.Equal(t, int64(37), par.Count("J. de Vries"))
	assert.Len(t, par.Postings("P. Jansen"), 37)

	ids := par.Postings("Declaratie")
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i], "postings sorted")
	}
}

func TestBuildMoreWorkersThanDocs(t *testing.T) {
	x, err := Build(context.Background(), docs("Jan", "Piet", "Klaas", "Henk", "Anna"), extractor(), 4)
	require.NoError(t, err)
	assert.Equal(t, 5, x.NumDocs())
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, docs("Jan de Vries"), extractor(), 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSnapshotRoundTrip(t *testing.T) {
	x, err := Build(context.Background(), docs("J. de Vries", "P. Jansen"), extractor(), 2)
	require.NoError(t, err)

	y := FromSnapshot(x.Snapshot())
	assert.Equal(t, x.Snapshot(), y.Snapshot())

	d, ok := y.Doc(2)
	require.True(t, ok)
	assert.Equal(t, "P. Jansen", d.Description())
}
