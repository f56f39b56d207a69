package index

import (
	"context"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/anonym/pkg/anonym/ingest"
)

// Index aggregates n-gram statistics over a corpus:
// - counts: total occurrences of each n-gram across all documents
// - postings: ids of the documents containing each n-gram (ascending)
// - docs: the original rows keyed by id
type Index struct {
	counts   map[string]int64
	postings map[string][]int64
	docs     map[int64]ingest.Document
	order    []int64
}

// New creates an empty index.
func New() *Index {
	return &Index{
		counts:   make(map[string]int64),
		postings: make(map[string][]int64),
		docs:     make(map[int64]ingest.Document),
	}
}

// Add records one document and its per-document n-gram counts. Documents
// must be added in ascending id order for postings to stay sorted.
func (x *Index) Add(doc ingest.Document, ngrams map[string]int) {
	if _, seen := x.docs[doc.ID]; !seen {
		x.order = append(x.order, doc.ID)
	}
	x.docs[doc.ID] = doc
	for ng, n := range ngrams {
		x.counts[ng] += int64(n)
		x.postings[ng] = append(x.postings[ng], doc.ID)
	}
}

// Merge folds other into x. Merging partitions in corpus order keeps
// postings sorted.
func (x *Index) Merge(other *Index) {
	for _, id := range other.order {
		if _, seen := x.docs[id]; !seen {
			x.order = append(x.order, id)
		}
		x.docs[id] = other.docs[id]
	}
	for ng, n := range other.counts {
		x.counts[ng] += n
	}
	for ng, ids := range other.postings {
		x.postings[ng] = append(x.postings[ng], ids...)
	}
}

// Count returns the corpus-wide occurrence count of an n-gram.
func (x *Index) Count(ngram string) int64 {
	return x.counts[ngram]
}

// Postings returns the ids of documents containing ngram.
func (x *Index) Postings(ngram string) []int64 {
	return x.postings[ngram]
}

// NGrams returns every distinct n-gram in lexical order.
func (x *Index) NGrams() []string {
	out := make([]string, 0, len(x.counts))
	for ng := range x.counts {
		out = append(out, ng)
	}
	sort.Strings(out)
	return out
}

// Doc returns the stored row for id.
func (x *Index) Doc(id int64) (ingest.Document, bool) {
	d, ok := x.docs[id]
	return d, ok
}

// Docs returns the stored rows in ingestion order.
func (x *Index) Docs() []ingest.Document {
	out := make([]ingest.Document, 0, len(x.order))
	for _, id := range x.order {
		out = append(out, x.docs[id])
	}
	return out
}

// NumDocs returns the number of stored documents.
func (x *Index) NumDocs() int { return len(x.order) }

// UniqueNGrams returns the number of distinct n-grams.
func (x *Index) UniqueNGrams() int { return len(x.counts) }

// ExtractFunc turns one document into its n-gram counts.
type ExtractFunc func(doc ingest.Document) map[string]int

// Build indexes docs using up to workers goroutines (0 means GOMAXPROCS).
// Each worker fills a private partial index over a contiguous slice of
// docs; the partials are merged in corpus order once all have finished.
func Build(ctx context.Context, docs []ingest.Document, extract ExtractFunc, workers int) (*Index, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(docs) {
		workers = len(docs)
	}
	if workers <= 1 {
		x := New()
		for _, d := range docs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			x.Add(d, extract(d))
		}
		return x, nil
	}

	parts := make([]*Index, workers)
	chunk := (len(docs) + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := min(w*chunk, len(docs))
		hi := min(lo+chunk, len(docs))
		w := w
		g.Go(func() error {
			part := New()
			for _, d := range docs[lo:hi] {
				if err := gctx.Err(); err != nil {
					return err
				}
				part.Add(d, extract(d))
			}
			parts[w] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	x := New()
	for _, p := range parts {
		x.Merge(p)
	}
	return x, nil
}
