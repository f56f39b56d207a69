package anonym

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/anonym/internal/logging"
	"github.com/cognicore/anonym/pkg/anonym/index"
	"github.com/cognicore/anonym/pkg/anonym/ingest"
	"github.com/cognicore/anonym/pkg/anonym/internalerr"
	"github.com/cognicore/anonym/pkg/anonym/lexicon"
	"github.com/cognicore/anonym/pkg/anonym/redact"
	"github.com/cognicore/anonym/pkg/anonym/report"
	"github.com/cognicore/anonym/pkg/anonym/resolve"
	"github.com/cognicore/anonym/pkg/anonym/score"
	"github.com/cognicore/anonym/pkg/anonym/store"
)

// Engine detects and redacts person names in a corpus of transaction rows.
type Engine struct {
	tokenizer *ingest.Tokenizer
	extractor *ingest.Extractor
	scorer    *score.Scorer
	redactor  *redact.Redactor
	store     store.Store
	log       *zap.Logger

	workers       int
	descCol       int
	progressEvery int

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Options configures an Engine. Only Lexicons (or Scorer) is required; the
// remaining components fall back to their defaults.
type Options struct {
	Lexicons  *lexicon.Lexicons
	Tokenizer *ingest.Tokenizer
	Extractor *ingest.Extractor
	Scorer    *score.Scorer
	Redactor  *redact.Redactor

	// Store caches corpus aggregates and records runs. Optional.
	Store  store.Store
	Logger *zap.Logger

	Workers       int // 0 means GOMAXPROCS
	ProgressEvery int // 0 disables progress logging

	// DescriptionColumn selects the field holding the free text. Nil means
	// ingest.DefaultDescriptionColumn.
	DescriptionColumn *int
}

// Result is the outcome for one document.
type Result struct {
	DocID    int64
	Original string
	Redacted string
	Spans    []string
}

// RunReport describes one call to Run.
type RunReport struct {
	ID       string
	CacheHit bool
	Summary  report.Summary
	Results  []Result
}

// New creates an Engine with the given dependencies
func New(opts Options) (*Engine, error) {
	if opts.Scorer == nil {
		if opts.Lexicons == nil {
			return nil, fmt.Errorf("%w: no lexicons given", internalerr.ErrLexiconUnavailable)
		}
		opts.Scorer = score.New(opts.Lexicons)
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = ingest.NewTokenizer()
	}
	if opts.Extractor == nil {
		opts.Extractor = ingest.NewExtractor(ingest.DefaultMaxN)
	}
	if opts.Redactor == nil {
		opts.Redactor = redact.New("")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	descCol := ingest.DefaultDescriptionColumn
	if opts.DescriptionColumn != nil {
		if *opts.DescriptionColumn < 0 {
			return nil, fmt.Errorf("%w: description column %d", internalerr.ErrInvalidConfig, *opts.DescriptionColumn)
		}
		descCol = *opts.DescriptionColumn
	}

	return &Engine{
		tokenizer:     opts.Tokenizer,
		extractor:     opts.Extractor,
		scorer:        opts.Scorer,
		redactor:      opts.Redactor,
		store:         opts.Store,
		log:           opts.Logger,
		workers:       opts.Workers,
		descCol:       descCol,
		progressEvery: opts.ProgressEvery,
		entropy:       ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close releases the store, if any.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Anonymize detects names across docs and returns one Result per document
// in input order. Corpus statistics are always built from docs themselves;
// the cache is not consulted.
func (e *Engine) Anonymize(ctx context.Context, docs []ingest.Document) ([]Result, error) {
	idx, err := index.Build(ctx, docs, e.extract, e.workers)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return e.detect(ctx, idx)
}

// Run anonymizes a corpus read by ingest.ReadCorpus. The corpus index is
// loaded from the store when its fingerprint matches, otherwise built and
// saved. The run is recorded in the store's history.
func (e *Engine) Run(ctx context.Context, corpus *ingest.Corpus) (*RunReport, error) {
	rep := &RunReport{ID: e.newID()}
	started := time.Now()
	log := e.log.With(zap.String("run", rep.ID))

	idx, hit, err := e.BuildIndex(ctx, corpus.Docs, corpus.Fingerprint)
	if err != nil {
		return nil, err
	}
	rep.CacheHit = hit

	results, err := e.detect(ctx, idx)
	if err != nil {
		return nil, err
	}
	rep.Results = results
	for _, r := range results {
		rep.Summary.Add(r.Spans)
	}
	rep.Summary.Rejected = len(corpus.Rejected)

	log.Info("run complete",
		zap.Int("rows", rep.Summary.Rows),
		zap.Int("rows_with_names", rep.Summary.RowsWithNames),
		zap.Int("names_found", rep.Summary.NamesFound),
		zap.Int("rejected", rep.Summary.Rejected),
		zap.Bool("cache_hit", hit),
		zap.Duration("took", time.Since(started)),
	)

	if e.store != nil {
		run := store.Run{
			ID:            rep.ID,
			Fingerprint:   corpus.Fingerprint,
			StartedAt:     started,
			Docs:          rep.Summary.Rows,
			DocsWithNames: rep.Summary.RowsWithNames,
			NamesFound:    rep.Summary.NamesFound,
			CacheHit:      hit,
		}
		if err := e.store.RecordRun(ctx, run); err != nil {
			log.Warn("record run failed", zap.Error(err))
		}
	}
	return rep, nil
}

// BuildIndex returns the corpus index for docs, reusing a cached one when
// the store holds an entry for the same fingerprint, row count, n-gram
// length and description column. Store failures are logged and fall back
// to a fresh build.
func (e *Engine) BuildIndex(ctx context.Context, docs []ingest.Document, fingerprint string) (*index.Index, bool, error) {
	key := store.CorpusKey{
		Fingerprint:       fingerprint,
		Docs:              len(docs),
		MaxN:              e.extractor.MaxN(),
		DescriptionColumn: e.descCol,
	}
	useCache := e.store != nil && fingerprint != ""

	if useCache {
		snap, ok, err := e.store.LoadCorpus(ctx, key)
		switch {
		case err != nil:
			e.log.Warn("corpus cache unavailable", zap.Error(err))
		case ok:
			idx := index.FromSnapshot(snap)
			e.log.Info("corpus index loaded from cache",
				zap.Int("docs", idx.NumDocs()),
				zap.Int("ngrams", idx.UniqueNGrams()))
			return idx, true, nil
		}
	}

	idx, err := index.Build(ctx, docs, e.extract, e.workers)
	if err != nil {
		return nil, false, fmt.Errorf("build index: %w", err)
	}
	e.log.Info("corpus index built",
		zap.Int("docs", idx.NumDocs()),
		zap.Int("ngrams", idx.UniqueNGrams()))

	if useCache {
		if err := e.store.SaveCorpus(ctx, key, idx.Snapshot()); err != nil {
			e.log.Warn("save corpus cache failed", zap.Error(err))
		}
	}
	return idx, false, nil
}

func (e *Engine) extract(doc ingest.Document) map[string]int {
	return e.extractor.Extract(e.tokenizer.Tokenize(doc.Field(e.descCol)))
}

// detect scores every distinct n-gram once, hands each document the
// qualifying n-grams it contains and resolves them into redaction spans.
func (e *Engine) detect(ctx context.Context, idx *index.Index) ([]Result, error) {
	ngrams := idx.NGrams()
	names, err := e.scorer.ScoreAll(ctx, ngrams, e.workers)
	if err != nil {
		return nil, fmt.Errorf("score n-grams: %w", err)
	}
	e.log.Info("n-grams scored", zap.Int("ngrams", len(ngrams)), zap.Int("names", len(names)))

	candidates := make(map[int64][]string)
	for _, ng := range ngrams {
		if _, ok := names[ng]; !ok {
			continue
		}
		for _, id := range idx.Postings(ng) {
			candidates[id] = append(candidates[id], ng)
		}
	}

	docs := idx.Docs()
	results := make([]Result, 0, len(docs))
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := d.Field(e.descCol)
		spans := resolve.Resolve(text, candidates[d.ID])
		results = append(results, Result{
			DocID:    d.ID,
			Original: text,
			Redacted: e.redactor.Redact(text, spans),
			Spans:    spans,
		})
		if e.progressEvery > 0 && (i+1)%e.progressEvery == 0 {
			e.log.Debug("resolving", zap.Int("done", i+1), zap.Int("total", len(docs)))
		}
	}
	e.log.Info("documents resolved", zap.Int("docs", len(results)))
	return results, nil
}

// Explain returns the scoring evidence for a single n-gram.
func (e *Engine) Explain(ngram string) score.Evidence {
	return e.scorer.Score(ngram)
}

func (e *Engine) newID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Now(), e.entropy).String()
}

// Anonymize runs detection over docs with default components.
func Anonymize(ctx context.Context, docs []ingest.Document, lex *lexicon.Lexicons) ([]Result, error) {
	e, err := New(Options{Lexicons: lex})
	if err != nil {
		return nil, err
	}
	return e.Anonymize(ctx, docs)
}
