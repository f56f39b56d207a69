package store

import (
	"context"
	"time"

	"github.com/cognicore/anonym/pkg/anonym/index"
)

// Store persists corpus aggregates between runs and keeps a run history.
// The corpus cache only saves work: a miss always falls back to rebuilding
// the index from the input.
type Store interface {
	Close() error

	// Corpus cache
	LoadCorpus(ctx context.Context, key CorpusKey) (index.Snapshot, bool, error)
	SaveCorpus(ctx context.Context, key CorpusKey, snap index.Snapshot) error

	// Run history
	RecordRun(ctx context.Context, run Run) error
	Runs(ctx context.Context, limit int) ([]Run, error)
}

// CorpusKey identifies a cached corpus. Fingerprint is a content hash of
// the input; Docs, MaxN and DescriptionColumn must match as well for a hit,
// since each of them changes the indexed n-grams.
type CorpusKey struct {
	Fingerprint       string
	Docs              int
	MaxN              int
	DescriptionColumn int
}

// Run records the outcome of one anonymization run.
type Run struct {
	ID            string // ULID
	Fingerprint   string
	StartedAt     time.Time
	Docs          int
	DocsWithNames int
	NamesFound    int
	CacheHit      bool
}
