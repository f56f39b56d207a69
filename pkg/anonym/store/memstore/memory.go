package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/anonym/pkg/anonym/index"
	"github.com/cognicore/anonym/pkg/anonym/ingest"
	"github.com/cognicore/anonym/pkg/anonym/store"
)

type corpusID struct {
	fingerprint string
	maxN        int
	descCol     int
}

func idOf(key store.CorpusKey) corpusID {
	return corpusID{key.Fingerprint, key.MaxN, key.DescriptionColumn}
}

type cachedCorpus struct {
	docs int
	snap index.Snapshot
}

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu      sync.RWMutex
	corpora map[corpusID]cachedCorpus
	runs    []store.Run
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{corpora: make(map[corpusID]cachedCorpus)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// LoadCorpus returns a copy of the cached snapshot for key.
func (s *Store) LoadCorpus(ctx context.Context, key store.CorpusKey) (index.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.corpora[idOf(key)]
	if !ok || c.docs != key.Docs {
		return index.Snapshot{}, false, nil
	}
	return copySnapshot(c.snap), true, nil
}

// SaveCorpus stores a copy of snap under key, replacing any previous entry.
func (s *Store) SaveCorpus(ctx context.Context, key store.CorpusKey, snap index.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.corpora[idOf(key)] = cachedCorpus{docs: key.Docs, snap: copySnapshot(snap)}
	return nil
}

// RecordRun appends a run to the history.
func (s *Store) RecordRun(ctx context.Context, run store.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, run)
	return nil
}

// Runs returns up to limit runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]store.Run(nil), s.runs...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copySnapshot(in index.Snapshot) index.Snapshot {
	out := index.Snapshot{
		Counts:   make(map[string]int64, len(in.Counts)),
		Postings: make(map[string][]int64, len(in.Postings)),
		Docs:     make([]ingest.Document, len(in.Docs)),
	}
	for k, v := range in.Counts {
		out.Counts[k] = v
	}
	for k, v := range in.Postings {
		out.Postings[k] = append([]int64(nil), v...)
	}
	for i, d := range in.Docs {
		out.Docs[i] = ingest.Document{ID: d.ID, Fields: append([]string(nil), d.Fields...)}
	}
	return out
}
