package index

import "github.com/cognicore/anonym/pkg/anonym/ingest"

// Snapshot is the persisted form of an Index.
type Snapshot struct {
	Counts   map[string]int64
	Postings map[string][]int64
	Docs     []ingest.Document
}

// Snapshot exports the index contents. The returned maps are copies.
func (x *Index) Snapshot() Snapshot {
	s := Snapshot{
		Counts:   make(map[string]int64, len(x.counts)),
		Postings: make(map[string][]int64, len(x.postings)),
		Docs:     x.Docs(),
	}
	for ng, n := range x.counts {
		s.Counts[ng] = n
	}
	for ng, ids := range x.postings {
		s.Postings[ng] = append([]int64(nil), ids...)
	}
	return s
}

// FromSnapshot rebuilds an index from a snapshot.
func FromSnapshot(s Snapshot) *Index {
	x := New()
	for _, d := range s.Docs {
		x.order = append(x.order, d.ID)
		x.docs[d.ID] = d
	}
	for ng, n := range s.Counts {
		x.counts[ng] = n
	}
	for ng, ids := range s.Postings {
		x.postings[ng] = append([]int64(nil), ids...)
	}
	return x
}
