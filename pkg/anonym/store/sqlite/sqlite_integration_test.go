package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cognicore/anonym/pkg/anonym/index"
	"github.com/cognicore/anonym/pkg/anonym/ingest"
	"github.com/cognicore/anonym/pkg/anonym/internalerr"
	"github.com/cognicore/anonym/pkg/anonym/store"
)

func openTemp(t *testing.T) (store.Store, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	st, err := OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st, dbPath
}

func TestSQLiteCorpusRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)

	key := store.CorpusKey{Fingerprint: "f00d", Docs: 2, MaxN: 5}
	snap := index.Snapshot{
		Counts:   map[string]int64{"de Vries": 2, "Betaling": 2},
		Postings: map[string][]int64{"de Vries": {1, 2}, "Betaling": {1, 2}},
		Docs: []ingest.Document{
			{ID: 1, Fields: []string{"BZK", "2020", "x", "Betaling J. de Vries", "1", "EUR", "d", "1"}},
			{ID: 2, Fields: []string{"BZK", "2020", "x", "Betaling de Vries", "2", "EUR", "d", "2"}},
		},
	}

	if _, ok, err := st.LoadCorpus(ctx, key); err != nil || ok {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
	if err := st.SaveCorpus(ctx, key, snap); err != nil {
		t.Fatalf("SaveCorpus: %v", err)
	}

	got, ok, err := st.LoadCorpus(ctx, key)
	if err != nil || !ok {
		t.Fatalf("LoadCorpus: ok=%v err=%v", ok, err)
	}
	if got.Counts["de Vries"] != 2 {
		t.Errorf("count: got %d, want 2", got.Counts["de Vries"])
	}
	if ids := got.Postings["Betaling"]; len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("postings: got %v", ids)
	}
	if len(got.Docs) != 2 || got.Docs[1].Fields[3] != "Betaling de Vries" {
		t.Errorf("docs: got %+v", got.Docs)
	}

	// A different doc count is a miss.
	if _, ok, _ := st.LoadCorpus(ctx, store.CorpusKey{Fingerprint: "f00d", Docs: 3, MaxN: 5}); ok {
		t.Error("doc count mismatch should miss")
	}
}

func TestSQLiteCorpusKeyedOnColumnAndMaxN(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)

	key := store.CorpusKey{Fingerprint: "f00d", Docs: 1, MaxN: 5, DescriptionColumn: 3}
	snap := index.Snapshot{Counts: map[string]int64{"BTW": 1}, Postings: map[string][]int64{"BTW": {1}}}
	if err := st.SaveCorpus(ctx, key, snap); err != nil {
		t.Fatalf("SaveCorpus: %v", err)
	}

	for _, k := range []store.CorpusKey{
		{Fingerprint: "f00d", Docs: 1, MaxN: 5, DescriptionColumn: 2},
		{Fingerprint: "f00d", Docs: 1, MaxN: 4, DescriptionColumn: 3},
	} {
		if _, ok, err := st.LoadCorpus(ctx, k); err != nil || ok {
			t.Errorf("expected miss for %+v, ok=%v err=%v", k, ok, err)
		}
	}

	// Both columns can be cached side by side.
	other := key
	other.DescriptionColumn = 2
	if err := st.SaveCorpus(ctx, other, index.Snapshot{Counts: map[string]int64{"Vries": 1}, Postings: map[string][]int64{"Vries": {1}}}); err != nil {
		t.Fatalf("SaveCorpus other column: %v", err)
	}
	got, ok, err := st.LoadCorpus(ctx, key)
	if err != nil || !ok {
		t.Fatalf("LoadCorpus: ok=%v err=%v", ok, err)
	}
	if got.Counts["BTW"] != 1 || got.Counts["Vries"] != 0 {
		t.Errorf("column 3 entry overwritten: %v", got.Counts)
	}
}

func TestOpenSQLiteDropsCacheWithoutColumnKey(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	_, err = db.ExecContext(ctx, `
CREATE TABLE corpora (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL,
	max_n INTEGER NOT NULL,
	doc_count INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(fingerprint, max_n)
);
INSERT INTO corpora (fingerprint, max_n, doc_count, created_at) VALUES ('f00d', 5, 1, '2024-01-01T00:00:00Z');
`)
	db.Close()
	if err != nil {
		t.Fatalf("create old schema: %v", err)
	}

	st, err := OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite over old schema: %v", err)
	}
	defer st.Close()

	key := store.CorpusKey{Fingerprint: "f00d", Docs: 1, MaxN: 5, DescriptionColumn: 3}
	if _, ok, err := st.LoadCorpus(ctx, key); err != nil || ok {
		t.Fatalf("expected clean miss after upgrade, ok=%v err=%v", ok, err)
	}
	if err := st.SaveCorpus(ctx, key, index.Snapshot{Counts: map[string]int64{}, Postings: map[string][]int64{}}); err != nil {
		t.Fatalf("SaveCorpus after upgrade: %v", err)
	}
	if _, ok, err := st.LoadCorpus(ctx, key); err != nil || !ok {
		t.Fatalf("expected hit after save, ok=%v err=%v", ok, err)
	}
}

func TestSQLiteSaveReplaces(t *testing.T) {
	ctx := context.Background()
	st, _ := openTemp(t)
	key := store.CorpusKey{Fingerprint: "f00d", Docs: 1, MaxN: 5}

	first := index.Snapshot{Counts: map[string]int64{"Jansen": 1}, Postings: map[string][]int64{"Jansen": {1}}}
	second := index.Snapshot{Counts: map[string]int64{"Pietersen": 4}, Postings: map[string][]int64{"Pietersen": {1}}}
	if err := st.SaveCorpus(ctx, key, first); err != nil {
		t.Fatalf("SaveCorpus: %v", err)
	}
	if err := st.SaveCorpus(ctx, key, second); err != nil {
		t.Fatalf("SaveCorpus again: %v", err)
	}

	got, ok, err := st.LoadCorpus(ctx, key)
	if err != nil || !ok {
		t.Fatalf("LoadCorpus: ok=%v err=%v", ok, err)
	}
	if _, stale := got.Counts["Jansen"]; stale {
		t.Error("old n-grams survived replacement")
	}
	if got.Counts["Pietersen"] != 4 {
		t.Errorf("count: got %d, want 4", got.Counts["Pietersen"])
	}
}

func TestSQLiteRunsPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	st, path := openTemp(t)

	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	runs := []store.Run{
		{ID: "01A", Fingerprint: "f", StartedAt: base, Docs: 10, DocsWithNames: 3, NamesFound: 4},
		{ID: "01B", Fingerprint: "f", StartedAt: base.Add(time.Hour), Docs: 10, DocsWithNames: 3, NamesFound: 4, CacheHit: true},
	}
	for _, r := range runs {
		if err := st.RecordRun(ctx, r); err != nil {
			t.Fatalf("RecordRun: %v", err)
		}
	}
	st.Close()

	reopened, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(got))
	}
	if got[0].ID != "01B" || !got[0].CacheHit {
		t.Errorf("newest run first: got %+v", got[0])
	}
	if !got[1].StartedAt.Equal(base) || got[1].NamesFound != 4 {
		t.Errorf("run fields not preserved: %+v", got[1])
	}
}

func TestOpenSQLiteUnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "cache.db")
	_, err := OpenSQLite(context.Background(), path)
	if !errors.Is(err, internalerr.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
