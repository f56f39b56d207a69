package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/anonym/pkg/anonym/index"
	"github.com/cognicore/anonym/pkg/anonym/ingest"
	"github.com/cognicore/anonym/pkg/anonym/internalerr"
	"github.com/cognicore/anonym/pkg/anonym/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled and creates the
// schema if needed.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	if err := dropStaleCache(ctx, db); err != nil {
		return err
	}

	schema := `
CREATE TABLE IF NOT EXISTS corpora (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL,
	max_n INTEGER NOT NULL,
	desc_col INTEGER NOT NULL,
	doc_count INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(fingerprint, max_n, desc_col)
);

CREATE TABLE IF NOT EXISTS corpus_docs (
	corpus_id INTEGER NOT NULL,
	doc_id INTEGER NOT NULL,
	fields TEXT NOT NULL,
	PRIMARY KEY(corpus_id, doc_id),
	FOREIGN KEY(corpus_id) REFERENCES corpora(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS corpus_ngrams (
	corpus_id INTEGER NOT NULL,
	ngram TEXT NOT NULL,
	count INTEGER NOT NULL,
	postings TEXT NOT NULL,
	PRIMARY KEY(corpus_id, ngram),
	FOREIGN KEY(corpus_id) REFERENCES corpora(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	started_at TEXT NOT NULL,
	docs INTEGER NOT NULL,
	docs_with_names INTEGER NOT NULL,
	names_found INTEGER NOT NULL,
	cache_hit INTEGER NOT NULL
);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// dropStaleCache removes corpus cache tables written before desc_col was
// part of the key. They only hold derived data and are rebuilt on demand.
func dropStaleCache(ctx context.Context, db *sql.DB) error {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='corpora'`).Scan(&n)
	if err != nil || n == 0 {
		return err
	}
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('corpora') WHERE name='desc_col'`).Scan(&n)
	if err != nil || n > 0 {
		return err
	}
	_, err = db.ExecContext(ctx, `
DROP TABLE IF EXISTS corpus_docs;
DROP TABLE IF EXISTS corpus_ngrams;
DROP TABLE IF EXISTS corpora;
`)
	return err
}

// LoadCorpus reads the cached aggregates for key. A corpus with the same
// fingerprint, n-gram length and column but a different document count is
// treated as a miss.
func (s *sqliteStore) LoadCorpus(ctx context.Context, key store.CorpusKey) (index.Snapshot, bool, error) {
	var (
		corpusID int64
		docCount int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, doc_count FROM corpora WHERE fingerprint=? AND max_n=? AND desc_col=?`,
		key.Fingerprint, key.MaxN, key.DescriptionColumn,
	).Scan(&corpusID, &docCount)
	if errors.Is(err, sql.ErrNoRows) {
		return index.Snapshot{}, false, nil
	}
	if err != nil {
		return index.Snapshot{}, false, err
	}
	if docCount != key.Docs {
		return index.Snapshot{}, false, nil
	}

	snap := index.Snapshot{
		Counts:   make(map[string]int64),
		Postings: make(map[string][]int64),
	}
	if snap.Docs, err = s.loadDocs(ctx, corpusID); err != nil {
		return index.Snapshot{}, false, err
	}
	if err := s.loadNGrams(ctx, corpusID, &snap); err != nil {
		return index.Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *sqliteStore) loadDocs(ctx context.Context, corpusID int64) ([]ingest.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc_id, fields FROM corpus_docs WHERE corpus_id=? ORDER BY doc_id`, corpusID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []ingest.Document
	for rows.Next() {
		var (
			d      ingest.Document
			fields string
		)
		if err := rows.Scan(&d.ID, &fields); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &d.Fields); err != nil {
			return nil, fmt.Errorf("decode doc %d: %w", d.ID, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *sqliteStore) loadNGrams(ctx context.Context, corpusID int64, snap *index.Snapshot) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ngram, count, postings FROM corpus_ngrams WHERE corpus_id=?`, corpusID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ngram    string
			count    int64
			postings string
		)
		if err := rows.Scan(&ngram, &count, &postings); err != nil {
			return err
		}
		var ids []int64
		if err := json.Unmarshal([]byte(postings), &ids); err != nil {
			return fmt.Errorf("decode postings for %q: %w", ngram, err)
		}
		snap.Counts[ngram] = count
		snap.Postings[ngram] = ids
	}
	return rows.Err()
}

// SaveCorpus replaces the cached aggregates for key in one transaction.
func (s *sqliteStore) SaveCorpus(ctx context.Context, key store.CorpusKey, snap index.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// foreign_keys is per connection, so children are removed explicitly.
	for _, q := range []string{
		`DELETE FROM corpus_docs WHERE corpus_id IN (SELECT id FROM corpora WHERE fingerprint=? AND max_n=? AND desc_col=?)`,
		`DELETE FROM corpus_ngrams WHERE corpus_id IN (SELECT id FROM corpora WHERE fingerprint=? AND max_n=? AND desc_col=?)`,
		`DELETE FROM corpora WHERE fingerprint=? AND max_n=? AND desc_col=?`,
	} {
		if _, err := tx.ExecContext(ctx, q, key.Fingerprint, key.MaxN, key.DescriptionColumn); err != nil {
			return err
		}
	}

	var corpusID int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO corpora (fingerprint, max_n, desc_col, doc_count, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id;
`,
		key.Fingerprint, key.MaxN, key.DescriptionColumn, key.Docs, time.Now().UTC().Format(time.RFC3339),
	).Scan(&corpusID)
	if err != nil {
		return err
	}

	if err := insertDocs(ctx, tx, corpusID, snap.Docs); err != nil {
		return err
	}
	if err := insertNGrams(ctx, tx, corpusID, snap); err != nil {
		return err
	}

	return tx.Commit()
}

func insertDocs(ctx context.Context, tx *sql.Tx, corpusID int64, docs []ingest.Document) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO corpus_docs (corpus_id, doc_id, fields) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, d := range docs {
		fields, err := json.Marshal(d.Fields)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, corpusID, d.ID, string(fields)); err != nil {
			return err
		}
	}
	return nil
}

func insertNGrams(ctx context.Context, tx *sql.Tx, corpusID int64, snap index.Snapshot) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO corpus_ngrams (corpus_id, ngram, count, postings) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for ngram, count := range snap.Counts {
		postings, err := json.Marshal(snap.Postings[ngram])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, corpusID, ngram, count, string(postings)); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun inserts or replaces a run record.
func (s *sqliteStore) RecordRun(ctx context.Context, run store.Run) error {
	const stmt = `
INSERT INTO runs (id, fingerprint, started_at, docs, docs_with_names, names_found, cache_hit)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	docs=excluded.docs,
	docs_with_names=excluded.docs_with_names,
	names_found=excluded.names_found,
	cache_hit=excluded.cache_hit;
`
	_, err := s.db.ExecContext(ctx, stmt,
		run.ID,
		run.Fingerprint,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.Docs,
		run.DocsWithNames,
		run.NamesFound,
		boolToInt(run.CacheHit),
	)
	return err
}

// Runs returns up to limit runs, newest first.
func (s *sqliteStore) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, fingerprint, started_at, docs, docs_with_names, names_found, cache_hit
FROM runs
ORDER BY started_at DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []store.Run
	for rows.Next() {
		var (
			r        store.Run
			started  string
			cacheHit int
		)
		if err := rows.Scan(&r.ID, &r.Fingerprint, &started, &r.Docs, &r.DocsWithNames, &r.NamesFound, &cacheHit); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, started); err == nil {
			r.StartedAt = t
		}
		r.CacheHit = cacheHit != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
