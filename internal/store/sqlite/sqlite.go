package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mathclub/ideaboard/internal/model"
	"github.com/mathclub/ideaboard/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	hub *store.Hub
	now func() time.Time
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps in-memory databases alive and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, hub: store.NewHub(), now: time.Now}, nil
}

func (s *Store) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: documents
	`
CREATE TABLE IF NOT EXISTS documents (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_path ON documents(collection, id);
`,
	// Migration 2: collection listing in insertion order
	`CREATE INDEX IF NOT EXISTS idx_documents_collection_seq ON documents(collection, seq);`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

func (s *Store) Submit(ctx context.Context, collectionPath string, fields map[string]any) (model.Document, error) {
	if err := store.ValidateCollectionPath(collectionPath); err != nil {
		return model.Document{}, err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return model.Document{}, err
	}
	now := s.now()
	id := uuid.NewString()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO documents (collection, id, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
`, collectionPath, id, string(data), now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return model.Document{}, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return model.Document{}, err
	}
	s.hub.Publish(collectionPath)

	// Return the stored form so callers see the same types a read would give.
	var stored map[string]any
	if err := json.Unmarshal(data, &stored); err != nil {
		return model.Document{}, err
	}
	return model.Document{
		ID:        id,
		Path:      store.DocumentPath(collectionPath, id),
		Seq:       seq,
		CreatedAt: time.UnixMilli(now.UnixMilli()),
		Fields:    stored,
	}, nil
}

func (s *Store) Get(ctx context.Context, documentPath string) (model.Document, error) {
	collectionPath, id, err := store.SplitDocumentPath(documentPath)
	if err != nil {
		return model.Document{}, err
	}
	row := s.db.QueryRowContext(ctx, `
SELECT seq, collection, id, data, created_at
FROM documents
WHERE collection = ? AND id = ?
LIMIT 1
`, collectionPath, id)
	return scanDocument(row)
}

func (s *Store) List(ctx context.Context, collectionPath string) ([]model.Document, error) {
	if err := store.ValidateCollectionPath(collectionPath); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT seq, collection, id, data, created_at
FROM documents
WHERE collection = ?
ORDER BY seq ASC
`, collectionPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []model.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) Update(ctx context.Context, documentPath string, fields map[string]any) (err error) {
	collectionPath, id, err := store.SplitDocumentPath(documentPath)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND id = ?`, collectionPath, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}
	data := map[string]any{}
	if err = json.Unmarshal([]byte(raw), &data); err != nil {
		return fmt.Errorf("decode %s: %w", documentPath, err)
	}
	if err = store.MergeFields(data, fields); err != nil {
		return err
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?
`, string(encoded), s.now().UnixMilli(), collectionPath, id)
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	s.hub.Publish(collectionPath)
	return nil
}

func (s *Store) Delete(ctx context.Context, documentPath string) error {
	collectionPath, id, err := store.SplitDocumentPath(documentPath)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collectionPath, id)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return store.ErrNotFound
	}
	s.hub.Publish(collectionPath)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collectionPath string) (<-chan store.Snapshot, error) {
	if err := store.ValidateCollectionPath(collectionPath); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, collectionPath, func(ctx context.Context) ([]model.Document, error) {
		return s.List(ctx, collectionPath)
	})
}

func scanDocument(scanner interface{ Scan(dest ...any) error }) (model.Document, error) {
	var d model.Document
	var collection, raw string
	var created int64
	if err := scanner.Scan(&d.Seq, &collection, &d.ID, &raw, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Document{}, store.ErrNotFound
		}
		return model.Document{}, err
	}
	d.Fields = map[string]any{}
	if err := json.Unmarshal([]byte(raw), &d.Fields); err != nil {
		return model.Document{}, fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	d.Path = store.DocumentPath(collection, d.ID)
	d.CreatedAt = time.UnixMilli(created)
	return d, nil
}
