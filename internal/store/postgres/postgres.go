// Package postgres stores board documents as JSONB rows and turns
// LISTEN/NOTIFY into live query updates, so several server processes can
// share one database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathclub/ideaboard/internal/model"
	"github.com/mathclub/ideaboard/internal/store"
)

const channel = "ideaboard_documents"

type Store struct {
	pool   *pgxpool.Pool
	hub    *store.Hub
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := applySchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{pool: pool, hub: store.NewHub(), cancel: cancel}
	s.wg.Add(1)
	go s.listen(listenCtx)
	return s, nil
}

func (s *Store) Close() error {
	s.cancel()
	s.wg.Wait()
	s.hub.Close()
	s.pool.Close()
	return nil
}

var migrations = []string{
	// Migration 1: documents
	`
CREATE TABLE IF NOT EXISTS documents (
	seq BIGSERIAL PRIMARY KEY,
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_path ON documents(collection, id);
`,
	// Migration 2: collection listing in insertion order
	`CREATE INDEX IF NOT EXISTS idx_documents_collection_seq ON documents(collection, seq);`,
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var currentVersion int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&currentVersion); err != nil {
		return err
	}
	for i := currentVersion; i < len(migrations); i++ {
		if _, err := pool.Exec(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := pool.Exec(ctx, `INSERT INTO schema_version (version) VALUES ($1) ON CONFLICT DO NOTHING`, i+1); err != nil {
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
	id := uuid.NewString()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.Document{}, err
	}
	defer tx.Rollback(ctx)

	var raw []byte
	doc := model.Document{ID: id, Path: store.DocumentPath(collectionPath, id)}
	err = tx.QueryRow(ctx, `
INSERT INTO documents (collection, id, data)
VALUES ($1, $2, $3::jsonb)
RETURNING seq, data, created_at
`, collectionPath, id, string(data)).Scan(&doc.Seq, &raw, &doc.CreatedAt)
	if err != nil {
		return model.Document{}, err
	}
	if err := notify(ctx, tx, collectionPath); err != nil {
		return model.Document{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Document{}, err
	}
	s.hub.Publish(collectionPath)

	if err := json.Unmarshal(raw, &doc.Fields); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

func (s *Store) Get(ctx context.Context, documentPath string) (model.Document, error) {
	collectionPath, id, err := store.SplitDocumentPath(documentPath)
	if err != nil {
		return model.Document{}, err
	}
	row := s.pool.QueryRow(ctx, `
SELECT seq, collection, id, data, created_at
FROM documents
WHERE collection = $1 AND id = $2
`, collectionPath, id)
	return scanDocument(row)
}

func (s *Store) List(ctx context.Context, collectionPath string) ([]model.Document, error) {
	if err := store.ValidateCollectionPath(collectionPath); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
SELECT seq, collection, id, data, created_at
FROM documents
WHERE collection = $1
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
	return docs, rows.Err()
}

// Update merges fields into the stored document under a row lock, so two
// concurrent dotted-key writes to one document never lose each other.
func (s *Store) Update(ctx context.Context, documentPath string, fields map[string]any) error {
	collectionPath, id, err := store.SplitDocumentPath(documentPath)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var raw []byte
	err = tx.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`, collectionPath, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode %s: %w", documentPath, err)
	}
	if err := store.MergeFields(data, fields); err != nil {
		return err
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
UPDATE documents SET data = $1::jsonb, updated_at = now() WHERE collection = $2 AND id = $3
`, string(encoded), collectionPath, id); err != nil {
		return err
	}
	if err := notify(ctx, tx, collectionPath); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
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
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collectionPath, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	if err := notify(ctx, tx, collectionPath); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
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

func notify(ctx context.Context, tx pgx.Tx, collectionPath string) error {
	_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, channel, collectionPath)
	return err
}

// listen relays notifications from other processes to local subscribers.
// A dropped connection is retried after a short pause.
func (s *Store) listen(ctx context.Context) {
	defer s.wg.Done()
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		slog.Warn("postgres listener stopped, retrying", "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.hub.Publish(n.Payload)
	}
}

func scanDocument(row pgx.Row) (model.Document, error) {
	var d model.Document
	var collection string
	var raw []byte
	if err := row.Scan(&d.Seq, &collection, &d.ID, &raw, &d.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Document{}, store.ErrNotFound
		}
		return model.Document{}, err
	}
	d.Fields = map[string]any{}
	if err := json.Unmarshal(raw, &d.Fields); err != nil {
		return model.Document{}, fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	d.Path = store.DocumentPath(collection, d.ID)
	return d, nil
}
