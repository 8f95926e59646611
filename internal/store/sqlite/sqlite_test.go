package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mathclub/ideaboard/internal/model"
	"github.com/mathclub/ideaboard/internal/store"
)

const ideas = "artifacts/test-app/public/data/ideas"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	st, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return st
}

func TestDocumentLifecycle(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	doc, err := st.Submit(ctx, ideas, map[string]any{
		"idea":    "Build a sundial",
		"upvotes": 0,
		"votedBy": map[string]any{"up": []string{}, "down": []string{}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if doc.ID == "" || doc.Seq == 0 {
		t.Fatalf("expected store-assigned id and seq, got %+v", doc)
	}
	if doc.CreatedAt.IsZero() {
		t.Fatalf("expected server timestamp")
	}
	if doc.Path != store.DocumentPath(ideas, doc.ID) {
		t.Fatalf("unexpected path %q", doc.Path)
	}

	got, err := st.Get(ctx, doc.Path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Fields["idea"] != "Build a sundial" {
		t.Fatalf("unexpected idea: %v", got.Fields["idea"])
	}

	if err := st.Update(ctx, doc.Path, map[string]any{"upvotes": 1, "votedBy.up": []string{"u1"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = st.Get(ctx, doc.Path)
	if got.Fields["upvotes"].(float64) != 1 {
		t.Fatalf("expected upvotes 1, got %v", got.Fields["upvotes"])
	}
	votedBy := got.Fields["votedBy"].(map[string]any)
	if up := votedBy["up"].([]any); len(up) != 1 || up[0] != "u1" {
		t.Fatalf("unexpected votedBy.up %v", votedBy["up"])
	}
	if down := votedBy["down"].([]any); len(down) != 0 {
		t.Fatalf("dotted update clobbered votedBy.down: %v", votedBy["down"])
	}
	if got.Fields["idea"] != "Build a sundial" {
		t.Fatalf("update dropped untouched field")
	}

	if err := st.Delete(ctx, doc.Path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.Get(ctx, doc.Path); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := st.Delete(ctx, doc.Path); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
	if err := st.Update(ctx, doc.Path, map[string]any{"x": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing doc, got %v", err)
	}
}

func TestListInsertionOrderAndNamespaces(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	other := store.CollectionPath("other-app", "ideas")
	for i := 0; i < 3; i++ {
		if _, err := st.Submit(ctx, ideas, map[string]any{"n": i}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if _, err := st.Submit(ctx, other, map[string]any{"n": 99}); err != nil {
		t.Fatalf("submit other: %v", err)
	}

	docs, err := st.List(ctx, ideas)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs in namespace, got %d", len(docs))
	}
	for i, d := range docs {
		if int(d.Fields["n"].(float64)) != i {
			t.Fatalf("doc %d out of insertion order: %v", i, d.Fields["n"])
		}
	}

	empty, err := st.List(ctx, store.CollectionPath("nobody", "ideas"))
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", empty)
	}

	if _, err := st.List(ctx, "artifacts/x"); !errors.Is(err, store.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestSubscribeDeliversEveryChange(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps, err := st.Subscribe(ctx, ideas)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if n := len(next(t, snaps).Docs); n != 0 {
		t.Fatalf("expected empty initial snapshot, got %d", n)
	}

	doc, err := st.Submit(context.Background(), ideas, map[string]any{"idea": "a"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if n := len(next(t, snaps).Docs); n != 1 {
		t.Fatalf("expected 1 doc after insert, got %d", n)
	}

	if err := st.Update(context.Background(), doc.Path, map[string]any{"idea": "b"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	snap := next(t, snaps)
	if snap.Docs[0].Fields["idea"] != "b" {
		t.Fatalf("expected updated doc in snapshot, got %v", snap.Docs[0].Fields)
	}

	if err := st.Delete(context.Background(), doc.Path); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := len(next(t, snaps).Docs); n != 0 {
		t.Fatalf("expected empty snapshot after delete, got %d", n)
	}

	cancel()
	for range snaps {
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	if err := applySchema(st.db); err != nil {
		t.Fatalf("reapply schema: %v", err)
	}
	var version int
	if err := st.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("expected version %d, got %d", len(migrations), version)
	}
}

func TestDecodedItemsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	members := 4
	fields := model.NewItemFields(model.Item{
		Kind:       model.KindIdea,
		Content:    "Pi day bake sale",
		OwnerID:    "owner",
		Attributes: model.Attributes{MemberCount: &members, RequiresFunds: true},
	})
	doc, err := st.Submit(ctx, ideas, fields)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, err := st.Get(ctx, doc.Path)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	item, err := model.DecodeItem(model.KindIdea, got)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.OwnerID != "owner" || item.SubmitterName != "Anonymous" {
		t.Fatalf("unexpected owner/submitter: %+v", item)
	}
	if item.Attributes.MemberCount == nil || *item.Attributes.MemberCount != 4 {
		t.Fatalf("member count lost: %v", item.Attributes.MemberCount)
	}
	if item.Attributes.TimeToMakeDays != nil {
		t.Fatalf("expected missing attribute to stay nil")
	}
	if item.CreatedAt.Sub(doc.CreatedAt).Abs() > time.Millisecond {
		t.Fatalf("created_at drifted: %v vs %v", item.CreatedAt, doc.CreatedAt)
	}
}

func next(t *testing.T, ch <-chan store.Snapshot) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatalf("subscription closed")
		}
		if snap.Err != nil {
			t.Fatalf("snapshot error: %v", snap.Err)
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	return store.Snapshot{}
}
