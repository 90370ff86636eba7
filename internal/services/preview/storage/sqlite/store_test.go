package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/livepreview/internal/services/preview/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestPutGetSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)
	input := storage.Snapshot{
		RootID:    "root",
		Markup:    "<h1>Draft</h1><p>body</p>",
		Head:      `<style>h1{color:red}</style><link rel="stylesheet" href="a.css"/>`,
		Title:     "Chapter 1",
		BaseURI:   "file:///home/writer/notes/",
		Sequence:  7,
		UpdatedAt: now,
	}
	if err := store.PutSnapshot(context.Background(), input); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}

	got, err := store.GetSnapshot(context.Background(), "root")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if got != input {
		t.Fatalf("snapshot = %+v, want %+v", got, input)
	}
}

func TestGetSnapshotReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	_, err := store.GetSnapshot(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestPutSnapshotUpsertsNewerSequence(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	put := func(seq int64, markup string) {
		t.Helper()
		if err := store.PutSnapshot(ctx, storage.Snapshot{RootID: "root", Markup: markup, Sequence: seq}); err != nil {
			t.Fatalf("put snapshot %d: %v", seq, err)
		}
	}

	put(1, "<p>one</p>")
	put(3, "<p>three</p>")
	put(2, "<p>stale</p>")

	got, err := store.GetSnapshot(ctx, "root")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if got.Sequence != 3 || got.Markup != "<p>three</p>" {
		t.Fatalf("snapshot = %+v, want sequence 3", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at default")
	}
}

func TestPutSnapshotKeepsEmptyTitle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if err := store.PutSnapshot(ctx, storage.Snapshot{RootID: "root", Title: "", Sequence: 1}); err != nil {
		t.Fatalf("put snapshot: %v", err)
	}
	got, err := store.GetSnapshot(ctx, "root")
	if err != nil {
		t.Fatalf("get snapshot: %v", err)
	}
	if got.Title != "" {
		t.Fatalf("Title = %q, want empty", got.Title)
	}
}

func TestPutSnapshotValidatesInput(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	if err := store.PutSnapshot(context.Background(), storage.Snapshot{RootID: " "}); err == nil {
		t.Fatal("expected root id error")
	}
	if err := store.PutSnapshot(context.Background(), storage.Snapshot{RootID: "root", Sequence: -1}); err == nil {
		t.Fatal("expected negative sequence error")
	}
}

func TestStoreRespectsCanceledContext(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.PutSnapshot(ctx, storage.Snapshot{RootID: "root"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("put error = %v, want context.Canceled", err)
	}
	if _, err := store.GetSnapshot(ctx, "root"); !errors.Is(err, context.Canceled) {
		t.Fatalf("get error = %v, want context.Canceled", err)
	}
}

func TestNilStoreCloseIsSafe(t *testing.T) {
	t.Parallel()

	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preview.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
