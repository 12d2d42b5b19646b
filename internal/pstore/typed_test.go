package pstore

import (
	"context"
	"testing"
)

type widget struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestTypedStoreSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewTypedStore[widget](NewMemoryKV(), "widgets/")

	if err := store.Create(ctx, "a", widget{Name: "alpha", Count: 1}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, "a", widget{Name: "alpha-dup"}); err != ErrAlreadyExists {
		t.Fatalf("Create duplicate: got %v, want ErrAlreadyExists", err)
	}

	got, ok, err := store.Load(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Load: %v, ok=%v", err, ok)
	}
	if got.Name != "alpha" || got.Count != 1 {
		t.Fatalf("Load mismatch: %+v", got)
	}
}

func TestTypedStorePatch(t *testing.T) {
	ctx := context.Background()
	store := NewTypedStore[widget](NewMemoryKV(), "widgets/")

	if _, err := store.Patch(ctx, "b", true, func(w *widget) error {
		w.Name = "beta"
		w.Count++
		return nil
	}); err != nil {
		t.Fatalf("Patch create: %v", err)
	}

	got, err := store.Patch(ctx, "b", false, func(w *widget) error {
		w.Count++
		return nil
	})
	if err != nil {
		t.Fatalf("Patch update: %v", err)
	}
	if got.Count != 2 {
		t.Fatalf("Count = %d, want 2", got.Count)
	}

	if _, err := store.Patch(ctx, "missing", false, func(w *widget) error { return nil }); err != ErrNotFound {
		t.Fatalf("Patch missing: got %v, want ErrNotFound", err)
	}
}

func TestTypedStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewTypedStore[widget](NewMemoryKV(), "widgets/")
	_ = store.Save(ctx, "x", widget{Name: "x"})
	_ = store.Save(ctx, "y", widget{Name: "y"})

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List len = %d, want 2", len(all))
	}

	if err := store.Delete(ctx, "x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "does-not-exist"); err != nil {
		t.Fatalf("Delete missing should be a no-op, got %v", err)
	}
	all, _ = store.List(ctx)
	if len(all) != 1 {
		t.Fatalf("List after delete len = %d, want 1", len(all))
	}
}
