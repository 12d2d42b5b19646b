package config

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
)

func TestStoreSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(pstore.NewMemoryKV(), Default())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	if err := store.Set(ctx, "systemPrompt", "test-123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := store.Get("systemPrompt")
	if !ok || got != "test-123" {
		t.Fatalf("Get(systemPrompt) = %v, %v; want test-123, true", got, ok)
	}
}

func TestStoreGetIsJSONSerializable(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(pstore.NewMemoryKV(), Default())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Set(ctx, "channels.telegram.dmPolicy", "allowlist"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	whole, ok := store.Get("")
	if !ok {
		t.Fatalf("Get(\"\") not found")
	}
	data, err := json.Marshal(whole)
	if err != nil {
		t.Fatalf("whole config tree must be JSON-serializable (no proxies): %v", err)
	}
	var roundTripped map[string]any
	if err := json.Unmarshal(data, &roundTripped); err != nil {
		t.Fatalf("round-trip unmarshal: %v", err)
	}

	channels, ok := store.Get("channels")
	if !ok {
		t.Fatalf("Get(channels) not found")
	}
	if _, err := json.Marshal(channels); err != nil {
		t.Fatalf("channels subtree must be plain: %v", err)
	}
}

func TestStoreMasksSecrets(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(pstore.NewMemoryKV(), Default())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Set(ctx, "apiKeys.anthropic", "sk-ant-super-secret"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := store.Get("apiKeys.anthropic")
	if !ok {
		t.Fatalf("Get(apiKeys.anthropic) not found")
	}
	if got != "***" {
		t.Fatalf("apiKeys.anthropic = %v, want masked \"***\"", got)
	}
}

func TestStoreOnlyTopLevelKeyPersisted(t *testing.T) {
	ctx := context.Background()
	kv := pstore.NewMemoryKV()
	store, err := NewStore(kv, Default())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Set(ctx, "session.mainKey", "custom-main"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	keys, err := kv.List(ctx, "config/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected exactly one persisted override record, got %d: %v", len(keys), keys)
	}
}
