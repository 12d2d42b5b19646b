package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

func TestNormalizeSenderIDPhoneLike(t *testing.T) {
	cases := map[string]string{
		"+1 (555) 123-4567": "+15551234567",
		"555-123-4567":       "+5551234567",
		"alice@example.com":  "alice@example.com",
		"  Alice  ":          "alice",
	}
	for in, want := range cases {
		if got := NormalizeSenderID(in); got != want {
			t.Errorf("NormalizeSenderID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAllowListedComparesNormalized(t *testing.T) {
	allow := []string{"+1 555 123 4567", "Bob"}
	if !AllowListed(allow, NormalizeSenderID("1-555-123-4567")) {
		t.Fatalf("expected phone-like allowlist entry to match after normalization")
	}
	if !AllowListed(allow, NormalizeSenderID("BOB")) {
		t.Fatalf("expected case-insensitive handle match")
	}
	if AllowListed(allow, "carol") {
		t.Fatalf("unexpected allowlist match for carol")
	}
}

func TestPairingStoreRecordIsIdempotentOnNormalizedSender(t *testing.T) {
	ctx := context.Background()
	store := NewPairingStore(pstore.NewMemoryKV())
	now := time.Now()

	created, err := store.Record(ctx, "telegram", NormalizeSenderID("+1 555 000 1111"), "Dana", "hi", now)
	if err != nil || !created {
		t.Fatalf("first Record: created=%v err=%v", created, err)
	}

	// Same sender, different raw formatting of the same phone number, sent
	// again before approval: must not create a duplicate record.
	created, err = store.Record(ctx, "telegram", NormalizeSenderID("15550001111"), "Dana", "hi again", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Record: %v", err)
	}
	if created {
		t.Fatalf("second Record reported created=true, want idempotent no-op")
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("List len = %d, want 1", len(all))
	}
}

func TestPairingStoreApproveRemovesRecord(t *testing.T) {
	ctx := context.Background()
	store := NewPairingStore(pstore.NewMemoryKV())
	channel := models.ChannelType("telegram")

	if _, err := store.Record(ctx, channel, "+15550001111", "Dana", "hi", time.Now()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Approve(ctx, channel, "+15550001111"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("List len = %d after approve, want 0", len(all))
	}
}
