package reply

import (
	"context"
	"testing"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/internal/session"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(ctx context.Context, channel models.ChannelType, accountID string, peer models.ChannelPeer, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) SetTyping(ctx context.Context, channel models.ChannelType, accountID string, peer models.ChannelPeer, typing bool) {
}

func newTestRouter(t *testing.T, sender ChannelSender) (*Router, context.Context, string) {
	t.Helper()
	ctx := context.Background()
	pending := NewPendingStore(pstore.NewMemoryKV())
	r := NewRouter(pending, sender, nil, nil)

	runID := "run-1"
	if err := pending.Register(ctx, runID, models.PendingChannelResponse{
		Channel:   models.ChannelType("telegram"),
		AccountID: "acct-1",
		AgentID:   "agent-1",
	}); err != nil {
		t.Fatalf("register pending: %v", err)
	}
	return r, ctx, runID
}

func TestRouteTextStripsTrailingHeartbeatMarker(t *testing.T) {
	sender := &fakeSender{}
	r, ctx, runID := newTestRouter(t, sender)

	r.Emit(ctx, session.ChatEvent{
		RunID:     runID,
		State:     session.ChatFinal,
		Heartbeat: true,
		Message:   &models.Message{Role: models.RoleAssistant, Content: "Did some work.\nHEARTBEAT_OK"},
	})

	if len(sender.sent) != 1 {
		t.Fatalf("sent = %v, want exactly one delivery", sender.sent)
	}
	if sender.sent[0] != "Did some work." {
		t.Fatalf("sent text = %q, want marker stripped", sender.sent[0])
	}
}

func TestRouteTextDropsBareHeartbeatMarker(t *testing.T) {
	sender := &fakeSender{}
	r, ctx, runID := newTestRouter(t, sender)

	r.Emit(ctx, session.ChatEvent{
		RunID:     runID,
		State:     session.ChatFinal,
		Heartbeat: true,
		Message:   &models.Message{Role: models.RoleAssistant, Content: "  HEARTBEAT_OK.  "},
	})

	if len(sender.sent) != 0 {
		t.Fatalf("sent = %v, want no delivery for a bare ack", sender.sent)
	}
}

func TestRouteTextHeartbeatDedupSuppressesRepeat(t *testing.T) {
	sender := &fakeSender{}
	r, ctx, runID := newTestRouter(t, sender)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	event := session.ChatEvent{
		RunID:     runID,
		State:     session.ChatFinal,
		Heartbeat: true,
		Message:   &models.Message{Role: models.RoleAssistant, Content: "Disk is full.\nHEARTBEAT_OK"},
	}
	r.Emit(ctx, event)

	if err := r.pending.Register(ctx, runID, models.PendingChannelResponse{
		Channel: models.ChannelType("telegram"), AccountID: "acct-1", AgentID: "agent-1",
	}); err != nil {
		t.Fatalf("re-register pending: %v", err)
	}
	r.Emit(ctx, event)

	if len(sender.sent) != 1 {
		t.Fatalf("sent = %v, want the identical repeat suppressed", sender.sent)
	}
}

func TestStripHeartbeatMarker(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    string
		ackOnly bool
	}{
		{"bare", "HEARTBEAT_OK", "", true},
		{"bare with punctuation", "heartbeat_ok.", "", true},
		{"trailing marker", "Did some work.\nHEARTBEAT_OK", "Did some work.", false},
		{"no marker", "Nothing to see here", "Nothing to see here", false},
		{"marker mid-sentence is not stripped", "HEARTBEAT_OK and more", "HEARTBEAT_OK and more", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ackOnly := stripHeartbeatMarker(tc.in)
			if got != tc.want || ackOnly != tc.ackOnly {
				t.Fatalf("stripHeartbeatMarker(%q) = (%q, %v), want (%q, %v)", tc.in, got, ackOnly, tc.want, tc.ackOnly)
			}
		})
	}
}
