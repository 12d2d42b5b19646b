package channel

import (
	"context"
	"testing"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/commands"
	"github.com/ruizzmauri/gsv-sub000/internal/config"
	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/internal/reply"
	"github.com/ruizzmauri/gsv-sub000/internal/session"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

type fakeLLM struct{ reply string }

func (f fakeLLM) Complete(ctx context.Context, req session.CompletionRequest) (session.CompletionResponse, error) {
	return session.CompletionResponse{Message: models.Message{Content: f.reply}}, nil
}

type fakeToolInvoker struct{}

func (fakeToolInvoker) Invoke(ctx context.Context, tool string, args []byte, route models.CallRoute) (any, bool, error) {
	return nil, true, nil
}

type fakeArchiver struct{}

func (fakeArchiver) Archive(ctx context.Context, agentID, sessionID string, part int, messages []models.Message, tokens session.ArchiveTokens) (string, error) {
	return "archive-key", nil
}

type capturingSink struct {
	events chan session.ChatEvent
}

func newCapturingSink() *capturingSink { return &capturingSink{events: make(chan session.ChatEvent, 8)} }

func (s *capturingSink) Emit(ctx context.Context, event session.ChatEvent) { s.events <- event }

func testPipeline(t *testing.T, cfg config.Config, reply string) (*Pipeline, *capturingSink) {
	t.Helper()
	kv := pstore.NewMemoryKV()
	cfgStore, err := config.NewStore(kv, cfg)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	sink := newCapturingSink()
	sessions := session.NewManager(kv, fakeToolInvoker{}, fakeLLM{reply: reply}, fakeArchiver{}, sink, session.Config{}, nil)
	cmdReg := commands.NewRegistry(nil)
	commands.RegisterBuiltins(cmdReg, func(key string) (commands.SessionOps, bool) {
		return session.CommandAdapter{Actor: sessions.Get(context.Background(), key, "agent1")}, true
	})
	pending := reply.NewPendingStore(kv)
	active := reply.NewActiveContextStore(kv)
	pairing := NewPairingStore(kv)

	pipe := NewPipeline(cfgStore, sessions, cmdReg, pending, active, pairing, kv, nil, nil, nil, nil, nil)
	return pipe, sink
}

func baseMessage(text string) models.ChannelInboundMessage {
	return models.ChannelInboundMessage{
		MessageID: "m1",
		Peer:      models.ChannelPeer{Kind: models.PeerKindDM, ID: "user1", Name: "Alice"},
		Text:      text,
		Timestamp: time.Now(),
	}
}

func TestHandleInboundOpenPolicyDispatchesToSession(t *testing.T) {
	cfg := config.Default()
	cfg.Agents.List = []config.AgentConfig{{ID: "agent1"}}
	cfg.Channels = map[string]config.ChannelConfig{"telegram": {DMPolicy: config.DMPolicyOpen}}

	pipe, sink := testPipeline(t, cfg, "hello back")
	ctx := context.Background()

	res, err := pipe.HandleInbound(ctx, "telegram", "acct1", baseMessage("hi there"))
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if res.Status != StatusOK {
		t.Fatalf("Status = %q, want ok", res.Status)
	}

	select {
	case ev := <-sink.events:
		if ev.State != session.ChatFinal {
			t.Fatalf("event state = %q, want final", ev.State)
		}
		if ev.Message.Content != "hello back" {
			t.Fatalf("event content = %q", ev.Message.Content)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for chat event")
	}
}

func TestHandleInboundAllowlistRejectsUnknownSender(t *testing.T) {
	cfg := config.Default()
	cfg.Channels = map[string]config.ChannelConfig{"telegram": {DMPolicy: config.DMPolicyAllowlist, AllowFrom: []string{"known-user"}}}
	pipe, _ := testPipeline(t, cfg, "hello")

	res, err := pipe.HandleInbound(context.Background(), "telegram", "acct1", baseMessage("hi"))
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if res.Status != StatusBlocked {
		t.Fatalf("Status = %q, want blocked", res.Status)
	}
}

func TestHandleInboundPairingIsPendingOnFirstMessageOnlyOncePerSender(t *testing.T) {
	cfg := config.Default()
	cfg.Channels = map[string]config.ChannelConfig{"telegram": {DMPolicy: config.DMPolicyPairing}}
	pipe, _ := testPipeline(t, cfg, "hello")
	ctx := context.Background()

	res1, err := pipe.HandleInbound(ctx, "telegram", "acct1", baseMessage("hi"))
	if err != nil {
		t.Fatalf("HandleInbound 1: %v", err)
	}
	if res1.Status != StatusPendingPair {
		t.Fatalf("Status 1 = %q, want pending_pairing", res1.Status)
	}

	all, err := pipe.pairing.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("pending pairing count = %d, want 1", len(all))
	}

	res2, err := pipe.HandleInbound(ctx, "telegram", "acct1", baseMessage("hi again"))
	if err != nil {
		t.Fatalf("HandleInbound 2: %v", err)
	}
	if res2.Status != StatusPendingPair {
		t.Fatalf("Status 2 = %q, want pending_pairing", res2.Status)
	}
	all, _ = pipe.pairing.List(ctx)
	if len(all) != 1 {
		t.Fatalf("pending pairing count after repeat = %d, want 1 (no duplicate record)", len(all))
	}
}

func TestHandleInboundSlashCommandRespondsWithoutReachingSession(t *testing.T) {
	cfg := config.Default()
	cfg.Agents.List = []config.AgentConfig{{ID: "agent1"}}
	cfg.Channels = map[string]config.ChannelConfig{"telegram": {DMPolicy: config.DMPolicyOpen}}
	pipe, sink := testPipeline(t, cfg, "should not be used")

	res, err := pipe.HandleInbound(context.Background(), "telegram", "acct1", baseMessage("/status"))
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if res.Status != StatusCommand || res.Command != "status" {
		t.Fatalf("Result = %+v, want command status", res)
	}

	select {
	case ev := <-sink.events:
		t.Fatalf("unexpected chat event for a slash command: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandleInboundDirectiveOnlyMessageAcknowledgesWithoutDispatch(t *testing.T) {
	cfg := config.Default()
	cfg.Agents.List = []config.AgentConfig{{ID: "agent1"}}
	cfg.Channels = map[string]config.ChannelConfig{"telegram": {DMPolicy: config.DMPolicyOpen}}
	pipe, sink := testPipeline(t, cfg, "should not be used")

	res, err := pipe.HandleInbound(context.Background(), "telegram", "acct1", baseMessage("/t:high"))
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if res.Status != StatusDirectiveOnly {
		t.Fatalf("Status = %q, want directive_only", res.Status)
	}

	select {
	case ev := <-sink.events:
		t.Fatalf("unexpected chat event for a directive-only message: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}
