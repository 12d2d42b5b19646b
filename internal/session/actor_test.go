package session

import (
	"context"
	"testing"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

type fakeLLM struct {
	reply string
}

func (f *fakeLLM) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	return CompletionResponse{
		Message:      models.Message{Role: models.RoleAssistant, Content: f.reply},
		InputTokens:  1,
		OutputTokens: 1,
	}, nil
}

func newTestActor(t *testing.T, llm LLM) (*Actor, chan ChatEvent) {
	t.Helper()
	events := make(chan ChatEvent, 8)
	store := pstore.NewTypedStore[models.Session](pstore.NewMemoryKV(), "sessions/")
	actor := New("agent:test:main", "test", store, nil, llm, nil, EventSinkFunc(func(ctx context.Context, e ChatEvent) {
		events <- e
	}), Config{ToolTimeout: time.Second}, nil)
	t.Cleanup(actor.Close)
	return actor, events
}

func waitForFinal(t *testing.T, events chan ChatEvent) ChatEvent {
	t.Helper()
	select {
	case e := <-events:
		if e.State != ChatFinal {
			t.Fatalf("event state = %v, want final (%+v)", e.State, e)
		}
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for final chat event")
		return ChatEvent{}
	}
}

func TestActorIdleResetZeroMinutesResetsOnEveryChatSend(t *testing.T) {
	actor, events := newTestActor(t, &fakeLLM{reply: "hi"})
	ctx := context.Background()

	actor.Patch(ctx, PatchRequest{ResetPolicy: &models.ResetPolicy{Mode: models.ResetIdle, IdleMinutes: 0}})

	before := actor.Get(ctx)
	time.Sleep(20 * time.Millisecond)

	result := actor.ChatSend(ctx, ChatSendRequest{RunID: "run-1", Text: "trigger"})
	if result.Status != "started" {
		t.Fatalf("ChatSend status = %q, want started", result.Status)
	}
	waitForFinal(t, events)

	after := actor.Get(ctx)
	if after.SessionID == before.SessionID {
		t.Fatalf("idleMinutes=0 should rotate sessionId on every chatSend")
	}
	found := false
	for _, id := range after.PreviousSessionIDs {
		if id == before.SessionID {
			found = true
		}
	}
	if !found {
		t.Fatalf("previousSessionIds = %v, want to contain %q", after.PreviousSessionIDs, before.SessionID)
	}
	if len(after.Messages) < 1 {
		t.Fatalf("the triggering message must survive the reset, got %d messages", len(after.Messages))
	}
}

func TestActorManualResetPolicyNeverAutoResets(t *testing.T) {
	actor, events := newTestActor(t, &fakeLLM{reply: "hi"})
	ctx := context.Background()

	before := actor.Get(ctx)
	actor.ChatSend(ctx, ChatSendRequest{RunID: "run-1", Text: "hello"})
	waitForFinal(t, events)

	after := actor.Get(ctx)
	if after.SessionID != before.SessionID {
		t.Fatalf("manual reset policy must never auto-reset, sessionId changed")
	}
}

func TestActorQueuesSendWhileRunInFlight(t *testing.T) {
	block := make(chan struct{})
	llm := &blockingLLM{release: block}
	actor, events := newTestActor(t, llm)
	ctx := context.Background()

	first := actor.ChatSend(ctx, ChatSendRequest{RunID: "run-1", Text: "one"})
	if first.Status != "started" {
		t.Fatalf("first ChatSend status = %q, want started", first.Status)
	}
	second := actor.ChatSend(ctx, ChatSendRequest{RunID: "run-2", Text: "two"})
	if second.Status != "queued" {
		t.Fatalf("second ChatSend status = %q, want queued while a run is in flight", second.Status)
	}

	close(block)
	waitForFinal(t, events)
}

type blockingLLM struct {
	release chan struct{}
}

func (b *blockingLLM) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	<-b.release
	return CompletionResponse{Message: models.Message{Role: models.RoleAssistant, Content: "done"}}, nil
}
