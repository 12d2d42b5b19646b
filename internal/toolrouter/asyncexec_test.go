package toolrouter

import (
	"testing"
	"time"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

func TestAsyncExecTrackerObserveQueuesTerminalEvent(t *testing.T) {
	tr := NewAsyncExecTracker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.Track("node-1", "sess-1", "agent:a:main", "call-1", now)

	queued := tr.Observe(models.AsyncExecEvent{
		SessionID: "sess-1",
		Event:     models.ExecFinished,
		CallID:    "call-1",
		StartedAt: now,
		EndedAt:   now.Add(time.Second),
	}, now.Add(time.Second))
	if !queued {
		t.Fatalf("Observe should queue the first terminal event")
	}

	due := tr.DueDeliveries(now.Add(time.Second))
	if len(due) != 1 {
		t.Fatalf("DueDeliveries = %d, want 1", len(due))
	}
	if due[0].SessionKey != "agent:a:main" {
		t.Fatalf("delivery sessionKey = %q, want the tracked sessionKey", due[0].SessionKey)
	}
}

func TestAsyncExecTrackerObserveIgnoresUnknownSession(t *testing.T) {
	tr := NewAsyncExecTracker()
	now := time.Now()
	queued := tr.Observe(models.AsyncExecEvent{SessionID: "missing", Event: models.ExecFinished}, now)
	if queued {
		t.Fatalf("Observe should ignore an event for a session never Tracked")
	}
}

func TestAsyncExecTrackerObserveNonTerminalDoesNotQueue(t *testing.T) {
	tr := NewAsyncExecTracker()
	now := time.Now()
	tr.Track("node-1", "sess-1", "agent:a:main", "call-1", now)
	queued := tr.Observe(models.AsyncExecEvent{SessionID: "sess-1", Event: models.ExecStarted}, now)
	if queued {
		t.Fatalf("a non-terminal event must not be queued for delivery")
	}
	due := tr.DueDeliveries(now)
	if len(due) != 0 {
		t.Fatalf("DueDeliveries = %d, want 0 after only a non-terminal event", len(due))
	}
}

func TestEventIDDistinguishesDifferingExitCode(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	zero, one := 0, 1
	base := models.AsyncExecEvent{
		SessionID: "sess-1",
		Event:     models.ExecFinished,
		CallID:    "call-1",
		StartedAt: now,
		EndedAt:   now,
	}
	a := base
	a.ExitCode = &zero
	b := base
	b.ExitCode = &one

	idA := eventID("node-1", "sess-1", a)
	idB := eventID("node-1", "sess-1", b)
	if idA == idB {
		t.Fatalf("eventID must differ when exitCode differs, got identical ids %q", idA)
	}
}

func TestEventIDDistinguishesDifferingNode(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	event := models.AsyncExecEvent{
		SessionID: "sess-1",
		Event:     models.ExecFinished,
		CallID:    "call-1",
		StartedAt: now,
		EndedAt:   now,
	}
	idA := eventID("node-1", "sess-1", event)
	idB := eventID("node-2", "sess-1", event)
	if idA == idB {
		t.Fatalf("eventID must differ when nodeId differs, got identical ids %q", idA)
	}
}

func TestAsyncExecTrackerAckRemovesFromQueueAndDedups(t *testing.T) {
	tr := NewAsyncExecTracker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.Track("node-1", "sess-1", "agent:a:main", "call-1", now)
	event := models.AsyncExecEvent{SessionID: "sess-1", Event: models.ExecFinished, CallID: "call-1", StartedAt: now, EndedAt: now}
	tr.Observe(event, now)
	due := tr.DueDeliveries(now)
	if len(due) != 1 {
		t.Fatalf("expected one due delivery before Ack")
	}
	tr.Ack(due[0].EventID, now)
	if len(tr.DueDeliveries(now)) != 0 {
		t.Fatalf("Ack should remove the delivery from the retry queue")
	}

	tr.Track("node-1", "sess-1", "agent:a:main", "call-1", now)
	queued := tr.Observe(event, now)
	if queued {
		t.Fatalf("re-observing an already-acked event within the dedup window must not re-queue")
	}
}
