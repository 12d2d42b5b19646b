package toolrouter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

const (
	asyncExecSessionTTL = 24 * time.Hour
	deliveredDedupTTL   = 24 * time.Hour
	retryBaseDelay      = 1 * time.Second
	retryCapDelay       = 60 * time.Second
)

// AsyncExecTracker correlates a node's long-running shell exec across the
// tool.invoke response (which returns immediately with a session id) and
// the later stream of node.exec.event frames, queuing terminal events for
// reliable delivery back to the originating session.
type AsyncExecTracker struct {
	mu        sync.Mutex
	sessions  map[string]models.PendingAsyncExecSession // sessionId -> pending
	delivered map[string]time.Time                      // eventId -> expiry, dedup set
	queue     []models.PendingAsyncExecDelivery
}

// NewAsyncExecTracker creates an empty tracker.
func NewAsyncExecTracker() *AsyncExecTracker {
	return &AsyncExecTracker{
		sessions:  make(map[string]models.PendingAsyncExecSession),
		delivered: make(map[string]time.Time),
	}
}

// Track registers a newly started async-exec session.
func (t *AsyncExecTracker) Track(nodeID, sessionID, sessionKey, callID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sessionID] = models.PendingAsyncExecSession{
		NodeID:     nodeID,
		SessionID:  sessionID,
		SessionKey: sessionKey,
		CallID:     callID,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  now.Add(asyncExecSessionTTL),
	}
}

// eventID hashes the 8-field tuple
// nodeId|sessionId|event|callId|startedAt|endedAt|exitCode|signal so
// retried delivery attempts of the same terminal event dedup cleanly
// without colliding across events that differ only in exit status.
func eventID(nodeID, sessionID string, event models.AsyncExecEvent) string {
	exitCode := ""
	if event.ExitCode != nil {
		exitCode = fmt.Sprintf("%d", *event.ExitCode)
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%s",
		nodeID, sessionID, event.Event, event.CallID,
		event.StartedAt.UTC().Format(time.RFC3339Nano),
		event.EndedAt.UTC().Format(time.RFC3339Nano),
		exitCode, event.Signal)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Observe records a node.exec.event. Non-terminal events just refresh the
// tracked session; a terminal event drops the pending session and, unless
// it is a duplicate delivery already seen in the last 24h, enqueues it for
// delivery with retry bookkeeping.
func (t *AsyncExecTracker) Observe(event models.AsyncExecEvent, now time.Time) (queued bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending, ok := t.sessions[event.SessionID]
	if !ok {
		return false
	}
	pending.UpdatedAt = now
	if !event.Event.IsTerminal() {
		t.sessions[event.SessionID] = pending
		return false
	}
	delete(t.sessions, event.SessionID)

	id := eventID(pending.NodeID, event.SessionID, event)
	if expiry, seen := t.delivered[id]; seen && now.Before(expiry) {
		return false
	}

	t.queue = append(t.queue, models.PendingAsyncExecDelivery{
		EventID:       id,
		Event:         event,
		SessionKey:    pending.SessionKey,
		Attempts:      0,
		NextAttemptAt: now,
		ExpiresAt:     now.Add(deliveredDedupTTL),
	})
	return true
}

// DueDeliveries returns queued deliveries whose NextAttemptAt has passed.
func (t *AsyncExecTracker) DueDeliveries(now time.Time) []models.PendingAsyncExecDelivery {
	t.mu.Lock()
	defer t.mu.Unlock()
	var due []models.PendingAsyncExecDelivery
	for _, d := range t.queue {
		if !now.Before(d.NextAttemptAt) {
			due = append(due, d)
		}
	}
	return due
}

// Ack marks a delivery as successfully handed to the session actor,
// removing it from the retry queue and recording it in the dedup set.
func (t *AsyncExecTracker) Ack(eventID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delivered[eventID] = now.Add(deliveredDedupTTL)
	t.removeLocked(eventID)
}

// Retry reschedules a failed delivery with exponential backoff (base 1s,
// capped at 60s).
func (t *AsyncExecTracker) Retry(eventID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, d := range t.queue {
		if d.EventID != eventID {
			continue
		}
		d.Attempts++
		delay := retryBaseDelay << uint(d.Attempts-1)
		if delay > retryCapDelay || delay <= 0 {
			delay = retryCapDelay
		}
		d.NextAttemptAt = now.Add(delay)
		t.queue[i] = d
		return
	}
}

func (t *AsyncExecTracker) removeLocked(eventID string) {
	out := t.queue[:0]
	for _, d := range t.queue {
		if d.EventID != eventID {
			out = append(out, d)
		}
	}
	t.queue = out
}

// GC drops expired pending sessions and expired dedup entries, returning
// sessions that expired without ever receiving a terminal event.
func (t *AsyncExecTracker) GC(now time.Time) []models.PendingAsyncExecSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []models.PendingAsyncExecSession
	for id, s := range t.sessions {
		if now.After(s.ExpiresAt) {
			expired = append(expired, s)
			delete(t.sessions, id)
		}
	}
	for id, expiry := range t.delivered {
		if now.After(expiry) {
			delete(t.delivered, id)
		}
	}
	return expired
}
