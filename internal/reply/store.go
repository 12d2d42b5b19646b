// Package reply routes session chat events back to the channel (or
// broadcasts to subscribed clients) that originated the run, and persists
// the runId -> origin correlation cron and the channel pipeline register
// when they start a turn whose output must be delivered somewhere other
// than the client that sent the chatSend.
package reply

import (
	"context"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// PendingStore persists the pendingChannelResponses index: for every
// in-flight run whose reply must route to a channel, runId maps to the
// delivery context captured when the turn started.
type PendingStore struct {
	store *pstore.TypedStore[models.PendingChannelResponse]
}

// NewPendingStore wraps kv for the pending-channel-response namespace.
func NewPendingStore(kv pstore.KV) *PendingStore {
	return &PendingStore{store: pstore.NewTypedStore[models.PendingChannelResponse](kv, "pending-channel-responses/")}
}

// Register records runId's delivery target. Called by the channel pipeline
// and the cron/heartbeat scheduler whenever a turn's output must route
// somewhere other than back to the connected client.
func (s *PendingStore) Register(ctx context.Context, runID string, target models.PendingChannelResponse) error {
	return s.store.Save(ctx, runID, target)
}

// Lookup returns the registered delivery target for runID, if any.
func (s *PendingStore) Lookup(ctx context.Context, runID string) (models.PendingChannelResponse, bool, error) {
	return s.store.Load(ctx, runID)
}

// Delete removes runID's pending entry, once its run has reached a
// terminal state.
func (s *PendingStore) Delete(ctx context.Context, runID string) error {
	return s.store.Delete(ctx, runID)
}

// ActiveContextStore persists the last known delivery target per agent, the
// "last" heartbeat/cron target and the native message tool's default.
type ActiveContextStore struct {
	store *pstore.TypedStore[models.ActiveContext]
}

// NewActiveContextStore wraps kv for the active-context namespace.
func NewActiveContextStore(kv pstore.KV) *ActiveContextStore {
	return &ActiveContextStore{store: pstore.NewTypedStore[models.ActiveContext](kv, "active-context/")}
}

// Set records the most recent delivery context for agentID.
func (s *ActiveContextStore) Set(ctx context.Context, agentID string, active models.ActiveContext) error {
	return s.store.Save(ctx, agentID, active)
}

// Get returns the most recent delivery context for agentID.
func (s *ActiveContextStore) Get(ctx context.Context, agentID string) (models.ActiveContext, bool, error) {
	return s.store.Load(ctx, agentID)
}

// dedupWindow is how long an identical delivered heartbeat/cron response
// body is suppressed for the same agent.
const dedupWindow = 24 * time.Hour
