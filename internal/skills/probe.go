package skills

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	probeMaxAttempts   = 2
	probeRetryInterval = 10 * time.Second
)

// PendingNodeProbe tracks one outstanding binary-availability probe sent to
// a node via a node.probe frame.
type PendingNodeProbe struct {
	ProbeID    string
	NodeID     string
	Bins       []string
	Attempts   int
	CreatedAt  time.Time
	NextSendAt time.Time
	MaxAge     time.Duration
}

// ProbeTracker correlates dispatched node.probe requests with their
// node.probe.result responses, retrying on silence and giving up after
// probeMaxAttempts or MaxAge, whichever comes first.
type ProbeTracker struct {
	mu      sync.Mutex
	pending map[string]*PendingNodeProbe // probeId -> pending
	status  map[string]HostBinStatus     // nodeId -> last known binaries
	maxAge  time.Duration
}

// NewProbeTracker creates a tracker; maxAge bounds how long a probe is kept
// pending before GC drops it as undeliverable.
func NewProbeTracker(maxAge time.Duration) *ProbeTracker {
	if maxAge <= 0 {
		maxAge = 2 * time.Minute
	}
	return &ProbeTracker{
		pending: make(map[string]*PendingNodeProbe),
		status:  make(map[string]HostBinStatus),
		maxAge:  maxAge,
	}
}

// Dispatch registers a new probe for nodeID covering bins, returning the
// probeId the caller should put on the outgoing node.probe frame.
func (t *ProbeTracker) Dispatch(nodeID string, bins []string, now time.Time) *PendingNodeProbe {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &PendingNodeProbe{
		ProbeID:    uuid.NewString(),
		NodeID:     nodeID,
		Bins:       bins,
		Attempts:   1,
		CreatedAt:  now,
		NextSendAt: now.Add(probeRetryInterval),
		MaxAge:     t.maxAge,
	}
	t.pending[p.ProbeID] = p
	return p
}

// Resolve applies a node.probe.result to the matching pending probe,
// removing it from the pending set and recording the node's binary
// availability for future gating checks.
func (t *ProbeTracker) Resolve(result ProbeResult, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[result.ProbeID]; !ok {
		return false
	}
	delete(t.pending, result.ProbeID)
	t.status[result.NodeID] = HostBinStatus{Bins: result.Bins, UpdatedAt: now}
	return true
}

// BinStatus returns the last known binary availability for a node.
func (t *ProbeTracker) BinStatus(nodeID string) (HostBinStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.status[nodeID]
	return s, ok
}

// Due returns pending probes whose NextSendAt has passed and that have not
// yet exhausted probeMaxAttempts; the caller redispatches a node.probe
// frame with the same probeId and should call MarkSent afterward.
func (t *ProbeTracker) Due(now time.Time) []*PendingNodeProbe {
	t.mu.Lock()
	defer t.mu.Unlock()
	var due []*PendingNodeProbe
	for _, p := range t.pending {
		if p.Attempts < probeMaxAttempts && !now.Before(p.NextSendAt) {
			due = append(due, p)
		}
	}
	return due
}

// MarkSent records a retry attempt against probeID.
func (t *ProbeTracker) MarkSent(probeID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.pending[probeID]
	if !ok {
		return
	}
	p.Attempts++
	p.NextSendAt = now.Add(probeRetryInterval)
}

// OnReconnect redispatches any still-pending probes addressed to nodeID,
// keeping the same probeId so a late result from before the reconnect still
// resolves correctly.
func (t *ProbeTracker) OnReconnect(nodeID string, now time.Time) []*PendingNodeProbe {
	t.mu.Lock()
	defer t.mu.Unlock()
	var redispatch []*PendingNodeProbe
	for _, p := range t.pending {
		if p.NodeID == nodeID {
			p.NextSendAt = now
			redispatch = append(redispatch, p)
		}
	}
	return redispatch
}

// GC drops pending probes older than MaxAge or that exhausted their
// attempts, returning them so the caller can mark the affected skills
// unavailable rather than leaving them stuck pending forever.
func (t *ProbeTracker) GC(now time.Time) []*PendingNodeProbe {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []*PendingNodeProbe
	for id, p := range t.pending {
		if now.Sub(p.CreatedAt) > p.MaxAge || p.Attempts >= probeMaxAttempts && now.After(p.NextSendAt) {
			expired = append(expired, p)
			delete(t.pending, id)
		}
	}
	return expired
}
