// Package gateway implements the singleton peer registry and frame
// dispatcher: the coordinator that terminates client/node/channel WebSocket
// links and routes frames to the right handler.
//
// The registry is a struct with an owning mutex (the first option the
// design notes offer for the "singleton gateway" re-architecture), grounded
// on the ws_control_plane.go connection-table pattern.
package gateway

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// Transport is the minimal contract a peer's live socket must satisfy so
// the registry can write frames to it without depending on gorilla's
// concrete type.
type Transport interface {
	WriteFrame(frame any) error
	Close() error
}

// Peer is a connected counterpart: a client, a node, or a channel adapter
// link. Exactly one live Peer exists per (mode, id) at a time.
type Peer struct {
	Mode PeerMode
	ID   string

	Transport Transport

	// Node-only.
	Tools   map[string]models.ToolDefinition
	Runtime *models.NodeRuntime

	// Channel-only.
	ChannelKey string // channelId:accountId

	ConnectedAt time.Time
}

// PeerMode mirrors models.PeerMode to avoid an import cycle concern; kept
// as a type alias so callers can use either package's constants.
type PeerMode = models.PeerMode

// Key returns the (mode, id) composite identity.
func (p *Peer) Key() string {
	return string(p.Mode) + ":" + p.ID
}

// Registry is the gateway's exclusive owner of all live peers. Every
// mutation goes through its mutex; there are no sub-locks, matching the
// "struct with an owning mutex" option from the design notes.
type Registry struct {
	mu    sync.Mutex
	peers map[string]*Peer
	log   *slog.Logger

	// DisconnectHook, if set, runs after an explicit Disconnect actually
	// removes a peer (never on the silent stale-socket eviction Connect
	// performs for a replaced peer) — the wiring layer uses it to cancel
	// that peer's in-flight client-routed tool calls.
	DisconnectHook func(mode PeerMode, id string)
}

// NewRegistry creates an empty peer registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		peers: make(map[string]*Peer),
		log:   log.With("component", "gateway.registry"),
	}
}

// Connect registers peer, replacing and silently evicting any prior socket
// under the same (mode, id) key per the "stale socket" rule: the old
// transport is closed but its close does not fire a disconnect side effect.
func (r *Registry) Connect(peer *Peer) (evicted *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := peer.Key()
	if prior, ok := r.peers[key]; ok {
		evicted = prior
	}
	peer.ConnectedAt = time.Now()
	r.peers[key] = peer

	if evicted != nil && evicted.Transport != nil {
		_ = evicted.Transport.Close()
	}
	return evicted
}

// Disconnect removes peer if it is still the live socket for its key (a
// stale eviction must not remove the peer that replaced it).
func (r *Registry) Disconnect(mode PeerMode, id string, transport Transport) (removed bool) {
	r.mu.Lock()
	key := string(mode) + ":" + id
	current, ok := r.peers[key]
	if !ok || current.Transport != transport {
		r.mu.Unlock()
		return false
	}
	delete(r.peers, key)
	hook := r.DisconnectHook
	r.mu.Unlock()

	if hook != nil {
		hook(mode, id)
	}
	return true
}

// Get returns the live peer for (mode, id).
func (r *Registry) Get(mode PeerMode, id string) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[string(mode)+":"+id]
	return p, ok
}

// Nodes returns all currently connected nodes, sorted by id for
// deterministic iteration (used by the execution-host tie-break rule).
func (r *Registry) Nodes() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Peer
	for _, p := range r.peers {
		if p.Mode == models.PeerModeNode {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Clients returns all currently connected clients.
func (r *Registry) Clients() []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Peer
	for _, p := range r.peers {
		if p.Mode == models.PeerModeClient {
			out = append(out, p)
		}
	}
	return out
}

// ExecutionHost returns the unique node whose runtime declares
// hostRole=execution. If more than one exists, the latest connect wins
// deterministically (highest ConnectedAt; ties broken by id) — this is a
// misconfiguration the router tolerates rather than rejects.
func (r *Registry) ExecutionHost() (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *Peer
	for _, p := range r.peers {
		if p.Mode != models.PeerModeNode || p.Runtime == nil {
			continue
		}
		if p.Runtime.HostRole != models.HostRoleExecution {
			continue
		}
		if best == nil || p.ConnectedAt.After(best.ConnectedAt) ||
			(p.ConnectedAt.Equal(best.ConnectedAt) && p.ID > best.ID) {
			best = p
		}
	}
	return best, best != nil
}

// Broadcast sends payload as an evt frame to every connected client.
func (r *Registry) Broadcast(ctx context.Context, event string, payload any) {
	r.mu.Lock()
	clients := make([]*Peer, 0)
	for _, p := range r.peers {
		if p.Mode == models.PeerModeClient {
			clients = append(clients, p)
		}
	}
	r.mu.Unlock()

	frame := EvtFrame{Type: "evt", Event: event, Payload: payload}
	for _, c := range clients {
		if c.Transport == nil {
			continue
		}
		if err := c.Transport.WriteFrame(frame); err != nil {
			r.log.Warn("broadcast write failed", "peer", c.Key(), "error", err)
		}
	}
}
