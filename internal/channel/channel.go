// Package channel implements the inbound pipeline (§4.7): admission
// (allowlist/pairing), agent resolution, session-key derivation, registry
// bookkeeping, slash-command and directive handling, and media processing
// for every inbound ChannelInboundMessage, plus the Adapter contract
// (§6 ChannelWorkerInterface) the gateway consumes to deliver replies.
//
// Grounded on the teacher's internal/channels/channel.go adapter-registry
// split (Adapter / LifecycleAdapter / OutboundAdapter aggregated into one
// Registry), generalized from its concrete multi-adapter fan-out to the
// single RPC-stub contract this spec names.
package channel

import (
	"context"
	"sync"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// Adapter is the RPC stub contract a channel worker (messaging-platform
// connector) satisfies; the concrete implementations are out of scope per
// §1 — only this interface is consumed.
type Adapter interface {
	Start(ctx context.Context, accountID string, config map[string]any) error
	Stop(ctx context.Context, accountID string) error
	Status(ctx context.Context, accountID string) (models.ChannelAccountStatus, error)
	Send(ctx context.Context, accountID string, msg models.ChannelOutboundMessage) (messageID string, err error)
}

// TypingAdapter is the optional typing-indicator extension of Adapter.
type TypingAdapter interface {
	SetTyping(ctx context.Context, accountID string, peer models.ChannelPeer, typing bool)
}

// LoginAdapter is the optional login/logout extension of Adapter, for
// channels that need an interactive auth handshake (e.g. QR-code pairing).
type LoginAdapter interface {
	Login(ctx context.Context, accountID string) (map[string]any, error)
	Logout(ctx context.Context, accountID string) error
}

// Registry holds one Adapter per channel type, the gateway's single point
// of contact for outbound delivery and lifecycle control.
type Registry struct {
	mu       sync.RWMutex
	adapters map[models.ChannelType]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[models.ChannelType]Adapter)}
}

// Register binds an adapter to a channel type, replacing any prior binding.
func (r *Registry) Register(channelType models.ChannelType, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[channelType] = adapter
}

// Get returns the adapter bound to channelType, if any.
func (r *Registry) Get(channelType models.ChannelType) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[channelType]
	return a, ok
}

// Send implements reply.ChannelSender by routing to the bound adapter.
func (r *Registry) Send(ctx context.Context, channelType models.ChannelType, accountID string, peer models.ChannelPeer, text string) error {
	adapter, ok := r.Get(channelType)
	if !ok {
		return errNoAdapter(channelType)
	}
	_, err := adapter.Send(ctx, accountID, models.ChannelOutboundMessage{Peer: peer, Text: text})
	return err
}

// SetTyping implements reply.ChannelSender; a no-op when the bound adapter
// does not support typing indicators.
func (r *Registry) SetTyping(ctx context.Context, channelType models.ChannelType, accountID string, peer models.ChannelPeer, typing bool) {
	adapter, ok := r.Get(channelType)
	if !ok {
		return
	}
	if t, ok := adapter.(TypingAdapter); ok {
		t.SetTyping(ctx, accountID, peer, typing)
	}
}

type errNoAdapterType string

func (e errNoAdapterType) Error() string { return "channel: no adapter registered for " + string(e) }

func errNoAdapter(channelType models.ChannelType) error { return errNoAdapterType(channelType) }
