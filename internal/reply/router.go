package reply

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/session"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// ChannelSender delivers a final reply to a channel peer. A concrete
// binding prefers a service-binding RPC on the channel adapter and falls
// back to the channel's own WebSocket link; either way this call is
// fire-and-forget from the router's perspective.
type ChannelSender interface {
	Send(ctx context.Context, channel models.ChannelType, accountID string, peer models.ChannelPeer, text string) error
	SetTyping(ctx context.Context, channel models.ChannelType, accountID string, peer models.ChannelPeer, typing bool)
}

// ClientBroadcaster fans a chat event out to every subscribed client when
// no channel delivery target is registered for the run.
type ClientBroadcaster interface {
	Broadcast(ctx context.Context, event string, payload any)
}

// Router implements the reply-routing rules: on a chat event, resolve the
// originating channel via the pending-response index, or fall back to a
// client broadcast.
type Router struct {
	pending   *PendingStore
	sender    ChannelSender
	broadcast ClientBroadcaster
	log       *slog.Logger
	now       func() time.Time

	delivered map[string]deliveredEntry // agentId -> last delivered body
}

type deliveredEntry struct {
	text      string
	expiresAt time.Time
}

// NewRouter builds a Router. sender may be nil if no channel adapters are
// wired (e.g. a client-only deployment); channel-addressed replies are then
// logged and dropped.
func NewRouter(pending *PendingStore, sender ChannelSender, broadcast ClientBroadcaster, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		pending:   pending,
		sender:    sender,
		broadcast: broadcast,
		log:       log.With("component", "reply.router"),
		now:       time.Now,
		delivered: make(map[string]deliveredEntry),
	}
}

// Emit implements the session.EventSink interface, so a Router can be
// handed directly to session.NewManager.
func (r *Router) Emit(ctx context.Context, event session.ChatEvent) {
	if event.RunID == "" {
		r.broadcastEvent(ctx, event)
		return
	}

	target, ok, err := r.pending.Lookup(ctx, event.RunID)
	if err != nil {
		r.log.Warn("pending lookup failed", "runId", event.RunID, "error", err)
		r.broadcastEvent(ctx, event)
		return
	}
	if !ok {
		r.broadcastEvent(ctx, event)
		return
	}

	switch event.State {
	case session.ChatPartial:
		r.routeText(ctx, target, event, false)
	case session.ChatFinal:
		r.setTyping(ctx, target, false)
		r.routeText(ctx, target, event, true)
		if err := r.pending.Delete(ctx, event.RunID); err != nil {
			r.log.Warn("pending delete failed", "runId", event.RunID, "error", err)
		}
	case session.ChatError:
		r.setTyping(ctx, target, false)
		if err := r.pending.Delete(ctx, event.RunID); err != nil {
			r.log.Warn("pending delete failed", "runId", event.RunID, "error", err)
		}
	}
}

func (r *Router) broadcastEvent(ctx context.Context, event session.ChatEvent) {
	if r.broadcast == nil {
		return
	}
	r.broadcast.Broadcast(ctx, "chat", event)
}

// routeText extracts the reply text from event.Message, applies heartbeat
// suppression/dedup on final events, and hands it to the channel sender.
func (r *Router) routeText(ctx context.Context, target models.PendingChannelResponse, event session.ChatEvent, final bool) {
	if event.Message == nil {
		return
	}
	text := strings.TrimLeft(event.Message.Content, "\n\r\t ")
	if text == "" {
		return
	}

	if event.Heartbeat {
		if !final {
			return // only the final heartbeat response is ever delivered
		}
		var ackOnly bool
		text, ackOnly = stripHeartbeatMarker(text)
		if ackOnly {
			return
		}
		if r.isDuplicate(target.AgentID, text) {
			return
		}
		r.recordDelivered(target.AgentID, text)
	}

	if r.sender == nil {
		r.log.Warn("no channel sender configured, dropping reply", "channel", target.Channel)
		return
	}
	if err := r.sender.Send(ctx, target.Channel, target.AccountID, target.Peer, text); err != nil {
		r.log.Warn("channel send failed", "channel", target.Channel, "error", err)
	}
}

func (r *Router) setTyping(ctx context.Context, target models.PendingChannelResponse, typing bool) {
	if r.sender == nil {
		return
	}
	r.sender.SetTyping(ctx, target.Channel, target.AccountID, target.Peer, typing)
}

// heartbeatMarker is a heartbeat-only agent reply appends to mean "I woke
// up, checked, and there is nothing worth reporting."
const heartbeatMarker = "HEARTBEAT_OK"

// stripHeartbeatMarker removes a trailing heartbeatMarker from text, together
// with any '.', '!' or whitespace after it and the whitespace before it;
// punctuation ending the text before the marker is kept. ackOnly
// reports whether the marker was the only content, in which case the
// heartbeat run produces no delivery at all.
func stripHeartbeatMarker(text string) (stripped string, ackOnly bool) {
	trimmed := strings.TrimRight(text, ".! \t\n\r")
	if len(trimmed) < len(heartbeatMarker) || !strings.EqualFold(trimmed[len(trimmed)-len(heartbeatMarker):], heartbeatMarker) {
		return text, false
	}
	rest := strings.TrimRight(trimmed[:len(trimmed)-len(heartbeatMarker)], " \t\n\r")
	if rest == "" {
		return "", true
	}
	return rest, false
}

func (r *Router) isDuplicate(agentID, text string) bool {
	entry, ok := r.delivered[agentID]
	if !ok {
		return false
	}
	if r.now().After(entry.expiresAt) {
		return false
	}
	return entry.text == text
}

func (r *Router) recordDelivered(agentID, text string) {
	r.delivered[agentID] = deliveredEntry{text: text, expiresAt: r.now().Add(dedupWindow)}
}
