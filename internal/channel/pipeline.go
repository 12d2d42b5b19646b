package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ruizzmauri/gsv-sub000/internal/commands"
	"github.com/ruizzmauri/gsv-sub000/internal/config"
	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/internal/reply"
	"github.com/ruizzmauri/gsv-sub000/internal/session"
	"github.com/ruizzmauri/gsv-sub000/internal/sessionkey"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// Status enumerates the outcomes HandleInbound can report to the caller
// (the queue consumer) for logging/ack purposes — it never changes ack
// behavior, since even a blocked/pending_pairing message is a successfully
// handled queue item.
const (
	StatusOK            = "ok"
	StatusBlocked       = "blocked"
	StatusPendingPair   = "pending_pairing"
	StatusCommand       = "command"
	StatusDirectiveOnly = "directive_only"
)

// Result is HandleInbound's outcome.
type Result struct {
	Status   string
	Command  string
	Response string
	RunID    string
}

// ToolsSnapshot and NodesSnapshot let the pipeline hand the current tool
// surface and connected-node list to a fresh ChatSend without importing
// toolrouter/gateway directly.
type ToolsSnapshot func() []models.ToolDefinition
type NodesSnapshot func() []string

// Pipeline implements the channel inbound pipeline (§4.7).
type Pipeline struct {
	cfg      *config.Store
	sessions *session.Manager
	keys     *sessionkey.Builder
	cmds     *commands.Registry
	pending  *reply.PendingStore
	active   *reply.ActiveContextStore
	pairing  *PairingStore
	channels *pstore.TypedStore[models.ChannelRegistryEntry]
	media    *MediaProcessor
	sender   reply.ChannelSender

	tools ToolsSnapshot
	nodes NodesSnapshot

	log *slog.Logger
	now func() time.Time
}

// NewPipeline builds a Pipeline from its collaborators. sender may be nil
// during tests that never exercise the "reply directly" paths (pairing
// ack, slash-command response).
func NewPipeline(
	cfg *config.Store,
	sessions *session.Manager,
	cmds *commands.Registry,
	pending *reply.PendingStore,
	active *reply.ActiveContextStore,
	pairing *PairingStore,
	kv pstore.KV,
	media *MediaProcessor,
	sender reply.ChannelSender,
	tools ToolsSnapshot,
	nodes NodesSnapshot,
	log *slog.Logger,
) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		sessions: sessions,
		cmds:     cmds,
		pending:  pending,
		active:   active,
		pairing:  pairing,
		channels: pstore.NewTypedStore[models.ChannelRegistryEntry](kv, "channel-registry/"),
		media:    media,
		sender:   sender,
		tools:    tools,
		nodes:    nodes,
		log:      log.With("component", "channel.pipeline"),
		now:      time.Now,
	}
}

// HandleInbound runs the full admission -> dispatch pipeline for one
// inbound channel message.
func (p *Pipeline) HandleInbound(ctx context.Context, channelType models.ChannelType, accountID string, msg models.ChannelInboundMessage) (Result, error) {
	now := p.now()
	envelope := models.InboundEnvelope{
		Channel:      channelType,
		AccountID:    accountID,
		Peer:         msg.Peer,
		Sender:       msg.Sender,
		Message:      msg,
		WasMentioned: msg.WasMentioned,
	}

	cfg, err := p.cfg.Typed()
	if err != nil {
		return Result{}, fmt.Errorf("channel: load config: %w", err)
	}

	// 1. Admission.
	senderID := NormalizeSenderID(envelope.EffectiveSenderID())
	chCfg := cfg.Channels[string(channelType)]
	switch chCfg.DMPolicy {
	case config.DMPolicyAllowlist:
		if !AllowListed(chCfg.AllowFrom, senderID) {
			return Result{Status: StatusBlocked}, nil
		}
	case config.DMPolicyPairing:
		if !AllowListed(chCfg.AllowFrom, senderID) {
			senderName := ""
			if msg.Sender != nil {
				senderName = msg.Sender.Name
			}
			created, err := p.pairing.Record(ctx, channelType, senderID, senderName, msg.Text, now)
			if err != nil {
				return Result{}, fmt.Errorf("channel: record pairing request: %w", err)
			}
			if created {
				p.replyDirect(ctx, channelType, accountID, msg.Peer, "Thanks for reaching out — awaiting approval before I can respond.")
			}
			return Result{Status: StatusPendingPair}, nil
		}
	case config.DMPolicyOpen, "":
		// accept
	}

	// 2. Agent resolution.
	agentID := p.resolveAgent(cfg, channelType, accountID, msg.Peer)

	// 3. Session-key derivation.
	sessKey := p.keyBuilder(cfg).Build(agentID, channelType, accountID, msg.Peer)

	// 4. Registry updates — run for every admitted inbound.
	if _, err := p.channels.Patch(ctx, string(channelType)+":"+accountID, true, func(e *models.ChannelRegistryEntry) error {
		if e.ConnectedAt.IsZero() {
			e.Channel = channelType
			e.AccountID = accountID
			e.ConnectedAt = now
		}
		e.LastMessageAt = now
		return nil
	}); err != nil {
		p.log.Warn("channel registry update failed", "channel", channelType, "error", err)
	}
	if err := p.sessions.Touch(ctx, sessKey, ""); err != nil {
		p.log.Warn("session registry touch failed", "sessionKey", sessKey, "error", err)
	}
	if err := p.active.Set(ctx, agentID, models.ActiveContext{
		Channel: channelType, AccountID: accountID, Peer: msg.Peer, SessionKey: sessKey, Timestamp: now,
	}); err != nil {
		p.log.Warn("active context update failed", "agentId", agentID, "error", err)
	}

	// 5. Slash command check.
	if p.cmds != nil {
		if res, ok, err := p.cmds.Dispatch(ctx, sessKey, msg.Text); ok {
			if err != nil {
				return Result{}, err
			}
			p.replyDirect(ctx, channelType, accountID, msg.Peer, res.Response)
			return Result{Status: StatusCommand, Command: res.Command, Response: res.Response}, nil
		}
	}

	// 6. Directive parse.
	directives := ParseDirectives(msg.Text)
	text := directives.Text
	if directives.Status {
		actor := p.sessions.Get(ctx, sessKey, agentID)
		line := session.CommandAdapter{Actor: actor}.StatsLine(ctx)
		p.replyDirect(ctx, channelType, accountID, msg.Peer, line)
	}
	if text == "" {
		return Result{Status: StatusDirectiveOnly}, nil
	}

	// 7. Media.
	var attachments []models.Attachment
	if len(msg.Media) > 0 && p.media != nil {
		resolved, errs := p.media.Process(ctx, sessKey, msg.Media)
		attachments = resolved
		for _, e := range errs {
			p.log.Warn("media processing failed", "sessionKey", sessKey, "error", e)
		}
	}

	// 8. Envelope.
	localTime := now.Format("15:04")
	if cfg.UserTimezone != "" {
		if loc, err := time.LoadLocation(cfg.UserTimezone); err == nil {
			localTime = now.In(loc).Format("15:04")
		}
	}
	senderName := envelope.EffectiveSenderID()
	if msg.Sender != nil && msg.Sender.Name != "" {
		senderName = msg.Sender.Name
	} else if msg.Peer.Name != "" {
		senderName = msg.Peer.Name
	}
	prefixed := fmt.Sprintf("[%s · %s · peer=%s · sender=%s] %s",
		channelType, localTime, msg.Peer.Kind, senderName, text)

	// 9. Dispatch.
	runID := uuid.NewString()
	if err := p.pending.Register(ctx, runID, models.PendingChannelResponse{
		Channel: channelType, AccountID: accountID, Peer: msg.Peer,
		InboundMessageID: msg.MessageID, AgentID: agentID,
	}); err != nil {
		return Result{}, fmt.Errorf("channel: register pending response: %w", err)
	}
	p.setTyping(ctx, channelType, accountID, msg.Peer, true)

	var overridesPtr *session.Overrides
	if directives.Overrides != (session.Overrides{}) {
		overridesPtr = &directives.Overrides
	}

	actor := p.sessions.Get(ctx, sessKey, agentID)
	res := actor.ChatSend(ctx, session.ChatSendRequest{
		RunID:     runID,
		Text:      prefixed,
		Tools:     p.toolsSnapshot(),
		Nodes:     p.nodesSnapshot(),
		Overrides: overridesPtr,
		Media:     attachments,
		Delivery: &session.DeliveryContext{
			Channel: channelType, AccountID: accountID, Peer: msg.Peer, InboundMsg: msg.MessageID,
		},
	})

	return Result{Status: StatusOK, RunID: res.RunID}, nil
}

func (p *Pipeline) toolsSnapshot() []models.ToolDefinition {
	if p.tools == nil {
		return nil
	}
	return p.tools()
}

func (p *Pipeline) nodesSnapshot() []string {
	if p.nodes == nil {
		return nil
	}
	return p.nodes()
}

// resolveAgent walks agents.bindings for the first match on
// (channel?, accountId?, peer.kind?, peer.id?); empty binding fields are
// wildcards. Falls back to the first configured agent, or "default".
func (p *Pipeline) resolveAgent(cfg config.Config, channelType models.ChannelType, accountID string, peer models.ChannelPeer) string {
	for _, b := range cfg.Agents.Bindings {
		if b.Channel != "" && !strings.EqualFold(b.Channel, string(channelType)) {
			continue
		}
		if b.AccountID != "" && b.AccountID != accountID {
			continue
		}
		if b.PeerKind != "" && !strings.EqualFold(b.PeerKind, string(peer.Kind)) {
			continue
		}
		if b.PeerID != "" && b.PeerID != peer.ID {
			continue
		}
		return b.AgentID
	}
	if len(cfg.Agents.List) > 0 {
		return cfg.Agents.List[0].ID
	}
	return "default"
}

func (p *Pipeline) keyBuilder(cfg config.Config) *sessionkey.Builder {
	return sessionkey.NewBuilder(cfg.Session)
}

func (p *Pipeline) replyDirect(ctx context.Context, channelType models.ChannelType, accountID string, peer models.ChannelPeer, text string) {
	if p.sender == nil || strings.TrimSpace(text) == "" {
		return
	}
	if err := p.sender.Send(ctx, channelType, accountID, peer, text); err != nil {
		p.log.Warn("direct reply failed", "channel", channelType, "error", err)
	}
}

func (p *Pipeline) setTyping(ctx context.Context, channelType models.ChannelType, accountID string, peer models.ChannelPeer, typing bool) {
	if p.sender == nil {
		return
	}
	p.sender.SetTyping(ctx, channelType, accountID, peer, typing)
}
