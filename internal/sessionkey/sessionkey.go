// Package sessionkey builds and parses the canonical session-key grammar:
// "agent:{agentId}:main" or
// "agent:{agentId}:{channel}:{accountId}:{peerKind}:{linkedOrPeerId}",
// with fields dropped per the configured DMScope.
//
// Mirrors the internal/sessions/scoping.go + internal/sessions/routing.go
// split: key construction is independently testable and has no knowledge of
// the channel pipeline that calls it.
package sessionkey

import (
	"strings"

	"github.com/ruizzmauri/gsv-sub000/internal/config"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// Main returns the designated main session key for an agent.
func Main(agentID string) string {
	return "agent:" + lower(agentID) + ":main"
}

// Builder derives session keys from inbound channel context according to a
// DMScope, folding linked identities into one canonical id so replies across
// channels share a session.
type Builder struct {
	DMScope       config.DMScope
	MainKey       string
	IdentityLinks map[string][]string // canonical name -> identities ("channel:id")
}

// NewBuilder constructs a Builder from the session config.
func NewBuilder(cfg config.SessionConfig) *Builder {
	return &Builder{
		DMScope:       cfg.DMScope,
		MainKey:       cfg.MainKey,
		IdentityLinks: cfg.IdentityLinks,
	}
}

// resolveIdentity looks up whether (channel, peerID) is linked to a
// canonical identity name; if so that name replaces the raw peer id so
// every linked channel maps to the same session.
func (b *Builder) resolveIdentity(channel models.ChannelType, peerID string) string {
	identity := lower(string(channel)) + ":" + peerID
	for canonical, members := range b.IdentityLinks {
		for _, m := range members {
			if lower(m) == identity {
				return lower(canonical)
			}
		}
	}
	return peerID
}

// Build derives the session key for one inbound envelope. agentID is the
// already-resolved owning agent.
func (b *Builder) Build(agentID string, channel models.ChannelType, accountID string, peer models.ChannelPeer) string {
	agentID = lower(agentID)

	if peer.Kind == models.PeerKindDM && b.DMScope == config.DMScopeMain {
		return Main(agentID)
	}

	linked := b.resolveIdentity(channel, peer.ID)

	switch {
	case peer.Kind == models.PeerKindDM && b.DMScope == config.DMScopePerPeer:
		return "agent:" + agentID + ":" + lower(string(peer.Kind)) + ":" + linked
	case peer.Kind == models.PeerKindDM && b.DMScope == config.DMScopePerChannelPeer:
		return "agent:" + agentID + ":" + lower(string(channel)) + ":" + lower(string(peer.Kind)) + ":" + linked
	default:
		// per-account-channel-peer (also the default for non-DM peer kinds:
		// groups/channels/threads are always scoped by account+peer).
		return "agent:" + agentID + ":" + lower(string(channel)) + ":" + accountID + ":" + lower(string(peer.Kind)) + ":" + linked
	}
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
