package models

import "time"

// ResetMode controls when a session auto-resets between turns.
type ResetMode string

const (
	ResetManual ResetMode = "manual"
	ResetDaily  ResetMode = "daily"
	ResetIdle   ResetMode = "idle"
)

// ResetPolicy configures automatic session reset behavior.
type ResetPolicy struct {
	Mode        ResetMode `json:"mode"`
	AtHour      int       `json:"atHour,omitempty"`      // used by ResetDaily, default 4
	IdleMinutes int       `json:"idleMinutes,omitempty"` // used by ResetIdle
}

// Session is the persisted record for a per-conversation actor. The actor's
// live message queue is not part of this record; only state that must
// survive process restarts is.
type Session struct {
	SessionID          string         `json:"sessionId"`
	SessionKey         string         `json:"sessionKey"`
	AgentID            string         `json:"agentId"`
	Messages           []Message      `json:"messages"`
	InputTokens        int64          `json:"inputTokens"`
	OutputTokens       int64          `json:"outputTokens"`
	Settings           map[string]any `json:"settings,omitempty"`
	ResetPolicy        ResetPolicy    `json:"resetPolicy"`
	LastResetAt        time.Time      `json:"lastResetAt"`
	PreviousSessionIDs []string       `json:"previousSessionIds,omitempty"`
	Label              string         `json:"label,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// SessionRegistryEntry is the lightweight index entry kept for every known
// session key, independent of whether the actor is currently live.
type SessionRegistryEntry struct {
	SessionKey   string    `json:"sessionKey"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
	Label        string    `json:"label,omitempty"`
}

// ChannelRegistryEntry tracks a channel/account pair's liveness.
type ChannelRegistryEntry struct {
	Channel       ChannelType `json:"channel"`
	AccountID     string      `json:"accountId"`
	ConnectedAt   time.Time   `json:"connectedAt"`
	LastMessageAt time.Time   `json:"lastMessageAt"`
}

// ActiveContext is the last known delivery target for an agent, used as the
// "last" heartbeat/cron delivery target and as the default for the native
// message tool's accountId.
type ActiveContext struct {
	Channel    ChannelType `json:"channel"`
	AccountID  string      `json:"accountId"`
	Peer       ChannelPeer `json:"peer"`
	SessionKey string      `json:"sessionKey"`
	Timestamp  time.Time   `json:"timestamp"`
}

// PendingChannelResponse tracks the originating channel context for a
// running agent turn, keyed by runId, so the reply router can deliver the
// final/partial output back to the right place.
type PendingChannelResponse struct {
	Channel          ChannelType `json:"channel"`
	AccountID        string      `json:"accountId"`
	Peer             ChannelPeer `json:"peer"`
	InboundMessageID string      `json:"inboundMessageId"`
	AgentID          string      `json:"agentId,omitempty"`
}

// PairingRecord is a held first-contact DM awaiting operator approval.
type PairingRecord struct {
	Channel      ChannelType `json:"channel"`
	SenderID     string      `json:"senderId"` // normalized
	SenderName   string      `json:"senderName,omitempty"`
	RequestedAt  time.Time   `json:"requestedAt"`
	FirstMessage string      `json:"firstMessage,omitempty"`
}

// HeartbeatState is the per-agent heartbeat scheduling state.
type HeartbeatState struct {
	NextHeartbeatAt     time.Time `json:"nextHeartbeatAt"`
	LastHeartbeatAt     time.Time `json:"lastHeartbeatAt"`
	LastHeartbeatText   string    `json:"lastHeartbeatText,omitempty"`
	LastHeartbeatSentAt time.Time `json:"lastHeartbeatSentAt"`
}
