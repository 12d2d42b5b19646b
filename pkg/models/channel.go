package models

import "time"

// PeerKind classifies the conversational context a channel message arrived
// under.
type PeerKind string

const (
	PeerKindDM      PeerKind = "dm"
	PeerKindGroup   PeerKind = "group"
	PeerKindChannel PeerKind = "channel"
	PeerKindThread  PeerKind = "thread"
)

// ChannelPeer identifies the conversational counterpart on a channel.
type ChannelPeer struct {
	Kind     PeerKind `json:"kind"`
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Handle   string   `json:"handle,omitempty"`
	ThreadID string   `json:"threadId,omitempty"`
}

// ChannelSender is the message author, when distinct from the peer (e.g. a
// group member posting into a group peer).
type ChannelSender struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ChannelMediaType enumerates the media kinds a channel message may carry.
type ChannelMediaType string

const (
	MediaImage    ChannelMediaType = "image"
	MediaAudio    ChannelMediaType = "audio"
	MediaVideo    ChannelMediaType = "video"
	MediaDocument ChannelMediaType = "document"
)

// ChannelMedia is a raw inbound media attachment, or a resolved outbound one.
// Exactly one of Data/URL is populated on the inbound path; after the inbound
// pipeline runs, Data is cleared and R2Key on the resulting Attachment is
// populated instead.
type ChannelMedia struct {
	Type          ChannelMediaType `json:"type"`
	MimeType      string           `json:"mimeType"`
	Data          string           `json:"data,omitempty"` // base64
	URL           string           `json:"url,omitempty"`
	Filename      string           `json:"filename,omitempty"`
	Size          int64            `json:"size,omitempty"`
	DurationMs    int64            `json:"duration,omitempty"`
	Transcription string           `json:"transcription,omitempty"`
}

// ChannelInboundMessage is what the queue consumer / adapter hands the core.
type ChannelInboundMessage struct {
	MessageID    string         `json:"messageId"`
	Peer         ChannelPeer    `json:"peer"`
	Sender       *ChannelSender `json:"sender,omitempty"`
	Text         string         `json:"text"`
	Media        []ChannelMedia `json:"media,omitempty"`
	ReplyToID    string         `json:"replyToId,omitempty"`
	ReplyToText  string         `json:"replyToText,omitempty"`
	Timestamp    time.Time      `json:"timestamp,omitempty"`
	WasMentioned bool           `json:"wasMentioned,omitempty"`
}

// ChannelOutboundMessage is what the core hands back to an adapter to send.
type ChannelOutboundMessage struct {
	Peer      ChannelPeer    `json:"peer"`
	Text      string         `json:"text"`
	Media     []ChannelMedia `json:"media,omitempty"`
	ReplyToID string         `json:"replyToId,omitempty"`
}

// ChannelAccountStatus reports adapter-side connectivity for an account.
type ChannelAccountStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	LastPing  int64  `json:"lastPing,omitempty"`
}

// InboundEnvelope is the pipeline's normalized view of one admitted inbound
// message, used as input to DeriveSessionKey and downstream dispatch.
type InboundEnvelope struct {
	Channel      ChannelType
	AccountID    string
	Peer         ChannelPeer
	Sender       *ChannelSender
	Message      ChannelInboundMessage
	WasMentioned bool
}

// EffectiveSenderID returns sender.id if present, else peer.id, per the
// admission rule in the inbound pipeline.
func (e *InboundEnvelope) EffectiveSenderID() string {
	if e.Sender != nil && e.Sender.ID != "" {
		return e.Sender.ID
	}
	return e.Peer.ID
}
