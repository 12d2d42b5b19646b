// Package session implements the per-conversation session agent actor: the
// message queue, LLM agent loop, tool-call fan-out and timeout, directive
// overrides, transcript archival, and reset/compact policies.
//
// Each session key owns exactly one Actor, a goroutine draining a closure
// mailbox (the "goroutine that serializes all mutation through a request
// channel" option from the design notes) so every read and mutation of the
// session's in-memory state is strictly ordered without a mutex.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// ThinkingLevel enumerates per-turn reasoning-effort overrides.
type ThinkingLevel string

const (
	ThinkingNone    ThinkingLevel = "none"
	ThinkingMinimal ThinkingLevel = "minimal"
	ThinkingLow     ThinkingLevel = "low"
	ThinkingMedium  ThinkingLevel = "medium"
	ThinkingHigh    ThinkingLevel = "high"
	ThinkingXHigh   ThinkingLevel = "xhigh"
)

// Overrides are per-message settings carried by directives or explicit
// chatSend callers, layered over the session's persisted Settings.
type Overrides struct {
	Model    string        `json:"model,omitempty"`
	Thinking ThinkingLevel `json:"thinking,omitempty"`
}

// DeliveryContext carries the originating channel context for a chatSend so
// the reply router (and the native message tool) know where to deliver
// output; nil for client-originated chats.
type DeliveryContext struct {
	Channel    models.ChannelType
	AccountID  string
	Peer       models.ChannelPeer
	InboundMsg string
}

// ChatSendRequest is the input to Actor.ChatSend.
type ChatSendRequest struct {
	RunID      string
	Text       string
	Tools      []models.ToolDefinition
	Nodes      []string // connected node ids, informational snapshot for the LLM context
	Overrides  *Overrides
	Media      []models.Attachment
	Delivery   *DeliveryContext
}

// ChatSendResult answers a ChatSend call.
type ChatSendResult struct {
	Status string `json:"status"` // "started" | "queued"
	RunID  string `json:"runId"`
}

// ChatEventState enumerates the chat event lifecycle.
type ChatEventState string

const (
	ChatPartial ChatEventState = "partial"
	ChatFinal   ChatEventState = "final"
	ChatError   ChatEventState = "error"
)

// ChatEvent is emitted to the reply router / subscribed clients.
type ChatEvent struct {
	RunID      string          `json:"runId"`
	SessionKey string          `json:"sessionKey"`
	State      ChatEventState  `json:"state"`
	Message    *models.Message `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	// Heartbeat marks a run started by the scheduler's heartbeat loop, so
	// the reply router applies HEARTBEAT_OK suppression and 24h dedup.
	Heartbeat bool `json:"-"`
}

// EventSink receives chat events as the agent loop progresses.
type EventSink interface {
	Emit(ctx context.Context, event ChatEvent)
}

// EventSinkFunc adapts a function to an EventSink.
type EventSinkFunc func(ctx context.Context, event ChatEvent)

func (f EventSinkFunc) Emit(ctx context.Context, event ChatEvent) { f(ctx, event) }

// CompletionRequest is what the actor hands the LLM collaborator.
type CompletionRequest struct {
	SystemPrompt string
	Messages     []models.Message
	Tools        []models.ToolDefinition
	Model        string
	Thinking     ThinkingLevel
}

// CompletionResponse is the LLM collaborator's reply.
type CompletionResponse struct {
	Message      models.Message
	InputTokens  int64
	OutputTokens int64
}

// LLM is the collaborator the agent loop calls. internal/llm binds it to
// the Anthropic Messages API via anthropic-sdk-go.
type LLM interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// ToolInvoker is the subset of toolrouter.Router the actor depends on.
type ToolInvoker interface {
	Invoke(ctx context.Context, tool string, args []byte, route models.CallRoute) (any, bool, error)
}

// Archiver persists a transcript snapshot to the blob layout.
type Archiver interface {
	Archive(ctx context.Context, agentID, sessionID string, part int, messages []models.Message, tokens ArchiveTokens) (string, error)
}

// ArchiveTokens records the counters written into archive custom metadata.
type ArchiveTokens struct {
	InputTokens  int64
	OutputTokens int64
}

// pendingToolCall tracks one fanned-out tool call within the current turn.
type pendingToolCall struct {
	tool      string
	args      json.RawMessage
	result    json.RawMessage
	errMsg    string
	resolved  bool
	dispatched bool
}

// ResetResult answers Actor.Reset.
type ResetResult struct {
	OldSessionID string `json:"oldSessionId"`
	NewSessionID string `json:"newSessionId"`
}

// AbortResult answers Actor.Abort.
type AbortResult struct {
	WasRunning           bool   `json:"wasRunning"`
	RunID                string `json:"runId,omitempty"`
	PendingToolsCancelled int   `json:"pendingToolsCancelled"`
}

// PatchRequest is the shallow-merge input to Actor.Patch.
type PatchRequest struct {
	Settings    map[string]any      `json:"settings,omitempty"`
	Label       *string             `json:"label,omitempty"`
	ResetPolicy *models.ResetPolicy `json:"resetPolicy,omitempty"`
}

// Stats is the read view for session.stats.
type Stats struct {
	SessionID    string    `json:"sessionId"`
	MessageCount int       `json:"messageCount"`
	InputTokens  int64     `json:"inputTokens"`
	OutputTokens int64     `json:"outputTokens"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Running      bool      `json:"running"`
}

// clock is overridable for deterministic tests (matches the
// scheduler.WithNow pattern).
type clock func() time.Time
