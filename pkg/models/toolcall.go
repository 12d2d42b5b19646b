package models

import (
	"encoding/json"
	"time"
)

// RouteKind discriminates who is waiting on a pending tool call's result.
type RouteKind string

const (
	RouteSession RouteKind = "session"
	RouteClient  RouteKind = "client"
)

// CallRoute is the delivery target for a pending tool call's result.
type CallRoute struct {
	Kind       RouteKind `json:"kind"`
	SessionKey string    `json:"sessionKey,omitempty"`
	ClientID   string    `json:"clientId,omitempty"`
	FrameID    string    `json:"frameId,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// PendingToolCall tracks one dispatched, unresolved tool invocation.
type PendingToolCall struct {
	CallID string          `json:"callId"`
	Tool   string          `json:"tool"`
	Args   json.RawMessage `json:"args"`
	Route  CallRoute       `json:"route"`
}

// ToolInvokeResult is what a node reports back for a dispatched call.
type ToolInvokeResult struct {
	CallID string          `json:"callId"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// AsyncExecEventKind enumerates the node.exec.event kinds.
type AsyncExecEventKind string

const (
	ExecStarted   AsyncExecEventKind = "started"
	ExecFinished  AsyncExecEventKind = "finished"
	ExecFailed    AsyncExecEventKind = "failed"
	ExecTimedOut  AsyncExecEventKind = "timed_out"
)

// IsTerminal reports whether the event kind ends the async-exec session.
func (k AsyncExecEventKind) IsTerminal() bool {
	return k == ExecFinished || k == ExecFailed || k == ExecTimedOut
}

// AsyncExecEvent is a node.exec.event payload.
type AsyncExecEvent struct {
	SessionID string             `json:"sessionId"`
	Event     AsyncExecEventKind `json:"event"`
	CallID    string             `json:"callId,omitempty"`
	ExitCode  *int               `json:"exitCode,omitempty"`
	Signal    string             `json:"signal,omitempty"`
	OutputTail string            `json:"outputTail,omitempty"`
	StartedAt time.Time          `json:"startedAt,omitempty"`
	EndedAt   time.Time          `json:"endedAt,omitempty"`
}

// PendingAsyncExecSession correlates a long-running shell exec across the
// initial tool.invoke response and its later node.exec.event stream.
type PendingAsyncExecSession struct {
	NodeID     string    `json:"nodeId"`
	SessionID  string    `json:"sessionId"`
	SessionKey string    `json:"sessionKey"`
	CallID     string    `json:"callId"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// PendingAsyncExecDelivery is a terminal async-exec event queued for
// delivery to the originating session, with retry bookkeeping.
type PendingAsyncExecDelivery struct {
	EventID       string         `json:"eventId"`
	Event         AsyncExecEvent `json:"event"`
	SessionKey    string         `json:"sessionKey"`
	Attempts      int            `json:"attempts"`
	NextAttemptAt time.Time      `json:"nextAttemptAt"`
	ExpiresAt     time.Time      `json:"expiresAt"`
}

// PendingNodeProbe is a capability check issued to a node, redispatched with
// the same probeId on reconnect until it is answered or garbage-collected.
type PendingNodeProbe struct {
	ProbeID   string    `json:"probeId"`
	NodeID    string    `json:"nodeId"`
	AgentID   string    `json:"agentId"`
	Kind      string    `json:"kind"` // "bins"
	Bins      []string  `json:"bins"`
	TimeoutMs int64     `json:"timeoutMs"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
	SentAt    time.Time `json:"sentAt,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// RPCError is the standard {code, message, details?, retryable?} wire shape.
type RPCError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *RPCError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
