// Package toolrouter advertises node-backed tools under the
// nodeId__toolName namespace, dispatches tool.invoke calls to the owning
// node, and correlates tool.result frames back to the caller that issued
// the call — session actor or a directly-connected client.
package toolrouter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ruizzmauri/gsv-sub000/internal/gateway"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// Separator joins a node id and its tool name in the advertised surface.
const Separator = "__"

// NativeTool is a tool the gateway itself implements (not node-backed).
type NativeTool struct {
	Def     models.ToolDefinition
	Invoke  func(ctx context.Context, args []byte) (any, error)
}

// Router aggregates native tools with every connected node's advertised
// tools and dispatches tool.invoke calls accordingly.
type Router struct {
	registry *gateway.Registry
	natives  map[string]NativeTool
	metrics  *gateway.Metrics

	// AsyncExec tracks long-running shell.exec-capable tool calls across
	// their tool.invoke dispatch and the node's later node.exec.event
	// stream (§4.5). Set post-construction, like Registry.DisconnectHook,
	// since the tracker and the router are constructed independently.
	AsyncExec *AsyncExecTracker

	mu       sync.Mutex
	pending  map[string]models.PendingToolCall // callId -> route
	callNode map[string]string                 // callId -> owning nodeId
}

// NewRouter creates a Router bound to registry.
func NewRouter(registry *gateway.Registry, metrics *gateway.Metrics) *Router {
	return &Router{
		registry: registry,
		natives:  make(map[string]NativeTool),
		metrics:  metrics,
		pending:  make(map[string]models.PendingToolCall),
		callNode: make(map[string]string),
	}
}

// RegisterNative adds a gateway-implemented tool, always available
// regardless of which nodes are connected.
func (r *Router) RegisterNative(t NativeTool) {
	r.natives[t.Def.Name] = t
}

// Advertised returns the full tool surface visible to a session right now:
// every native tool, plus every connected node's tools namespaced
// "nodeId__toolName".
func (r *Router) Advertised() []models.ToolDefinition {
	out := make([]models.ToolDefinition, 0, len(r.natives))
	for _, t := range r.natives {
		out = append(out, t.Def)
	}
	for _, node := range r.registry.Nodes() {
		for name, def := range node.Tools {
			namespaced := def
			namespaced.Name = node.ID + Separator + name
			out = append(out, namespaced)
		}
	}
	return out
}

// lookup splits a namespaced tool name at the first Separator and confirms
// the owning node is still connected and still advertises it.
func (r *Router) lookup(tool string) (nodeID, toolName string, node *gateway.Peer, ok bool) {
	idx := strings.Index(tool, Separator)
	if idx < 0 {
		return "", "", nil, false
	}
	nodeID, toolName = tool[:idx], tool[idx+len(Separator):]
	node, found := r.registry.Get(models.PeerModeNode, nodeID)
	if !found {
		return nodeID, toolName, nil, false
	}
	if _, advertises := node.Tools[toolName]; !advertises {
		return nodeID, toolName, nil, false
	}
	return nodeID, toolName, node, true
}

// Invoke dispatches a tool call. Native tools run inline; node-backed tools
// are sent as a tool.invoke event and the result arrives later via Resolve.
func (r *Router) Invoke(ctx context.Context, tool string, args []byte, route models.CallRoute) (any, bool, error) {
	if native, ok := r.natives[tool]; ok {
		start := time.Now()
		result, err := native.Invoke(ctx, args)
		if r.metrics != nil {
			r.metrics.ToolCallLatency.WithLabelValues(tool).Observe(time.Since(start).Seconds())
		}
		return result, true, err
	}

	nodeID, toolName, node, ok := r.lookup(tool)
	if !ok {
		return nil, true, &models.RPCError{Code: 404, Message: "No node provides tool"}
	}
	if node.Transport == nil {
		return nil, true, &models.RPCError{Code: 503, Message: "node disconnected", Retryable: true}
	}

	callID := uuid.NewString()
	route.CreatedAt = time.Now()
	r.mu.Lock()
	r.pending[callID] = models.PendingToolCall{CallID: callID, Tool: toolName, Args: args, Route: route}
	r.callNode[callID] = nodeID
	r.mu.Unlock()

	err := node.Transport.WriteFrame(gateway.EvtFrame{
		Type:  "evt",
		Event: "tool.invoke",
		Payload: map[string]any{
			"callId": callID,
			"tool":   toolName,
			"args":   args,
		},
	})
	if err != nil {
		r.mu.Lock()
		delete(r.pending, callID)
		delete(r.callNode, callID)
		r.mu.Unlock()
		return nil, true, &models.RPCError{Code: 503, Message: "node write failed", Retryable: true}
	}

	if r.AsyncExec != nil && isExecKind(node, toolName) {
		// The node has no session id of its own yet; callID is the only
		// correlation token it was handed, so it doubles as the async-exec
		// session id the node echoes back on every later node.exec.event.
		r.AsyncExec.Track(nodeID, callID, route.SessionKey, callID, time.Now())
	}

	return map[string]string{"callId": callID}, false, nil
}

// isExecKind reports whether tool on node requires shell.exec capability,
// the marker for a "long-running shell exec" call per §4.5.
func isExecKind(node *gateway.Peer, toolName string) bool {
	if node.Runtime == nil {
		return false
	}
	caps, ok := node.Runtime.ToolCapabilities[toolName]
	if !ok {
		return false
	}
	return caps.Has(models.CapShellExec)
}

// Resolve correlates a tool.result frame by callId and returns the route it
// should be delivered to, removing it from the pending set.
func (r *Router) Resolve(result models.ToolInvokeResult) (models.CallRoute, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending, ok := r.pending[result.CallID]
	if !ok {
		return models.CallRoute{}, false
	}
	delete(r.pending, result.CallID)
	delete(r.callNode, result.CallID)
	return pending.Route, true
}

// CancelForClient drops every pending call whose route is a client-routed
// call from clientID (that client just disconnected), returning the
// dropped calls so the caller can tell the node, if it later answers, that
// nobody is waiting anymore.
func (r *Router) CancelForClient(clientID string) []models.PendingToolCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dropped []models.PendingToolCall
	for id, pending := range r.pending {
		if pending.Route.Kind != models.RouteClient || pending.Route.ClientID != clientID {
			continue
		}
		dropped = append(dropped, pending)
		delete(r.pending, id)
		delete(r.callNode, id)
	}
	return dropped
}

// CancelForNode drops every pending call routed to nodeID (a node that just
// disconnected), returning their routes so callers can be told the tool
// failed rather than hang forever.
func (r *Router) CancelForNode(nodeID string) []models.PendingToolCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	var dropped []models.PendingToolCall
	for id, owner := range r.callNode {
		if owner != nodeID {
			continue
		}
		dropped = append(dropped, r.pending[id])
		delete(r.pending, id)
		delete(r.callNode, id)
	}
	return dropped
}
