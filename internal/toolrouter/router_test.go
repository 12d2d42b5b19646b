package toolrouter

import (
	"context"
	"log/slog"
	"testing"

	"github.com/ruizzmauri/gsv-sub000/internal/gateway"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

type fakeTransport struct {
	frames []any
}

func (f *fakeTransport) WriteFrame(frame any) error {
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func connectNode(t *testing.T, reg *gateway.Registry, id string, tools ...string) *fakeTransport {
	t.Helper()
	defs := make(map[string]models.ToolDefinition, len(tools))
	for _, name := range tools {
		defs[name] = models.ToolDefinition{Name: name}
	}
	tr := &fakeTransport{}
	reg.Connect(&gateway.Peer{
		Mode:      models.PeerModeNode,
		ID:        id,
		Transport: tr,
		Tools:     defs,
		Runtime:   &models.NodeRuntime{HostRole: models.HostRoleExecution},
	})
	return tr
}

func TestRouterRejectsUnnamespacedSharedTool(t *testing.T) {
	reg := gateway.NewRegistry(slog.Default())
	connectNode(t, reg, "execNode", "shared_route_tool")
	connectNode(t, reg, "otherNode", "shared_route_tool")

	router := NewRouter(reg, nil)

	_, _, err := router.Invoke(context.Background(), "shared_route_tool", nil, models.CallRoute{Kind: models.RouteClient, ClientID: "c1"})
	if err == nil {
		t.Fatalf("expected error for unnamespaced shared tool name")
	}
	rpcErr, ok := err.(*models.RPCError)
	if !ok {
		t.Fatalf("expected *models.RPCError, got %T", err)
	}
	if rpcErr.Message != "No node provides tool" {
		t.Fatalf("error message = %q, want %q", rpcErr.Message, "No node provides tool")
	}
}

func TestRouterDispatchesNamespacedToolToOwningNodeOnly(t *testing.T) {
	reg := gateway.NewRegistry(slog.Default())
	execTransport := connectNode(t, reg, "execNode", "shared_route_tool")
	otherTransport := connectNode(t, reg, "otherNode", "shared_route_tool")

	router := NewRouter(reg, nil)

	result, done, err := router.Invoke(context.Background(), "execNode__shared_route_tool", nil, models.CallRoute{Kind: models.RouteClient, ClientID: "c1"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if done {
		t.Fatalf("node-backed invoke should defer (done=false) pending tool.result")
	}
	if _, ok := result.(map[string]string)["callId"]; !ok {
		t.Fatalf("expected a callId in the pending response, got %v", result)
	}

	if len(execTransport.frames) != 1 {
		t.Fatalf("execNode should receive exactly one tool.invoke frame, got %d", len(execTransport.frames))
	}
	if len(otherTransport.frames) != 0 {
		t.Fatalf("otherNode should receive no frames, got %d", len(otherTransport.frames))
	}
}

func TestRouterResolveDeliversToOriginalRoute(t *testing.T) {
	reg := gateway.NewRegistry(slog.Default())
	connectNode(t, reg, "execNode", "shared_route_tool")
	router := NewRouter(reg, nil)

	route := models.CallRoute{Kind: models.RouteClient, ClientID: "c1", FrameID: "f1"}
	result, _, err := router.Invoke(context.Background(), "execNode__shared_route_tool", nil, route)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	callID := result.(map[string]string)["callId"]

	gotRoute, ok := router.Resolve(models.ToolInvokeResult{CallID: callID, Result: []byte(`"ok"`)})
	if !ok {
		t.Fatalf("Resolve: callId not found")
	}
	if gotRoute.ClientID != "c1" || gotRoute.FrameID != "f1" {
		t.Fatalf("Resolve route = %+v, want clientID=c1 frameID=f1", gotRoute)
	}

	if _, ok := router.Resolve(models.ToolInvokeResult{CallID: callID}); ok {
		t.Fatalf("second Resolve for the same callId should not find a pending route")
	}
}

func TestRouterUnknownTool(t *testing.T) {
	reg := gateway.NewRegistry(slog.Default())
	router := NewRouter(reg, nil)

	_, _, err := router.Invoke(context.Background(), "missingNode__tool", nil, models.CallRoute{Kind: models.RouteClient, ClientID: "c1"})
	rpcErr, ok := err.(*models.RPCError)
	if !ok {
		t.Fatalf("expected *models.RPCError, got %T (%v)", err, err)
	}
	if rpcErr.Message != "No node provides tool" {
		t.Fatalf("message = %q, want %q", rpcErr.Message, "No node provides tool")
	}
}
