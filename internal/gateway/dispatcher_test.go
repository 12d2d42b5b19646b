package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

type fakeTransport struct {
	closed bool
}

func (f *fakeTransport) WriteFrame(frame any) error { return nil }
func (f *fakeTransport) Close() error               { f.closed = true; return nil }

func TestDispatcherConnectHookSeesPeerWithTransport(t *testing.T) {
	registry := NewRegistry(nil)
	var hooked *Peer
	connectHandler := func(ctx context.Context, params json.RawMessage, frame *ReqFrame) (*Peer, any, error) {
		return &Peer{Mode: models.PeerModeClient, ID: "client-1"}, map[string]any{"ok": true}, nil
	}
	d := NewDispatcher(registry, connectHandler, nil)
	d.ConnectHook = func(p *Peer) { hooked = p }

	transport := &fakeTransport{}
	state := &PeerState{}
	params, _ := json.Marshal(map[string]any{
		"minProtocol": 1,
		"client":      map[string]any{"mode": "client", "id": "client-1"},
	})
	raw, _ := json.Marshal(ReqFrame{Type: "req", ID: "1", Method: "connect", Params: params})
	res, err := d.Dispatch(context.Background(), state, transport, raw)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if !res.OK {
		t.Fatalf("connect should succeed, got %+v", res)
	}
	if hooked == nil {
		t.Fatalf("ConnectHook was not called")
	}
	if hooked.Transport != transport {
		t.Fatalf("ConnectHook must observe the peer's Transport already set")
	}
}

func TestDispatcherConnectHookNotCalledOnFailure(t *testing.T) {
	registry := NewRegistry(nil)
	called := false
	connectHandler := func(ctx context.Context, params json.RawMessage, frame *ReqFrame) (*Peer, any, error) {
		return nil, nil, &models.RPCError{Code: 400, Message: "rejected"}
	}
	d := NewDispatcher(registry, connectHandler, nil)
	d.ConnectHook = func(p *Peer) { called = true }

	params, _ := json.Marshal(map[string]any{
		"minProtocol": 1,
		"client":      map[string]any{"mode": "client", "id": "client-1"},
	})
	raw, _ := json.Marshal(ReqFrame{Type: "req", ID: "1", Method: "connect", Params: params})
	res, err := d.Dispatch(context.Background(), &PeerState{}, &fakeTransport{}, raw)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if res.OK {
		t.Fatalf("connect should fail")
	}
	if called {
		t.Fatalf("ConnectHook must not fire when connect is rejected")
	}
}
