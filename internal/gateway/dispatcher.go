package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// HandlerResult is what a method handler returns: either a payload (wrapped
// in a ResFrame by the dispatcher) or Deferred (the handler itself, or a
// later event, will write the ResFrame — used by long-polling calls such as
// logs.get and client-routed tool.invoke).
type HandlerResult any

// Handler processes one req frame's params for a connected peer.
type Handler func(ctx context.Context, peer *Peer, params json.RawMessage, frame *ReqFrame) (HandlerResult, error)

// ConnectHandler validates a connect request and, on success, returns the
// Peer to register (not yet attached to any transport) plus the payload to
// send back. It is the only handler permitted before a peer is registered.
type ConnectHandler func(ctx context.Context, params json.RawMessage, frame *ReqFrame) (*Peer, any, error)

// Dispatcher is the table-driven method router. connect is handled
// specially (it is the only method permitted before a peer is registered);
// every other method requires an already-connected peer.
type Dispatcher struct {
	registry *Registry
	handlers map[string]Handler
	connect  ConnectHandler
	log      *slog.Logger

	// ConnectHook, if set, runs after a peer is registered and has a live
	// Transport, mirroring Registry.DisconnectHook — the wiring layer uses
	// it to kick off node-only side effects (e.g. skill binary probes) that
	// need a transport to write to, which a ConnectHandler never has.
	ConnectHook func(peer *Peer)
}

// NewDispatcher creates a dispatcher bound to registry. connectHandler
// performs the connect handshake (peer registration); register additional
// methods with Register.
func NewDispatcher(registry *Registry, connectHandler ConnectHandler, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		handlers: make(map[string]Handler),
		connect:  connectHandler,
		log:      log.With("component", "gateway.dispatcher"),
	}
}

// Register adds a method handler. Registering "connect" is rejected; use
// the constructor's connectHandler instead.
func (d *Dispatcher) Register(method string, h Handler) {
	if method == "connect" {
		return
	}
	d.handlers[method] = h
}

// PeerState is attached to a socket's session state once connect
// succeeds; Dispatch needs it to reject non-connect frames from an
// unregistered socket (error kind "Not connected").
type PeerState struct {
	Peer *Peer
}

// Dispatch validates and routes one frame and returns the ResFrame to write.
// It returns nil for a frame that cannot be parsed (logged and ignored) and
// when the handler (or Deferred) defers the response, matching
// "method handler returning either a payload … or a sentinel meaning
// response deferred".
func (d *Dispatcher) Dispatch(ctx context.Context, state *PeerState, transport Transport, raw []byte) (*ResFrame, error) {
	frame, err := ParseFrame(raw)
	if err != nil {
		// Malformed JSON or invalid frame: log and ignore, socket stays open.
		d.log.Warn("malformed frame", "error", err)
		return nil, nil
	}

	if err := ValidateFrame(frame); err != nil {
		return &ResFrame{Type: "res", ID: frame.ID, OK: false, Error: &models.RPCError{
			Code: 400, Message: err.Error(),
		}}, nil
	}

	if frame.Method == "connect" {
		if d.connect == nil {
			return errRes(frame.ID, 500, "connect not configured"), nil
		}
		peer, payload, err := d.connect(ctx, frame.Params, frame)
		if err != nil {
			return &ResFrame{Type: "res", ID: frame.ID, OK: false, Error: toRPCError(err)}, nil
		}
		if peer != nil {
			peer.Transport = transport
			d.registry.Connect(peer)
			state.Peer = peer
			if d.ConnectHook != nil {
				d.ConnectHook(peer)
			}
		}
		return &ResFrame{Type: "res", ID: frame.ID, OK: true, Payload: payload}, nil
	}

	if state == nil || state.Peer == nil {
		return errRes(frame.ID, 101, "not connected"), nil
	}

	handler, ok := d.handlers[frame.Method]
	if !ok {
		return errRes(frame.ID, 404, "unknown method: "+frame.Method), nil
	}

	result, err := handler(ctx, state.Peer, frame.Params, frame)
	if _, deferred := result.(deferredResponse); deferred {
		return nil, nil
	}
	return d.toResFrame(frame, result, err), nil
}

func (d *Dispatcher) toResFrame(frame *ReqFrame, result HandlerResult, err error) *ResFrame {
	if err != nil {
		return &ResFrame{Type: "res", ID: frame.ID, OK: false, Error: toRPCError(err)}
	}
	if _, deferred := result.(deferredResponse); deferred {
		return nil
	}
	return &ResFrame{Type: "res", ID: frame.ID, OK: true, Payload: result}
}

func toRPCError(err error) *models.RPCError {
	if rpcErr, ok := err.(*models.RPCError); ok {
		return rpcErr
	}
	return &models.RPCError{Code: 500, Message: err.Error()}
}

func errRes(id string, code int, message string) *ResFrame {
	return &ResFrame{Type: "res", ID: id, OK: false, Error: &models.RPCError{Code: code, Message: message}}
}
