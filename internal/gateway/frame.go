package gateway

import (
	"encoding/json"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// ReqFrame is sent by a peer expecting exactly one matching ResFrame.
type ReqFrame struct {
	Type   string          `json:"type"` // "req"
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResFrame answers a prior ReqFrame with the same ID.
type ResFrame struct {
	Type    string           `json:"type"` // "res"
	ID      string           `json:"id"`
	OK      bool             `json:"ok"`
	Payload any              `json:"payload,omitempty"`
	Error   *models.RPCError `json:"error,omitempty"`
}

// EvtFrame is a fire-and-forget event.
type EvtFrame struct {
	Type    string `json:"type"` // "evt"
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// envelope is used only to sniff the "type" discriminator before decoding
// into the concrete frame shape.
type envelope struct {
	Type string `json:"type"`
}

// ParseFrame decodes raw bytes into a ReqFrame. It fails only on malformed
// JSON; it does not check the type discriminator or required fields (that is
// ValidateFrame's job). A parse error is the caller's responsibility to
// log-and-ignore per the protocol rule that a bad frame never closes the
// socket.
func ParseFrame(raw []byte) (*ReqFrame, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	var frame ReqFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, err
	}
	return &frame, nil
}

// deferredResponse is the sentinel a method handler returns to mean "the
// response will be written later" (long-polling calls such as logs.get and
// client-routed tool.invoke).
type deferredResponse struct{}

// Deferred is the handler return value meaning no ResFrame should be
// written now.
var Deferred = deferredResponse{}
