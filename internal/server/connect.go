package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/gateway"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

type connectClient struct {
	Mode      string `json:"mode"`
	ID        string `json:"id"`
	ChannelID string `json:"channelId,omitempty"`
	AccountID string `json:"accountId,omitempty"`
}

type connectParams struct {
	MinProtocol int                      `json:"minProtocol"`
	Client      connectClient            `json:"client"`
	Tools       []models.ToolDefinition  `json:"tools,omitempty"`
	NodeRuntime *models.NodeRuntime      `json:"nodeRuntime,omitempty"`
	Token       string                   `json:"token,omitempty"`
}

// handleConnect implements §4.3's connect method: the only RPC permitted
// before a socket is registered. A node connect without a well-formed
// nodeRuntime is rejected outright; every other mode is accepted once the
// bearer token (if configured) checks out.
func (s *Server) handleConnect(ctx context.Context, params json.RawMessage, frame *gateway.ReqFrame) (*gateway.Peer, any, error) {
	var p connectParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, nil, &models.RPCError{Code: 400, Message: "invalid connect params"}
	}
	if err := s.verifier.Check(p.Token); err != nil {
		return nil, nil, err
	}
	if p.Client.Mode == "" || p.Client.ID == "" {
		return nil, nil, &models.RPCError{Code: 400, Message: "client.mode and client.id are required"}
	}

	mode := models.PeerMode(p.Client.Mode)
	peer := &gateway.Peer{Mode: mode, ID: p.Client.ID}

	switch mode {
	case models.PeerModeNode:
		if !p.NodeRuntime.Valid() {
			return nil, nil, &models.RPCError{Code: 400, Message: "Invalid nodeRuntime"}
		}
		peer.Runtime = p.NodeRuntime
		peer.Tools = toolsByName(p.Tools)
		s.probes.OnReconnect(p.Client.ID, time.Now())
	case models.PeerModeChannel:
		peer.ChannelKey = p.Client.ChannelID + ":" + p.Client.AccountID
	case models.PeerModeClient:
		// no additional fields.
	default:
		return nil, nil, &models.RPCError{Code: 400, Message: "unknown client.mode: " + p.Client.Mode}
	}

	return peer, map[string]any{"ok": true}, nil
}

// onPeerConnected fires once a newly connected peer has a live transport.
// A node is immediately probed for every binary any configured skill's
// Requires could gate on, so GatingContext.Eligible has a BinStatus to
// check on the first turn that offers a Requires-gated skill instead of
// denying it until the scheduler's periodic retry happens to cover it.
func (s *Server) onPeerConnected(peer *gateway.Peer) {
	if peer.Mode != models.PeerModeNode || peer.Transport == nil {
		return
	}
	if _, alreadyProbed := s.probes.BinStatus(peer.ID); alreadyProbed {
		// OnReconnect (above) already rescheduled any probe this node had
		// pending across the reconnect; a node we already have a result
		// for does not need a second, duplicate probe.
		return
	}
	bins := s.gating.RequiredBins(s.skillsM.List())
	if len(bins) == 0 {
		return
	}
	pending := s.probes.Dispatch(peer.ID, bins, time.Now())
	frame := gateway.EvtFrame{Type: "evt", Event: "node.probe", Payload: map[string]any{
		"probeId":   pending.ProbeID,
		"kind":      "bins",
		"bins":      pending.Bins,
		"timeoutMs": pending.MaxAge.Milliseconds(),
	}}
	if err := peer.Transport.WriteFrame(frame); err != nil {
		s.log.Warn("initial skill probe failed", "nodeId", peer.ID, "probeId", pending.ProbeID, "error", err)
	}
}

func toolsByName(defs []models.ToolDefinition) map[string]models.ToolDefinition {
	out := make(map[string]models.ToolDefinition, len(defs))
	for _, d := range defs {
		out[d.Name] = d
	}
	return out
}
