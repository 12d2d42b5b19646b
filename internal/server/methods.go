package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ruizzmauri/gsv-sub000/internal/gateway"
	"github.com/ruizzmauri/gsv-sub000/internal/session"
	"github.com/ruizzmauri/gsv-sub000/internal/skills"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// registerMethods wires every RPC method (connect is handled separately by
// the dispatcher's ConnectHandler).
func (s *Server) registerMethods() {
	s.dispatch.Register("config.get", s.handleConfigGet)
	s.dispatch.Register("config.set", s.handleConfigSet)

	s.dispatch.Register("pair.list", s.handlePairList)
	s.dispatch.Register("pair.approve", s.handlePairApprove)
	s.dispatch.Register("pair.deny", s.handlePairDeny)

	s.dispatch.Register("sessions.list", s.handleSessionsList)
	s.dispatch.Register("session.get", s.handleSessionGet)
	s.dispatch.Register("session.patch", s.handleSessionPatch)
	s.dispatch.Register("session.stats", s.handleSessionStats)
	s.dispatch.Register("session.preview", s.handleSessionPreview)

	s.dispatch.Register("chat.send", s.handleChatSend)
	s.dispatch.Register("channel.inbound", s.handleChannelInbound)

	s.dispatch.Register("tool.invoke", s.handleToolInvoke)
	s.dispatch.Register("tool.result", s.handleToolResult)
	s.dispatch.Register("node.probe.result", s.handleNodeProbeResult)
	s.dispatch.Register("node.exec.event", s.handleNodeExecEvent)

	s.dispatch.Register("logs.get", s.handleLogsGet)
	s.dispatch.Register("logs.result", s.handleLogsResult)

	s.dispatch.Register("heartbeat.status", s.handleHeartbeatStatus)
	s.dispatch.Register("heartbeat.trigger", s.handleHeartbeatTrigger)

	s.dispatch.Register("cron.status", s.handleCronStatus)
	s.dispatch.Register("cron.list", s.handleCronList)
	s.dispatch.Register("cron.add", s.handleCronAdd)
	s.dispatch.Register("cron.update", s.handleCronUpdate)
	s.dispatch.Register("cron.remove", s.handleCronRemove)
	s.dispatch.Register("cron.run", s.handleCronRun)
	s.dispatch.Register("cron.runs", s.handleCronRuns)

	s.dispatch.Register("skills.status", s.handleSkillsStatus)
	s.dispatch.Register("skills.refresh", s.handleSkillsRefresh)
}

func rpcErrf(code int, format string, args ...any) error {
	return &models.RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// --- config ---

type configGetParams struct {
	Path string `json:"path,omitempty"`
}

func (s *Server) handleConfigGet(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p configGetParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, rpcErrf(400, "invalid config.get params")
		}
	}
	value, ok := s.cfg.Get(p.Path)
	if !ok {
		return nil, rpcErrf(404, "unknown config path: %s", p.Path)
	}
	return value, nil
}

type configSetParams struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (s *Server) handleConfigSet(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p configSetParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid config.set params")
	}
	if err := s.cfg.Set(ctx, p.Path, p.Value); err != nil {
		return nil, fmt.Errorf("config.set: %w", err)
	}
	return map[string]any{"ok": true}, nil
}

// --- pairing ---

type pairSenderParams struct {
	Channel  string `json:"channel"`
	SenderID string `json:"senderId"`
}

func (s *Server) handlePairList(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	records, err := s.pairing.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("pair.list: %w", err)
	}
	return map[string]any{"pending": records}, nil
}

func (s *Server) handlePairApprove(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p pairSenderParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid pair.approve params")
	}
	if err := s.pairing.Approve(ctx, models.ChannelType(p.Channel), p.SenderID); err != nil {
		return nil, fmt.Errorf("pair.approve: %w", err)
	}
	path := "channels." + p.Channel + ".allowFrom"
	current, _ := s.cfg.Get(path)
	allowFrom, _ := current.([]any)
	allowFrom = append(allowFrom, p.SenderID)
	if err := s.cfg.Set(ctx, path, allowFrom); err != nil {
		return nil, fmt.Errorf("pair.approve: persist allowlist: %w", err)
	}
	return map[string]any{"ok": true}, nil
}

func (s *Server) handlePairDeny(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p pairSenderParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid pair.deny params")
	}
	if err := s.pairing.Deny(ctx, models.ChannelType(p.Channel), p.SenderID); err != nil {
		return nil, fmt.Errorf("pair.deny: %w", err)
	}
	return map[string]any{"ok": true}, nil
}

// --- sessions ---

func (s *Server) handleSessionsList(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	entries, err := s.sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("sessions.list: %w", err)
	}
	return map[string]any{"sessions": entries}, nil
}

type sessionKeyParams struct {
	SessionKey string `json:"sessionKey"`
	AgentID    string `json:"agentId,omitempty"`
}

func (s *Server) handleSessionGet(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p sessionKeyParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid session.get params")
	}
	actor := s.sessions.Get(ctx, p.SessionKey, p.AgentID)
	return actor.Get(ctx), nil
}

type sessionPatchParams struct {
	SessionKey string                `json:"sessionKey"`
	AgentID    string                `json:"agentId,omitempty"`
	Patch      session.PatchRequest  `json:"patch"`
}

func (s *Server) handleSessionPatch(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p sessionPatchParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid session.patch params")
	}
	actor := s.sessions.Get(ctx, p.SessionKey, p.AgentID)
	actor.Patch(ctx, p.Patch)
	return actor.Get(ctx), nil
}

func (s *Server) handleSessionStats(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p sessionKeyParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid session.stats params")
	}
	actor := s.sessions.Get(ctx, p.SessionKey, p.AgentID)
	return actor.Stats(ctx), nil
}

type sessionPreviewParams struct {
	SessionKey string `json:"sessionKey"`
	AgentID    string `json:"agentId,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

func (s *Server) handleSessionPreview(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p sessionPreviewParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid session.preview params")
	}
	actor := s.sessions.Get(ctx, p.SessionKey, p.AgentID)
	return map[string]any{"messages": actor.Preview(ctx, p.Limit)}, nil
}

// --- chat ---

type chatSendParams struct {
	SessionKey string              `json:"sessionKey"`
	AgentID    string              `json:"agentId,omitempty"`
	RunID      string              `json:"runId,omitempty"`
	Text       string              `json:"text"`
	Overrides  *session.Overrides  `json:"overrides,omitempty"`
}

func (s *Server) handleChatSend(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p chatSendParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid chat.send params")
	}
	if p.RunID == "" {
		p.RunID = uuid.NewString()
	}
	actor := s.sessions.Get(ctx, p.SessionKey, p.AgentID)
	res := actor.ChatSend(ctx, session.ChatSendRequest{
		RunID:     p.RunID,
		Text:      p.Text,
		Tools:     s.toolsSnapshot(),
		Nodes:     s.nodesSnapshot(),
		Overrides: p.Overrides,
	})
	return res, nil
}

type channelInboundParams struct {
	Channel   string                        `json:"channel"`
	AccountID string                        `json:"accountId"`
	Message   models.ChannelInboundMessage  `json:"message"`
}

func (s *Server) handleChannelInbound(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p channelInboundParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid channel.inbound params")
	}
	res, err := s.pipeline.HandleInbound(ctx, models.ChannelType(p.Channel), p.AccountID, p.Message)
	if err != nil {
		return nil, fmt.Errorf("channel.inbound: %w", err)
	}
	return res, nil
}

// --- tool invocation ---

type toolInvokeParams struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// handleToolInvoke is the client-originated counterpart to the tool router:
// a directly-connected client may invoke a node-backed tool the same way a
// session actor does. The call is deferred until tool.result (or a later
// session-routed resolution) arrives; resolveDeferredToolCall writes the
// ResFrame directly to this peer's transport.
func (s *Server) handleToolInvoke(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p toolInvokeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid tool.invoke params")
	}
	route := models.CallRoute{Kind: models.RouteClient, ClientID: peer.ID, FrameID: frame.ID}
	result, resolved, err := s.router.Invoke(ctx, p.Tool, p.Args, route)
	if resolved {
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return gateway.Deferred, nil
}

// handleToolResult is the node->gateway frame answering a previously
// dispatched tool.invoke. It resolves the pending call's route and either
// hands the result to the owning session actor or writes a ResFrame
// straight to the waiting client's transport.
func (s *Server) handleToolResult(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var result models.ToolInvokeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, rpcErrf(400, "invalid tool.result params")
	}
	route, ok := s.router.Resolve(result)
	if !ok {
		return map[string]any{"ok": false}, nil
	}
	s.deliverToolResult(ctx, route, result)
	return map[string]any{"ok": true}, nil
}

func (s *Server) deliverToolResult(ctx context.Context, route models.CallRoute, result models.ToolInvokeResult) {
	switch route.Kind {
	case models.RouteSession:
		actor := s.sessions.Get(ctx, route.SessionKey, "")
		actor.ToolResult(ctx, result.CallID, result.Result, result.Error)
	case models.RouteClient:
		client, ok := s.registry.Get(models.PeerModeClient, route.ClientID)
		if !ok || client.Transport == nil {
			return
		}
		resFrame := gateway.ResFrame{Type: "res", ID: route.FrameID, OK: result.Error == nil, Payload: result.Result, Error: result.Error}
		if err := client.Transport.WriteFrame(resFrame); err != nil {
			s.log.Warn("tool.result delivery to client failed", "clientId", route.ClientID, "error", err)
		}
	}
}

// --- node probes / async exec ---

func (s *Server) handleNodeProbeResult(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var result skills.ProbeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, rpcErrf(400, "invalid node.probe.result params")
	}
	s.probes.Resolve(result, time.Now())
	return map[string]any{"ok": true}, nil
}

func (s *Server) handleNodeExecEvent(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var event models.AsyncExecEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, rpcErrf(400, "invalid node.exec.event params")
	}
	s.asyncx.Observe(event, time.Now())
	return map[string]any{"ok": true}, nil
}

// --- deferred log streaming ---

type logsGetParams struct {
	NodeID string `json:"nodeId"`
}

// handleLogsGet dispatches a log request to the named node and defers the
// response until logs.result answers, the same long-polling shape as
// client-routed tool.invoke.
func (s *Server) handleLogsGet(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p logsGetParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid logs.get params")
	}
	node, ok := s.registry.Get(models.PeerModeNode, p.NodeID)
	if !ok || node.Transport == nil {
		return nil, rpcErrf(503, "node not connected: %s", p.NodeID)
	}
	route := models.CallRoute{Kind: models.RouteClient, ClientID: peer.ID, FrameID: frame.ID}
	s.logWaiters.register(p.NodeID, route)
	if err := node.Transport.WriteFrame(gateway.EvtFrame{Type: "evt", Event: "logs.get", Payload: map[string]any{"clientId": peer.ID}}); err != nil {
		s.logWaiters.take(p.NodeID)
		return nil, rpcErrf(503, "node write failed")
	}
	return gateway.Deferred, nil
}

type logsResultParams struct {
	NodeID string `json:"nodeId"`
	Lines  []string `json:"lines"`
	Error  *models.RPCError `json:"error,omitempty"`
}

func (s *Server) handleLogsResult(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p logsResultParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid logs.result params")
	}
	route, ok := s.logWaiters.take(p.NodeID)
	if !ok {
		return map[string]any{"ok": false}, nil
	}
	client, ok := s.registry.Get(models.PeerModeClient, route.ClientID)
	if ok && client.Transport != nil {
		resFrame := gateway.ResFrame{Type: "res", ID: route.FrameID, OK: p.Error == nil, Payload: map[string]any{"lines": p.Lines}, Error: p.Error}
		if err := client.Transport.WriteFrame(resFrame); err != nil {
			s.log.Warn("logs.result delivery to client failed", "clientId", route.ClientID, "error", err)
		}
	}
	return map[string]any{"ok": true}, nil
}

// --- heartbeat ---

type agentIDParams struct {
	AgentID string `json:"agentId"`
}

func (s *Server) handleHeartbeatStatus(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p agentIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid heartbeat.status params")
	}
	state, ok, err := s.heartbeats.Load(ctx, p.AgentID)
	if err != nil {
		return nil, fmt.Errorf("heartbeat.status: %w", err)
	}
	if !ok {
		return map[string]any{"scheduled": false}, nil
	}
	return map[string]any{"scheduled": true, "state": state}, nil
}

func (s *Server) handleHeartbeatTrigger(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p agentIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid heartbeat.trigger params")
	}
	if _, err := s.heartbeats.Patch(ctx, p.AgentID, true, func(st *models.HeartbeatState) error {
		st.NextHeartbeatAt = time.Now()
		return nil
	}); err != nil {
		return nil, fmt.Errorf("heartbeat.trigger: %w", err)
	}
	return map[string]any{"ok": true}, nil
}

// --- cron ---

func (s *Server) handleCronStatus(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	jobs, err := s.cronJobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("cron.status: %w", err)
	}
	due := 0
	for _, j := range jobs {
		if j.Enabled {
			due++
		}
	}
	return map[string]any{"total": len(jobs), "enabled": due}, nil
}

func (s *Server) handleCronList(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	jobs, err := s.cronJobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("cron.list: %w", err)
	}
	return map[string]any{"jobs": jobs}, nil
}

type cronAddParams struct {
	Name     string              `json:"name"`
	AgentID  string              `json:"agentId"`
	Schedule models.CronSchedule `json:"schedule"`
	Spec     models.CronSpec     `json:"spec"`
	Enabled  *bool               `json:"enabled,omitempty"`
}

func (s *Server) handleCronAdd(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p cronAddParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid cron.add params")
	}
	jobs, err := s.cronJobs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("cron.add: %w", err)
	}
	if limit := s.maxCronJobs(); limit > 0 && len(jobs) >= limit {
		return nil, rpcErrf(400, "cron job limit reached (%d)", limit)
	}

	next, ok, err := nextCronRunOrNow(p.Schedule)
	if err != nil {
		return nil, rpcErrf(400, "invalid schedule: %v", err)
	}

	now := time.Now()
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	id := uuid.NewString()
	job := models.CronJob{
		ID:        id,
		Name:      p.Name,
		AgentID:   p.AgentID,
		Schedule:  p.Schedule,
		Spec:      p.Spec,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if ok {
		job.State.NextRunAtMs = next.UnixMilli()
	}
	if err := s.cronJobs.Create(ctx, id, job); err != nil {
		return nil, fmt.Errorf("cron.add: %w", err)
	}
	return job, nil
}

type cronUpdateParams struct {
	ID       string               `json:"id"`
	Name     *string              `json:"name,omitempty"`
	Schedule *models.CronSchedule `json:"schedule,omitempty"`
	Spec     *models.CronSpec     `json:"spec,omitempty"`
	Enabled  *bool                `json:"enabled,omitempty"`
}

func (s *Server) handleCronUpdate(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p cronUpdateParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid cron.update params")
	}
	job, err := s.cronJobs.Patch(ctx, p.ID, false, func(j *models.CronJob) error {
		if p.Name != nil {
			j.Name = *p.Name
		}
		if p.Enabled != nil {
			j.Enabled = *p.Enabled
		}
		if p.Spec != nil {
			j.Spec = *p.Spec
		}
		if p.Schedule != nil {
			j.Schedule = *p.Schedule
			if next, ok, err := nextCronRunOrNow(j.Schedule); err == nil && ok {
				j.State.NextRunAtMs = next.UnixMilli()
			}
		}
		j.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, rpcErrf(404, "unknown cron job: %s", p.ID)
	}
	return job, nil
}

type cronIDParams struct {
	ID string `json:"id"`
}

func (s *Server) handleCronRemove(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p cronIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid cron.remove params")
	}
	if err := s.cronJobs.Delete(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("cron.remove: %w", err)
	}
	return map[string]any{"ok": true}, nil
}

// handleCronRun fires a cron job immediately by moving its nextRunAt into
// the past; the scheduler's next tick picks it up, matching the "run now"
// affordance other cron systems expose as a distinct code path.
func (s *Server) handleCronRun(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p cronIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid cron.run params")
	}
	job, err := s.cronJobs.Patch(ctx, p.ID, false, func(j *models.CronJob) error {
		j.State.NextRunAtMs = time.Now().Add(-time.Second).UnixMilli()
		return nil
	})
	if err != nil {
		return nil, rpcErrf(404, "unknown cron job: %s", p.ID)
	}
	return job, nil
}

func (s *Server) handleCronRuns(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	var p cronIDParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, rpcErrf(400, "invalid cron.runs params")
	}
	runs, err := s.cronRuns.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("cron.runs: %w", err)
	}
	out := make([]models.CronRunRecord, 0)
	for _, r := range runs {
		if r.JobID == p.ID {
			out = append(out, r)
		}
	}
	return map[string]any{"runs": out}, nil
}

// --- skills ---

func (s *Server) handleSkillsStatus(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	all := s.skillsM.List()
	nodes := s.nodesSnapshot()
	eligible := s.gating.Filter(all, nodes)
	return map[string]any{"total": len(all), "eligible": eligible}, nil
}

func (s *Server) handleSkillsRefresh(ctx context.Context, peer *gateway.Peer, raw json.RawMessage, frame *gateway.ReqFrame) (gateway.HandlerResult, error) {
	if err := s.skillsM.Refresh(); err != nil {
		return nil, fmt.Errorf("skills.refresh: %w", err)
	}
	return map[string]any{"skills": s.skillsM.List()}, nil
}
