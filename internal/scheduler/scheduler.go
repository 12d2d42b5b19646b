// Package scheduler drives the gateway's unified timer: heartbeats, cron
// jobs, skill-probe timeouts/GC, and async-exec retry/GC are all evaluated
// from a single tick loop rather than one timer per concern, mirroring
// internal/cron/scheduler.go's Start/Stop/tickInterval shape.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ruizzmauri/gsv-sub000/internal/config"
	"github.com/ruizzmauri/gsv-sub000/internal/gateway"
	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/internal/reply"
	"github.com/ruizzmauri/gsv-sub000/internal/session"
	"github.com/ruizzmauri/gsv-sub000/internal/sessionkey"
	"github.com/ruizzmauri/gsv-sub000/internal/skills"
	"github.com/ruizzmauri/gsv-sub000/internal/toolrouter"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

const defaultTickInterval = 1 * time.Second

// Scheduler ties the session manager, config store, peer registry, skill
// probe tracker, and async-exec tracker together and fires the due work on
// every tick.
type Scheduler struct {
	sessions  *session.Manager
	cfgStore  *config.Store
	registry  *gateway.Registry
	probes    *skills.ProbeTracker
	asyncExec *toolrouter.AsyncExecTracker
	pending   *reply.PendingStore
	active    *reply.ActiveContextStore

	cronJobs   *pstore.TypedStore[models.CronJob]
	heartbeats *pstore.TypedStore[models.HeartbeatState]

	log          *slog.Logger
	now          func() time.Time
	tickInterval time.Duration

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNow overrides the clock for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTickInterval overrides the tick period.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// New builds a Scheduler from its collaborators.
func New(
	sessions *session.Manager,
	cfgStore *config.Store,
	registry *gateway.Registry,
	probes *skills.ProbeTracker,
	asyncExec *toolrouter.AsyncExecTracker,
	pending *reply.PendingStore,
	active *reply.ActiveContextStore,
	kv pstore.KV,
	log *slog.Logger,
	opts ...Option,
) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		sessions:     sessions,
		cfgStore:     cfgStore,
		registry:     registry,
		probes:       probes,
		asyncExec:    asyncExec,
		pending:      pending,
		active:       active,
		cronJobs:     pstore.NewTypedStore[models.CronJob](kv, "cron-jobs/"),
		heartbeats:   pstore.NewTypedStore[models.HeartbeatState](kv, "heartbeat-state/"),
		log:          log.With("component", "scheduler"),
		now:          time.Now,
		tickInterval: defaultTickInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the tick loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop ends the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	s.mu.Unlock()
	s.wg.Wait()
}

// Tick evaluates every due source of work once. Exported so tests (and
// RunOnce-style manual drivers) can advance the scheduler without a real
// ticker.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	s.runDueHeartbeats(ctx, now)
	s.runDueCronJobs(ctx, now)
	s.runDueProbes(ctx, now)
	s.runDueAsyncExecDeliveries(ctx, now)
	s.gc(now)
}

// gc drops expired skill probes and async-exec bookkeeping.
func (s *Scheduler) gc(now time.Time) {
	if s.probes != nil {
		for _, p := range s.probes.GC(now) {
			s.log.Warn("skill probe expired without result", "probeId", p.ProbeID, "nodeId", p.NodeID)
		}
	}
	if s.asyncExec != nil {
		for _, sess := range s.asyncExec.GC(now) {
			s.log.Warn("async-exec session expired without terminal event", "sessionId", sess.SessionID, "nodeId", sess.NodeID)
		}
	}
}

// runDueAsyncExecDeliveries redrives queued async-exec deliveries whose
// retry backoff has elapsed, handing each to the owning session actor.
func (s *Scheduler) runDueAsyncExecDeliveries(ctx context.Context, now time.Time) {
	if s.asyncExec == nil {
		return
	}
	for _, delivery := range s.asyncExec.DueDeliveries(now) {
		if delivery.Event.CallID == "" {
			s.asyncExec.Ack(delivery.EventID, now)
			continue
		}
		actor := s.sessions.Get(ctx, delivery.SessionKey, "")
		payload, toolErr := toolResultPayload(delivery.Event)
		actor.ToolResult(ctx, delivery.Event.CallID, payload, toolErr)
		s.asyncExec.Ack(delivery.EventID, now)
	}
}

// runDueProbes redispatches skill probes whose retry window has elapsed.
func (s *Scheduler) runDueProbes(ctx context.Context, now time.Time) {
	if s.probes == nil || s.registry == nil {
		return
	}
	for _, p := range s.probes.Due(now) {
		node, ok := s.registry.Get(models.PeerModeNode, p.NodeID)
		if !ok || node.Transport == nil {
			continue
		}
		frame := gateway.EvtFrame{Type: "evt", Event: "node.probe", Payload: map[string]any{
			"probeId":   p.ProbeID,
			"kind":      "bins",
			"bins":      p.Bins,
			"timeoutMs": p.MaxAge.Milliseconds(),
		}}
		if err := node.Transport.WriteFrame(frame); err != nil {
			s.log.Warn("probe redispatch failed", "nodeId", p.NodeID, "probeId", p.ProbeID, "error", err)
			continue
		}
		s.probes.MarkSent(p.ProbeID, now)
	}
}

// runDueHeartbeats evaluates every configured agent's heartbeat schedule.
func (s *Scheduler) runDueHeartbeats(ctx context.Context, now time.Time) {
	cfg, err := s.cfgStore.Typed()
	if err != nil {
		s.log.Warn("config load failed", "error", err)
		return
	}
	for _, agent := range cfg.Agents.List {
		hb := agent.DefaultHeartbeat
		interval := ParseEvery(hb.Every)
		if interval <= 0 {
			continue
		}

		state, _, err := s.heartbeats.Load(ctx, agent.ID)
		if err != nil {
			s.log.Warn("heartbeat state load failed", "agentId", agent.ID, "error", err)
			continue
		}
		next, ok := NextHeartbeatRun(hb, state.LastHeartbeatAt, now)
		if !ok || now.Before(next) {
			continue
		}
		if !InActiveHours(hb, cfg.UserTimezone, now) {
			continue
		}
		s.runHeartbeat(ctx, agent.ID, hb, now)
	}
}

func (s *Scheduler) runHeartbeat(ctx context.Context, agentID string, hb config.HeartbeatConfig, now time.Time) {
	key := "agent:" + agentID + ":heartbeat:system:internal"
	actor := s.sessions.Get(ctx, key, agentID)
	if actor.Stats(ctx).Running {
		return // session currently processing a turn; skip this tick
	}

	runID := uuid.NewString()

	if hb.Target != "" && hb.Target != "none" && hb.Target != "last" {
		// Named channel target: resolve from the configured channel name
		// directly; accountId/peer are unknown for a bare channel target,
		// so only the channel discriminator is set.
		_ = s.pending.Register(ctx, runID, models.PendingChannelResponse{
			Channel: models.ChannelType(hb.Target),
			AgentID: agentID,
		})
	} else if hb.Target == "last" {
		if ac, ok, _ := s.active.Get(ctx, agentID); ok {
			_ = s.pending.Register(ctx, runID, models.PendingChannelResponse{
				Channel:   ac.Channel,
				AccountID: ac.AccountID,
				Peer:      ac.Peer,
				AgentID:   agentID,
			})
		}
	}

	actor.ChatSend(ctx, session.ChatSendRequest{
		RunID: runID,
		Text:  DefaultHeartbeatPrompt,
	})

	if _, err := s.heartbeats.Patch(ctx, agentID, true, func(st *models.HeartbeatState) error {
		st.LastHeartbeatAt = now
		st.LastHeartbeatSentAt = now
		return nil
	}); err != nil {
		s.log.Warn("heartbeat state update failed", "agentId", agentID, "error", err)
	}
}

// runDueCronJobs evaluates every persisted cron job.
func (s *Scheduler) runDueCronJobs(ctx context.Context, now time.Time) {
	jobs, err := s.cronJobs.List(ctx)
	if err != nil {
		s.log.Warn("cron job list failed", "error", err)
		return
	}
	for id, job := range jobs {
		if !job.Enabled {
			continue
		}
		if job.State.NextRunAtMs != 0 && now.UnixMilli() < job.State.NextRunAtMs {
			continue
		}
		s.runCronJob(ctx, id, job, now)
	}
}

func (s *Scheduler) runCronJob(ctx context.Context, id string, job models.CronJob, now time.Time) {
	var sessKey string
	deliver := job.Spec.Deliver
	switch job.Spec.Mode {
	case models.SpecSystemEvent:
		sessKey = sessionkey.Main(job.AgentID)
	case models.SpecTask:
		sessKey = "agent:" + job.AgentID + ":cron:" + id + ":" + uuid.NewString()
	default:
		s.log.Warn("cron job has unknown spec mode", "jobId", id, "mode", job.Spec.Mode)
		return
	}

	actor := s.sessions.Get(ctx, sessKey, job.AgentID)
	runID := uuid.NewString()

	text := job.Spec.Text
	if job.Spec.Mode == models.SpecTask {
		text = job.Spec.Message
	}
	prefix := "[cron · " + now.Format("15:04") + "]"
	if deliver {
		prefix += " (do not also call the message tool; this reply is delivered automatically)"
	}
	text = prefix + "\n" + text

	if deliver {
		target := models.PendingChannelResponse{AgentID: job.AgentID}
		if job.Spec.Channel != "" {
			target.Channel = job.Spec.Channel
			target.Peer = models.ChannelPeer{ID: job.Spec.To}
		} else if ac, ok, _ := s.active.Get(ctx, job.AgentID); ok {
			target.Channel = ac.Channel
			target.AccountID = ac.AccountID
			target.Peer = ac.Peer
		}
		_ = s.pending.Register(ctx, runID, target)
		if job.Spec.Mode == models.SpecTask {
			_ = s.active.Set(ctx, job.AgentID, models.ActiveContext{
				Channel: target.Channel, AccountID: target.AccountID, Peer: target.Peer,
				SessionKey: sessKey, Timestamp: now,
			})
		}
	}

	actor.ChatSend(ctx, session.ChatSendRequest{RunID: runID, Text: text})

	next, ok, err := NextCronRun(job.Schedule, now)
	_, patchErr := s.cronJobs.Patch(ctx, id, false, func(j *models.CronJob) error {
		j.State.LastRunAtMs = now.UnixMilli()
		if err != nil || !ok {
			j.Enabled = false
			j.State.NextRunAtMs = 0
			return nil
		}
		j.State.NextRunAtMs = next.UnixMilli()
		if job.DeleteAfterRun {
			j.Enabled = false
		}
		return nil
	})
	if patchErr != nil {
		s.log.Warn("cron job state update failed", "jobId", id, "error", patchErr)
	}
}

// toolResultPayload renders an async-exec terminal event as the result (or
// error) a normal tool.result frame would carry, so the actor's ToolResult
// path resolves the originating shell.exec call uniformly regardless of
// whether the node answered synchronously or via the async-exec stream.
func toolResultPayload(event models.AsyncExecEvent) (json.RawMessage, *models.RPCError) {
	if event.Event == models.ExecFailed || event.Event == models.ExecTimedOut {
		return nil, &models.RPCError{Message: fmt.Sprintf("exec %s: %s", event.Event, event.OutputTail)}
	}
	payload, err := json.Marshal(map[string]any{
		"exitCode":   event.ExitCode,
		"signal":     event.Signal,
		"outputTail": event.OutputTail,
	})
	if err != nil {
		return nil, &models.RPCError{Message: err.Error()}
	}
	return payload, nil
}
