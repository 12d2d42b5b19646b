// Package server wires every collaborator package into one running gateway
// process: the peer registry and frame dispatcher, the tool router, the
// session manager, the channel inbound pipeline, the scheduler, and the
// reply router. It is the composition root cmd/gatewayd calls into, mirroring
// the teacher's internal/gateway/managed_server.go Start/Stop lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ruizzmauri/gsv-sub000/internal/auth"
	"github.com/ruizzmauri/gsv-sub000/internal/blobstore"
	"github.com/ruizzmauri/gsv-sub000/internal/channel"
	"github.com/ruizzmauri/gsv-sub000/internal/commands"
	"github.com/ruizzmauri/gsv-sub000/internal/config"
	"github.com/ruizzmauri/gsv-sub000/internal/gateway"
	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/internal/reply"
	"github.com/ruizzmauri/gsv-sub000/internal/scheduler"
	"github.com/ruizzmauri/gsv-sub000/internal/session"
	"github.com/ruizzmauri/gsv-sub000/internal/skills"
	"github.com/ruizzmauri/gsv-sub000/internal/toolrouter"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// logWaitTracker correlates a client-deferred logs.get call with the node
// it was sent to, since logs.result carries no frame id of its own (a node
// answers "the most recent request I was sent", mirroring how tool.invoke
// correlates on callId instead).
type logWaitTracker struct {
	mu      sync.Mutex
	waiting map[string]models.CallRoute // nodeId -> route
}

func newLogWaitTracker() *logWaitTracker {
	return &logWaitTracker{waiting: make(map[string]models.CallRoute)}
}

func (t *logWaitTracker) register(nodeID string, route models.CallRoute) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waiting[nodeID] = route
}

func (t *logWaitTracker) take(nodeID string) (models.CallRoute, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	route, ok := t.waiting[nodeID]
	if ok {
		delete(t.waiting, nodeID)
	}
	return route, ok
}

// Server owns every long-lived collaborator and the HTTP listener that
// exposes /health, /ws, and /media. Callers only ever touch it through
// New/Start/Stop.
type Server struct {
	cfg      *config.Store
	kv       pstore.KV
	blob     *blobstore.Store
	registry *gateway.Registry
	metrics  *gateway.Metrics
	dispatch *gateway.Dispatcher
	router   *toolrouter.Router
	asyncx   *toolrouter.AsyncExecTracker
	sessions *session.Manager
	cmds     *commands.Registry
	pending  *reply.PendingStore
	active   *reply.ActiveContextStore
	replyR   *reply.Router
	pairing  *channel.PairingStore
	channels *channel.Registry
	pipeline *channel.Pipeline
	probes   *skills.ProbeTracker
	skillsM  *skills.Manager
	gating   *skills.GatingContext
	sched    *scheduler.Scheduler
	verifier *auth.Verifier
	grantor  *auth.MediaGrantor

	cronJobs   *pstore.TypedStore[models.CronJob]
	cronRuns   *pstore.TypedStore[models.CronRunRecord]
	heartbeats *pstore.TypedStore[models.HeartbeatState]
	logWaiters *logWaitTracker
	maxCron    int

	httpSrv *http.Server
	log     *slog.Logger
}

func (s *Server) maxCronJobs() int { return s.maxCron }

// nextCronRunOrNow wraps scheduler.NextCronRun with the clock this package
// otherwise never needs to own.
func nextCronRunOrNow(sched models.CronSchedule) (time.Time, bool, error) {
	return scheduler.NextCronRun(sched, time.Now())
}

// Deps carries the collaborators New needs that cannot be constructed from
// config alone (storage backends and the out-of-scope LLM/transcriber
// bindings, per §1's "out of scope, specified only as collaborators" rule).
type Deps struct {
	KV          pstore.KV
	Blob        *blobstore.Store
	LLM         session.LLM
	Transcriber channel.Transcriber
	Log         *slog.Logger
}

// New builds every collaborator and wires the RPC method table, but starts
// nothing (no listener, no scheduler tick) until Start is called.
func New(ctx context.Context, cfg *config.Store, deps Deps) (*Server, error) {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	typed, err := cfg.Typed()
	if err != nil {
		return nil, fmt.Errorf("server: load typed config: %w", err)
	}

	metrics := gateway.NewMetrics(prometheus.DefaultRegisterer)
	registry := gateway.NewRegistry(log)

	router := toolrouter.NewRouter(registry, metrics)
	asyncx := toolrouter.NewAsyncExecTracker()
	router.AsyncExec = asyncx

	llmProvider := deps.LLM
	if llmProvider == nil {
		llmProvider = noLLM{}
	}

	pending := reply.NewPendingStore(deps.KV)
	active := reply.NewActiveContextStore(deps.KV)
	channelSender := channel.NewRegistry()
	replyRouter := reply.NewRouter(pending, channelSender, registry, log)

	sessCfg := session.Config{
		ToolTimeout:    time.Duration(typed.Timeouts.ToolMs) * time.Millisecond,
		CompactKeep:    20,
		DailyResetHour: 4,
		DefaultModel:   typed.Model.ID,
	}
	sessions := session.NewManager(deps.KV, router, llmProvider, deps.Blob, session.EventSinkFunc(replyRouter.Emit), sessCfg, log)

	cmdReg := commands.NewRegistry(log)
	commands.RegisterBuiltins(cmdReg, func(key string) (commands.SessionOps, bool) {
		return session.CommandAdapter{Actor: sessions.Get(ctx, key, "")}, true
	})

	pairing := channel.NewPairingStore(deps.KV)
	probeTTL := time.Duration(typed.Timeouts.SkillProbeMaxAgeMs) * time.Millisecond
	if probeTTL <= 0 {
		probeTTL = 10 * time.Minute
	}
	probes := skills.NewProbeTracker(probeTTL)

	workspaceRoot := typed.Server.WorkspaceRoot
	if workspaceRoot == "" {
		workspaceRoot = "./workspace"
	}
	skillsM := skills.NewManager(workspaceRoot, log)
	if err := skillsM.Refresh(); err != nil {
		log.Warn("initial skill discovery failed", "error", err)
	}
	gating := skills.NewGatingContext(skillEntriesFrom(typed.Skills), probes)

	media := &channel.MediaProcessor{Store: deps.Blob, Transcriber: deps.Transcriber}

	s := &Server{
		cfg:      cfg,
		kv:       deps.KV,
		blob:     deps.Blob,
		registry: registry,
		metrics:  metrics,
		router:   router,
		asyncx:   asyncx,
		sessions: sessions,
		cmds:     cmdReg,
		pending:  pending,
		active:   active,
		replyR:   replyRouter,
		pairing:  pairing,
		channels: channelSender,
		probes:   probes,
		skillsM:  skillsM,
		gating:   gating,
		verifier: auth.NewVerifier(typed.Auth.Token),
		grantor:  auth.NewMediaGrantor(typed.Auth.Token, time.Duration(typed.Blob.MediaGrantTTLMs)*time.Millisecond),

		cronJobs:   pstore.NewTypedStore[models.CronJob](deps.KV, "cron-jobs/"),
		cronRuns:   pstore.NewTypedStore[models.CronRunRecord](deps.KV, "cron-runs/"),
		heartbeats: pstore.NewTypedStore[models.HeartbeatState](deps.KV, "heartbeat-state/"),
		logWaiters: newLogWaitTracker(),
		maxCron:    typed.Cron.MaxJobs,

		log: log.With("component", "server"),
	}

	registry.DisconnectHook = func(mode gateway.PeerMode, id string) {
		switch mode {
		case models.PeerModeClient:
			router.CancelForClient(id)
		case models.PeerModeNode:
			router.CancelForNode(id)
		}
	}

	s.pipeline = channel.NewPipeline(
		cfg, sessions, cmdReg, pending, active, pairing, deps.KV, media, channelSender,
		s.toolsSnapshot, s.nodesSnapshot, log,
	)

	s.sched = scheduler.New(sessions, cfg, registry, probes, asyncx, pending, active, deps.KV, log)

	s.dispatch = gateway.NewDispatcher(registry, s.handleConnect, log)
	s.dispatch.ConnectHook = s.onPeerConnected
	s.registerMethods()

	return s, nil
}

// toolsSnapshot/nodesSnapshot satisfy channel.ToolsSnapshot/NodesSnapshot by
// delegating to the tool router and peer registry this package owns, so the
// channel pipeline never has to import either directly.
func (s *Server) toolsSnapshot() []models.ToolDefinition {
	return s.router.Advertised()
}

func (s *Server) nodesSnapshot() []string {
	nodes := s.registry.Nodes()
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func skillEntriesFrom(cfg config.SkillsConfig) map[string]skills.EntryConfig {
	out := make(map[string]skills.EntryConfig, len(cfg.Entries))
	for name, e := range cfg.Entries {
		out[name] = skills.EntryConfig{Enabled: e.Enabled, Always: e.Always, Requires: e.Requires}
	}
	return out
}

// noLLM is the LLM collaborator used when no API key is configured: every
// call fails loudly rather than silently, which is preferable to a gateway
// that appears to work but never produces assistant output.
type noLLM struct{}

func (noLLM) Complete(ctx context.Context, req session.CompletionRequest) (session.CompletionResponse, error) {
	return session.CompletionResponse{}, fmt.Errorf("llm: no provider configured (set apiKeys.anthropic)")
}

// Start begins serving /health, /ws, /media on the configured listen
// address and starts the scheduler's tick loop. It blocks until ctx is
// cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	typed, err := s.cfg.Typed()
	if err != nil {
		return fmt.Errorf("server: load typed config: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", gateway.ServeWS(s.dispatch, s.registry, s.log))
	mux.HandleFunc("/media/", s.handleMedia)

	addr := typed.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}

	s.sched.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.log.Info("gateway listening", "addr", addr)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts down the HTTP listener and the scheduler.
func (s *Server) Stop(ctx context.Context) error {
	s.sched.Stop()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"healthy"}`))
}
