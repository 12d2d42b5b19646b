package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// Config bounds an actor's blocking operations and default policy.
type Config struct {
	ToolTimeout     time.Duration
	CompactKeep     int
	DailyResetHour  int
	SystemPrompt    string
	DefaultModel    string
}

// Actor is the per-session actor. All state access happens inside its
// mailbox goroutine via do(); public methods never touch fields directly.
type Actor struct {
	key     string
	agentID string
	store   *pstore.TypedStore[models.Session]
	router  ToolInvoker
	llm     LLM
	archive Archiver
	events  EventSink
	cfg     Config
	now     clock
	log     *slog.Logger

	ops     chan func()
	stop    chan struct{}

	session      models.Session
	queue        []ChatSendRequest
	running      bool
	currentRunID string
	pending      map[string]*pendingToolCall
	toolDeadline time.Time
	delivery     *DeliveryContext
	currentTools     []models.ToolDefinition
	currentOverrides *Overrides
}

// New creates and starts an actor for sessionKey, loading (or lazily
// creating) its persisted record.
func New(key, agentID string, store *pstore.TypedStore[models.Session], router ToolInvoker, llm LLM, archiver Archiver, events EventSink, cfg Config, log *slog.Logger) *Actor {
	if cfg.CompactKeep <= 0 {
		cfg.CompactKeep = 20
	}
	if cfg.DailyResetHour == 0 {
		cfg.DailyResetHour = 4
	}
	if log == nil {
		log = slog.Default()
	}
	a := &Actor{
		key:     key,
		agentID: agentID,
		store:   store,
		router:  router,
		llm:     llm,
		archive: archiver,
		events:  events,
		cfg:     cfg,
		now:     time.Now,
		log:     log.With("component", "session.actor", "sessionKey", key),
		ops:     make(chan func(), 32),
		stop:    make(chan struct{}),
		pending: make(map[string]*pendingToolCall),
	}
	ctx := context.Background()
	existing, ok, err := store.Load(ctx, key)
	if err != nil {
		a.log.Warn("load session failed", "error", err)
	}
	if ok {
		a.session = existing
	} else {
		now := a.now()
		a.session = models.Session{
			SessionID:  uuid.NewString(),
			SessionKey: key,
			AgentID:    agentID,
			ResetPolicy: models.ResetPolicy{Mode: models.ResetManual},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
	}
	go a.loop()
	return a
}

// Close stops the actor's mailbox goroutine.
func (a *Actor) Close() { close(a.stop) }

// Delivery returns the originating channel context for the in-progress run,
// if any — used by the native message tool's accountId default.
func (a *Actor) Delivery(ctx context.Context) *DeliveryContext {
	var out *DeliveryContext
	a.do(func() { out = a.delivery })
	return out
}

func (a *Actor) loop() {
	for {
		select {
		case op := <-a.ops:
			op()
		case <-a.stop:
			return
		}
	}
}

// do runs fn on the actor's goroutine and blocks until it returns,
// serializing every access the way a single-threaded cooperative actor
// would.
func (a *Actor) do(fn func()) {
	done := make(chan struct{})
	a.ops <- func() {
		fn()
		close(done)
	}
	<-done
}

func (a *Actor) persistLocked(ctx context.Context) {
	if err := a.store.Save(ctx, a.key, a.session); err != nil {
		a.log.Warn("persist session failed", "error", err)
	}
}

// applyResetPolicyLocked evaluates the configured auto-reset policy and, if
// due, performs the reset inline.
func (a *Actor) applyResetPolicyLocked(ctx context.Context) {
	now := a.now()
	policy := a.session.ResetPolicy
	switch policy.Mode {
	case models.ResetDaily:
		hour := policy.AtHour
		if hour == 0 {
			hour = a.cfg.DailyResetHour
		}
		todayBoundary := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
		if now.Before(todayBoundary) {
			todayBoundary = todayBoundary.AddDate(0, 0, -1)
		}
		if a.session.UpdatedAt.Before(todayBoundary) {
			a.resetLocked(ctx)
		}
	case models.ResetIdle:
		idle := time.Duration(policy.IdleMinutes) * time.Minute
		if now.Sub(a.session.UpdatedAt) > idle {
			a.resetLocked(ctx)
		}
	case models.ResetManual:
		// never auto-resets
	}
}

func (a *Actor) resetLocked(ctx context.Context) ResetResult {
	old := a.session.SessionID
	if len(a.session.Messages) > 0 && a.archive != nil {
		if _, err := a.archive.Archive(ctx, a.agentID, old, 0, a.session.Messages, ArchiveTokens{
			InputTokens: a.session.InputTokens, OutputTokens: a.session.OutputTokens,
		}); err != nil {
			a.log.Warn("archive on reset failed", "error", err)
		}
	}
	now := a.now()
	a.session.PreviousSessionIDs = append(a.session.PreviousSessionIDs, old)
	a.session.SessionID = uuid.NewString()
	a.session.Messages = nil
	a.session.InputTokens = 0
	a.session.OutputTokens = 0
	a.session.LastResetAt = now
	a.session.UpdatedAt = now
	a.persistLocked(ctx)
	return ResetResult{OldSessionID: old, NewSessionID: a.session.SessionID}
}

// Reset archives and rotates the session.
func (a *Actor) Reset(ctx context.Context) ResetResult {
	var out ResetResult
	a.do(func() { out = a.resetLocked(ctx) })
	return out
}

// Compact archives the oldest len-keep messages as a numbered part and
// truncates the live transcript to the most recent keep messages.
func (a *Actor) Compact(ctx context.Context, keep int) error {
	if keep < 0 {
		return &models.RPCError{Code: 400, Message: "Invalid count"}
	}
	if keep == 0 {
		keep = a.cfg.CompactKeep
	}
	var outErr error
	a.do(func() {
		if len(a.session.Messages) <= keep {
			return
		}
		cut := len(a.session.Messages) - keep
		archived := a.session.Messages[:cut]
		if a.archive != nil {
			part := 1
			if _, err := a.archive.Archive(ctx, a.agentID, a.session.SessionID, part, archived, ArchiveTokens{
				InputTokens: a.session.InputTokens, OutputTokens: a.session.OutputTokens,
			}); err != nil {
				outErr = err
				return
			}
		}
		a.session.Messages = append([]models.Message{}, a.session.Messages[cut:]...)
		a.session.UpdatedAt = a.now()
		a.persistLocked(ctx)
	})
	return outErr
}

// Patch shallow-merges settings/label/resetPolicy. Per the open question in
// a resetPolicy change mid-run applies starting with the next
// chatSend, not retroactively.
func (a *Actor) Patch(ctx context.Context, req PatchRequest) {
	a.do(func() {
		if req.Settings != nil {
			if a.session.Settings == nil {
				a.session.Settings = map[string]any{}
			}
			for k, v := range req.Settings {
				if v == nil {
					delete(a.session.Settings, k)
					continue
				}
				a.session.Settings[k] = v
			}
		}
		if req.Label != nil {
			a.session.Label = *req.Label
		}
		if req.ResetPolicy != nil {
			a.session.ResetPolicy = *req.ResetPolicy
		}
		a.session.UpdatedAt = a.now()
		a.persistLocked(ctx)
	})
}

// Get returns a JSON-plain snapshot of the persisted session record.
func (a *Actor) Get(ctx context.Context) models.Session {
	var out models.Session
	a.do(func() { out = cloneSession(a.session) })
	return out
}

// Stats returns the read-only stats view.
func (a *Actor) Stats(ctx context.Context) Stats {
	var out Stats
	a.do(func() {
		out = Stats{
			SessionID:    a.session.SessionID,
			MessageCount: len(a.session.Messages),
			InputTokens:  a.session.InputTokens,
			OutputTokens: a.session.OutputTokens,
			CreatedAt:    a.session.CreatedAt,
			UpdatedAt:    a.session.UpdatedAt,
			Running:      a.running,
		}
	})
	return out
}

// Preview returns a bounded, JSON-plain view of the most recent messages.
func (a *Actor) Preview(ctx context.Context, limit int) []models.Message {
	if limit <= 0 {
		limit = 10
	}
	var out []models.Message
	a.do(func() {
		msgs := a.session.Messages
		if len(msgs) > limit {
			msgs = msgs[len(msgs)-limit:]
		}
		out = append(out, msgs...)
	})
	return out
}

// History returns the full live transcript, JSON-plain.
func (a *Actor) History(ctx context.Context) []models.Message {
	var out []models.Message
	a.do(func() { out = append(out, a.session.Messages...) })
	return out
}

func cloneSession(s models.Session) models.Session {
	out := s
	out.Messages = append([]models.Message{}, s.Messages...)
	out.PreviousSessionIDs = append([]string{}, s.PreviousSessionIDs...)
	if s.Settings != nil {
		out.Settings = make(map[string]any, len(s.Settings))
		for k, v := range s.Settings {
			out.Settings[k] = v
		}
	}
	return out
}

// Abort cancels the in-progress run, dropping pending tools and emitting an
// error chat event.
func (a *Actor) Abort(ctx context.Context) AbortResult {
	var out AbortResult
	a.do(func() {
		out.WasRunning = a.running
		if !a.running {
			return
		}
		out.RunID = a.currentRunID
		out.PendingToolsCancelled = len(a.pending)
		a.pending = make(map[string]*pendingToolCall)
		a.running = false
		runID := a.currentRunID
		a.currentRunID = ""
		a.events.Emit(ctx, ChatEvent{RunID: runID, SessionKey: a.key, State: ChatError, Error: "aborted"})
	})
	return out
}

// ChatSend is the sole entry point that starts or enqueues a turn. It
// returns immediately; the turn itself runs on a dedicated goroutine that
// funnels its state mutations back through do().
func (a *Actor) ChatSend(ctx context.Context, req ChatSendRequest) ChatSendResult {
	var result ChatSendResult
	var shouldStart bool
	a.do(func() {
		if a.running {
			a.queue = append(a.queue, req)
			result = ChatSendResult{Status: "queued", RunID: req.RunID}
			return
		}
		a.running = true
		a.currentRunID = req.RunID
		a.delivery = req.Delivery
		a.currentTools = req.Tools
		a.currentOverrides = req.Overrides
		result = ChatSendResult{Status: "started", RunID: req.RunID}
		shouldStart = true
	})
	if shouldStart {
		go a.runTurn(ctx, req)
	}
	return result
}

// ToolResult resolves a pending call and, once every call in the current
// turn is resolved, resumes the agent loop. An unknown callId is logged and
// ignored.
func (a *Actor) ToolResult(ctx context.Context, callID string, result json.RawMessage, toolErr *models.RPCError) {
	var resumeRunID string
	var resume bool
	a.do(func() {
		call, ok := a.pending[callID]
		if !ok {
			a.log.Info("unknown callId, ignoring", "callId", callID)
			return
		}
		call.resolved = true
		if toolErr != nil {
			call.errMsg = toolErr.Message
		} else {
			call.result = result
		}
		for _, c := range a.pending {
			if !c.resolved {
				return
			}
		}
		resume = true
		resumeRunID = a.currentRunID
	})
	if resume {
		go a.continueTurn(ctx, resumeRunID)
	}
}

// ExpireTimedOutTools is invoked by the scheduler alarm when a turn's tool
// deadline has passed: every unresolved call becomes a timeout error and the
// loop resumes exactly once.
func (a *Actor) ExpireTimedOutTools(ctx context.Context, now time.Time) {
	var resumeRunID string
	var resume bool
	a.do(func() {
		if !a.running || a.toolDeadline.IsZero() || now.Before(a.toolDeadline) {
			return
		}
		anyUnresolved := false
		for _, c := range a.pending {
			if !c.resolved {
				c.resolved = true
				c.errMsg = "tool call timed out"
				anyUnresolved = true
			}
		}
		if !anyUnresolved {
			return
		}
		resume = true
		resumeRunID = a.currentRunID
	})
	if resume {
		go a.continueTurn(ctx, resumeRunID)
	}
}

func (a *Actor) finishRunLocked(ctx context.Context) (next ChatSendRequest, hasNext bool) {
	a.running = false
	a.currentRunID = ""
	a.pending = make(map[string]*pendingToolCall)
	a.toolDeadline = time.Time{}
	if len(a.queue) == 0 {
		return ChatSendRequest{}, false
	}
	next = a.queue[0]
	a.queue = a.queue[1:]
	a.running = true
	a.currentRunID = next.RunID
	a.delivery = next.Delivery
	a.currentTools = next.Tools
	a.currentOverrides = next.Overrides
	return next, true
}

// runTurn executes one full assistant turn starting from a freshly
// delivered user message: reset-policy check, message append, LLM call,
// and either tool fan-out (suspend) or a final chat event + drain of the
// next queued send.
func (a *Actor) runTurn(ctx context.Context, req ChatSendRequest) {
	a.do(func() {
		a.applyResetPolicyLocked(ctx)
		now := a.now()
		msg := models.Message{
			ID:          uuid.NewString(),
			SessionID:   a.session.SessionID,
			Role:        models.RoleUser,
			Content:     req.Text,
			Attachments: req.Media,
			CreatedAt:   now,
		}
		a.session.Messages = append(a.session.Messages, msg)
		a.session.UpdatedAt = now
		a.persistLocked(ctx)
	})
	a.step(ctx, req.RunID)
}

// continueTurn resumes a suspended turn once every pending tool call in
// flight has resolved (result, error, or timeout).
func (a *Actor) continueTurn(ctx context.Context, runID string) {
	a.do(func() {
		now := a.now()
		for callID, call := range a.pending {
			content := string(call.result)
			isErr := call.errMsg != ""
			if isErr {
				content = call.errMsg
			}
			a.session.Messages = append(a.session.Messages, models.Message{
				ID:        uuid.NewString(),
				SessionID: a.session.SessionID,
				Role:      models.RoleTool,
				Content:   content,
				ToolResults: []models.ToolResult{{
					ToolCallID: callID, Content: content, IsError: isErr,
				}},
				CreatedAt: now,
			})
		}
		a.pending = make(map[string]*pendingToolCall)
		a.toolDeadline = time.Time{}
		a.session.UpdatedAt = now
		a.persistLocked(ctx)
	})
	a.step(ctx, runID)
}

// step builds the LLM context from the current transcript, calls the LLM,
// and either fans out tool calls (suspending) or finalizes the turn.
func (a *Actor) step(ctx context.Context, runID string) {
	var snapshot models.Session
	var tools []models.ToolDefinition
	var overrides *Overrides
	a.do(func() {
		snapshot = cloneSession(a.session)
		tools = a.currentTools
		overrides = a.currentOverrides
	})

	creq := CompletionRequest{
		SystemPrompt: a.cfg.SystemPrompt,
		Messages:     snapshot.Messages,
		Tools:        tools,
		Model:        a.cfg.DefaultModel,
	}
	if overrides != nil {
		if overrides.Model != "" {
			creq.Model = overrides.Model
		}
		creq.Thinking = overrides.Thinking
	}

	resp, err := a.llm.Complete(ctx, creq)
	if err != nil {
		a.finishWithError(ctx, runID, err.Error())
		return
	}
	if resp.Message.Content == "" && len(resp.Message.ToolCalls) == 0 {
		a.finishWithError(ctx, runID, "empty LLM response")
		return
	}

	a.do(func() {
		now := a.now()
		resp.Message.ID = uuid.NewString()
		resp.Message.SessionID = a.session.SessionID
		resp.Message.Role = models.RoleAssistant
		resp.Message.CreatedAt = now
		a.session.Messages = append(a.session.Messages, resp.Message)
		a.session.InputTokens += resp.InputTokens
		a.session.OutputTokens += resp.OutputTokens
		a.session.UpdatedAt = now
		a.persistLocked(ctx)
	})

	if len(resp.Message.ToolCalls) > 0 {
		a.dispatchTools(ctx, runID, resp.Message.ToolCalls)
		return
	}

	a.events.Emit(ctx, ChatEvent{RunID: runID, SessionKey: a.key, State: ChatFinal, Message: &resp.Message})
	a.drainQueueOrFinish(ctx)
}

func (a *Actor) finishWithError(ctx context.Context, runID, message string) {
	a.events.Emit(ctx, ChatEvent{RunID: runID, SessionKey: a.key, State: ChatError, Error: message})
	a.do(func() { a.finishRunLocked(ctx) })
}

// dispatchTools fans every tool call in the turn out in parallel.
func (a *Actor) dispatchTools(ctx context.Context, runID string, calls []models.ToolCall) {
	a.do(func() {
		a.pending = make(map[string]*pendingToolCall, len(calls))
		for _, c := range calls {
			a.pending[c.ID] = &pendingToolCall{tool: c.Name, args: c.Input}
		}
		a.toolDeadline = a.now().Add(toolTimeoutOrDefault(a.cfg.ToolTimeout))
	})

	for _, c := range calls {
		c := c
		go func() {
			route := models.CallRoute{Kind: models.RouteSession, SessionKey: a.key, CreatedAt: a.now()}
			result, immediate, err := a.router.Invoke(ctx, c.Name, c.Input, route)
			if !immediate {
				// Node-backed: the router will deliver via ToolResult when the
				// node answers tool.result. Nothing more to do here.
				return
			}
			var rpcErr *models.RPCError
			var payload json.RawMessage
			if err != nil {
				if asRPC, ok := err.(*models.RPCError); ok {
					rpcErr = asRPC
				} else {
					rpcErr = &models.RPCError{Code: 500, Message: err.Error()}
				}
			} else {
				payload, _ = json.Marshal(result)
			}
			a.ToolResult(ctx, c.ID, payload, rpcErr)
		}()
	}
}

func toolTimeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (a *Actor) drainQueueOrFinish(ctx context.Context) {
	var next ChatSendRequest
	var hasNext bool
	a.do(func() { next, hasNext = a.finishRunLocked(ctx) })
	if hasNext {
		go a.runTurn(ctx, next)
	}
}
