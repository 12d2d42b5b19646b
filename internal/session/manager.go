package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// Manager lazily creates and owns one Actor per session key — the
// gateway's only entry point for session actors, per the "sessions never
// share mutable state" ownership rule.
type Manager struct {
	mu       sync.Mutex
	actors   map[string]*Actor
	store    *pstore.TypedStore[models.Session]
	registry *pstore.TypedStore[models.SessionRegistryEntry]
	router   ToolInvoker
	llm      LLM
	archive  Archiver
	events   EventSink
	cfg      Config
	log      *slog.Logger
	now      clock
}

// NewManager creates a Manager backed by kv for both session records and
// the lightweight session registry index.
func NewManager(kv pstore.KV, router ToolInvoker, llm LLM, archive Archiver, events EventSink, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		actors:   make(map[string]*Actor),
		store:    pstore.NewTypedStore[models.Session](kv, "sessions/"),
		registry: pstore.NewTypedStore[models.SessionRegistryEntry](kv, "session-registry/"),
		router:   router,
		llm:      llm,
		archive:  archive,
		events:   events,
		cfg:      cfg,
		log:      log.With("component", "session.manager"),
		now:      time.Now,
	}
}

// Get returns the actor for key, creating it (and a registry entry) on
// first access.
func (m *Manager) Get(ctx context.Context, key, agentID string) *Actor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.actors[key]; ok {
		return a
	}
	a := New(key, agentID, m.store, m.router, m.llm, m.archive, m.events, m.cfg, m.log)
	m.actors[key] = a

	now := m.now()
	_, err := m.registry.Patch(ctx, key, true, func(e *models.SessionRegistryEntry) error {
		if e.CreatedAt.IsZero() {
			e.SessionKey = key
			e.CreatedAt = now
		}
		e.LastActiveAt = now
		return nil
	})
	if err != nil {
		m.log.Warn("session registry update failed", "key", key, "error", err)
	}
	return a
}

// Touch bumps the session registry's LastActiveAt without requiring the
// actor to be live (used by the channel pipeline's "registry updates must
// run for every admitted inbound" step).
func (m *Manager) Touch(ctx context.Context, key string, label string) error {
	now := m.now()
	_, err := m.registry.Patch(ctx, key, true, func(e *models.SessionRegistryEntry) error {
		if e.CreatedAt.IsZero() {
			e.SessionKey = key
			e.CreatedAt = now
		}
		e.LastActiveAt = now
		if label != "" {
			e.Label = label
		}
		return nil
	})
	return err
}

// List returns every known session registry entry.
func (m *Manager) List(ctx context.Context) (map[string]models.SessionRegistryEntry, error) {
	return m.registry.List(ctx)
}

// Rehydrate walks every persisted session record and pre-warms an actor for
// it, so a cold-start gateway doesn't lazily recreate actors one inbound at
// a time.
func (m *Manager) Rehydrate(ctx context.Context) error {
	all, err := m.store.List(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, s := range all {
		if _, ok := m.actors[key]; ok {
			continue
		}
		m.actors[key] = New(key, s.AgentID, m.store, m.router, m.llm, m.archive, m.events, m.cfg, m.log)
	}
	return nil
}
