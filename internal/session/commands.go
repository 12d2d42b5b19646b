package session

import (
	"context"
	"fmt"
)

// CommandAdapter exposes an Actor as commands.SessionOps without the
// commands package needing to import this one — the session actor is the
// concrete implementation, but slash commands are tested against the
// narrower interface.
type CommandAdapter struct {
	*Actor
}

// Reset satisfies commands.SessionOps.
func (c CommandAdapter) Reset(ctx context.Context) (string, string) {
	res := c.Actor.Reset(ctx)
	return res.OldSessionID, res.NewSessionID
}

// Abort satisfies commands.SessionOps.
func (c CommandAdapter) Abort(ctx context.Context) (bool, string, int) {
	res := c.Actor.Abort(ctx)
	return res.WasRunning, res.RunID, res.PendingToolsCancelled
}

// StatsLine satisfies commands.SessionOps, rendering the /status reply.
func (c CommandAdapter) StatsLine(ctx context.Context) string {
	s := c.Actor.Stats(ctx)
	return fmt.Sprintf("Session: %s\nMessages: %d\nTokens: %d in / %d out\nRunning: %v",
		s.SessionID, s.MessageCount, s.InputTokens, s.OutputTokens, s.Running)
}

// SetModel satisfies commands.SessionOps by persisting a per-session model
// override into Settings.
func (c CommandAdapter) SetModel(ctx context.Context, model string) {
	c.Actor.Patch(ctx, PatchRequest{Settings: map[string]any{"model": model}})
}

// SetThinking satisfies commands.SessionOps.
func (c CommandAdapter) SetThinking(ctx context.Context, level string) {
	c.Actor.Patch(ctx, PatchRequest{Settings: map[string]any{"thinking": level}})
}
