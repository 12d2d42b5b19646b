package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// SessionOps is the subset of session.Actor the builtin commands need,
// expressed as an interface so this package does not import internal/session
// (keeping the command set independently testable against a fake).
type SessionOps interface {
	Reset(ctx context.Context) (oldID, newID string)
	Compact(ctx context.Context, keep int) error
	Abort(ctx context.Context) (wasRunning bool, runID string, pendingCancelled int)
	StatsLine(ctx context.Context) string
	SetModel(ctx context.Context, model string)
	SetThinking(ctx context.Context, level string)
}

// Resolver looks up the SessionOps for a session key. The channel pipeline
// and client RPC layer both provide one backed by the session manager.
type Resolver func(sessionKey string) (SessionOps, bool)

// RegisterBuiltins registers the standard command set:
// new|reset, compact, stop, status, model, think, help.
func RegisterBuiltins(reg *Registry, resolve Resolver) {
	reg.Register(&Command{
		Name: "new", Aliases: []string{"reset"}, Summary: "Start a fresh session, archiving the current transcript.",
		Handler: func(ctx context.Context, key, args string) (Result, error) {
			ops, ok := resolve(key)
			if !ok {
				return Result{}, &models.RPCError{Code: 404, Message: "unknown session"}
			}
			_, newID := ops.Reset(ctx)
			return Result{Command: "reset", Response: "Started a new session: " + newID}, nil
		},
	})

	reg.Register(&Command{
		Name: "compact", Summary: "Archive older messages, keeping the most recent N (default 20).",
		Handler: func(ctx context.Context, key, args string) (Result, error) {
			ops, ok := resolve(key)
			if !ok {
				return Result{}, &models.RPCError{Code: 404, Message: "unknown session"}
			}
			keep := 20
			if strings.TrimSpace(args) != "" {
				n, err := strconv.Atoi(strings.TrimSpace(args))
				if err != nil || n < 0 {
					return Result{}, &models.RPCError{Code: 400, Message: "Invalid count"}
				}
				if n == 0 {
					return Result{}, &models.RPCError{Code: 400, Message: "Invalid count"}
				}
				keep = n
			}
			if err := ops.Compact(ctx, keep); err != nil {
				return Result{}, err
			}
			return Result{Command: "compact", Response: fmt.Sprintf("Compacted session, keeping the last %d messages.", keep)}, nil
		},
	})

	reg.Register(&Command{
		Name: "stop", Summary: "Abort the in-progress run, if any.",
		Handler: func(ctx context.Context, key, args string) (Result, error) {
			ops, ok := resolve(key)
			if !ok {
				return Result{}, &models.RPCError{Code: 404, Message: "unknown session"}
			}
			wasRunning, _, cancelled := ops.Abort(ctx)
			if !wasRunning {
				return Result{Command: "stop", Response: "No run in progress."}, nil
			}
			return Result{Command: "stop", Response: fmt.Sprintf("Stopped the current run (%d tool call(s) cancelled).", cancelled)}, nil
		},
	})

	reg.Register(&Command{
		Name: "status", Summary: "Show session id, message count, and token usage.",
		Handler: func(ctx context.Context, key, args string) (Result, error) {
			ops, ok := resolve(key)
			if !ok {
				return Result{}, &models.RPCError{Code: 404, Message: "unknown session"}
			}
			return Result{Command: "status", Response: ops.StatsLine(ctx)}, nil
		},
	})

	reg.Register(&Command{
		Name: "model", Summary: "Set the model override for this session (/model claude-opus-4).",
		Handler: func(ctx context.Context, key, args string) (Result, error) {
			ops, ok := resolve(key)
			if !ok {
				return Result{}, &models.RPCError{Code: 404, Message: "unknown session"}
			}
			model := strings.TrimSpace(args)
			if model == "" {
				return Result{}, &models.RPCError{Code: 400, Message: "model name is required"}
			}
			ops.SetModel(ctx, model)
			return Result{Command: "model", Response: "Model set to " + model}, nil
		},
	})

	reg.Register(&Command{
		Name: "think", Summary: "Set the thinking/reasoning level for this session.",
		Handler: func(ctx context.Context, key, args string) (Result, error) {
			ops, ok := resolve(key)
			if !ok {
				return Result{}, &models.RPCError{Code: 404, Message: "unknown session"}
			}
			level := strings.ToLower(strings.TrimSpace(args))
			switch level {
			case "none", "minimal", "low", "medium", "high", "xhigh":
			default:
				return Result{}, &models.RPCError{Code: 400, Message: "invalid thinking level"}
			}
			ops.SetThinking(ctx, level)
			return Result{Command: "think", Response: "Thinking level set to " + level}, nil
		},
	})

	reg.Register(&Command{
		Name: "help", Summary: "List available commands.",
		Handler: func(ctx context.Context, key, args string) (Result, error) {
			var b strings.Builder
			b.WriteString("Available commands:\n")
			for _, c := range reg.List() {
				fmt.Fprintf(&b, "/%s - %s\n", c.Name, c.Summary)
			}
			return Result{Command: "help", Response: strings.TrimRight(b.String(), "\n")}, nil
		},
	})
}
