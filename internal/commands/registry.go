package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry resolves a slash command's canonical name (or alias) to its
// Handler and dispatches it.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
	aliases  map[string]string
	log      *slog.Logger
}

// NewRegistry creates an empty command registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]string),
		log:      log.With("component", "commands.registry"),
	}
}

// Register adds cmd, lower-casing its name and aliases. A later
// registration of the same name replaces the earlier one (used for the
// help command, which enumerates the final registered set).
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil || strings.TrimSpace(cmd.Name) == "" || cmd.Handler == nil {
		return fmt.Errorf("commands: name and handler are required")
	}
	name := strings.ToLower(strings.TrimSpace(cmd.Name))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" || alias == name {
			continue
		}
		r.aliases[alias] = name
	}
	return nil
}

// Resolve returns the command matching name or one of its aliases.
func (r *Registry) Resolve(name string) (*Command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return cmd, true
	}
	if canonical, ok := r.aliases[name]; ok {
		cmd, ok := r.commands[canonical]
		return cmd, ok
	}
	return nil, false
}

// Dispatch parses "/name args", resolves the command, and runs it. It
// returns ok=false when text does not look like a registered slash
// command at all (the caller should fall through to normal message
// handling: "Unknown slash text falls through").
func (r *Registry) Dispatch(ctx context.Context, sessionKey, text string) (Result, bool, error) {
	name, args, isSlash := ParseCommand(text)
	if !isSlash {
		return Result{}, false, nil
	}
	cmd, ok := r.Resolve(name)
	if !ok {
		return Result{}, false, nil
	}
	res, err := cmd.Handler(ctx, sessionKey, args)
	return res, true, err
}

// List returns every registered command sorted by name, for the help
// command.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ParseCommand splits "/name rest of args" into name and args. text that
// does not start with "/" or is only "/" is not a command. A bare "?" is
// also recognized as the help alias.
func ParseCommand(text string) (name, args string, isCommand bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "?" {
		return "help", "", true
	}
	if !strings.HasPrefix(trimmed, "/") {
		return "", "", false
	}
	body := strings.TrimPrefix(trimmed, "/")
	if body == "" {
		return "", "", false
	}
	fields := strings.SplitN(body, " ", 2)
	name = strings.ToLower(fields[0])
	if name == "" {
		return "", "", false
	}
	if len(fields) == 2 {
		args = strings.TrimSpace(fields[1])
	}
	return name, args, true
}
