// Package commands implements the gateway's slash-command registry: full
// "/name args" messages handled by the gateway rather than forwarded to the
// LLM. Mirrors the registry+builtin split (canonical name + aliases +
// summary + handler).
package commands

import "context"

// Result is what a command handler returns; Response is sent back on the
// originating channel (or as the chat.send reply for client-originated
// slash commands).
type Result struct {
	Command  string `json:"command"`
	Response string `json:"response"`
}

// Handler executes one slash command invocation against the resolved
// session key.
type Handler func(ctx context.Context, sessionKey string, args string) (Result, error)

// Command is one registered slash command.
type Command struct {
	Name    string
	Aliases []string
	Summary string
	Handler Handler
}
