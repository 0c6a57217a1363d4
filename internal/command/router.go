// Package command parses slash commands typed into chat and routes them to handlers.
package command

import (
	"sort"
	"strings"

	"github.com/bixboy/NetLessons/internal/session"
)

// Prefix marks a chat message as a command.
const Prefix = "/"

// Handler runs a command on behalf of a session.
type Handler func(p *session.Player, args []string)

// Command is one registered slash command.
type Command struct {
	Name      string
	Usage     string
	AdminOnly bool
	Run       Handler
}

// DenyFunc is called instead of the handler when a non-admin invokes an admin-only command.
type DenyFunc func(p *session.Player, cmd Command)

// Router maps lower-cased command names to commands. Registration happens at
// startup; lookups happen on the tick goroutine.
type Router struct {
	commands map[string]Command
	deny     DenyFunc
}

// NewRouter creates a router. deny may be nil, in which case unauthorized calls are dropped.
func NewRouter(deny DenyFunc) *Router {
	return &Router{
		commands: make(map[string]Command),
		deny:     deny,
	}
}

// Register adds a command. A later registration with the same name replaces the earlier one.
func (r *Router) Register(cmd Command) {
	cmd.Name = strings.ToLower(cmd.Name)
	r.commands[cmd.Name] = cmd
}

// Parse splits "/name a b" into "name" and ["a", "b"]. ok is false when the
// text is not a command or has no command token.
func Parse(text string) (name string, args []string, ok bool) {
	if !strings.HasPrefix(text, Prefix) {
		return "", nil, false
	}
	fields := strings.Fields(text[len(Prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// Dispatch runs the command in text, if any. It reports whether the text was
// consumed; unrecognized commands are not consumed and should be relayed as chat.
func (r *Router) Dispatch(p *session.Player, text string) bool {
	name, args, ok := Parse(text)
	if !ok {
		return false
	}
	cmd, ok := r.commands[name]
	if !ok {
		return false
	}
	if cmd.AdminOnly && !p.Admin {
		if r.deny != nil {
			r.deny(p, cmd)
		}
		return true
	}
	cmd.Run(p, args)
	return true
}

// Commands returns the registered commands sorted by name.
func (r *Router) Commands() []Command {
	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
