// Package actions implements the registry of named actions invoked from
// command bodies. Every action shares one contract: it receives the resolved
// argument list and the channel, and returns its textual result — an empty
// result means the action produced no chat output.
package actions

import (
	"context"
	"fmt"
	"log/slog"
)

// Handler runs one action.
type Handler func(ctx context.Context, args []string, channel string) (string, error)

// Registry maps action names to handlers.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to an action name, replacing any previous binding.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Names returns the registered action names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Invoke runs the named action. Unknown names are an execution error.
func (r *Registry) Invoke(ctx context.Context, name string, args []string, channel string) (string, error) {
	h, ok := r.handlers[name]
	if !ok {
		return "", fmt.Errorf("unknown action %s", name)
	}
	slog.Debug("executing action", slog.String("action", name), slog.Any("args", args), slog.String("channel", channel))
	return h(ctx, args, channel)
}

// firstArg returns the first argument or an execution error.
func firstArg(args []string) (string, error) {
	if len(args) == 0 || args[0] == "" {
		return "", fmt.Errorf("missing argument")
	}
	return args[0], nil
}

// Ping returns the liveness handler backing the built-in ping command.
func Ping() Handler {
	return func(ctx context.Context, args []string, channel string) (string, error) {
		return "pong!", nil
	}
}
