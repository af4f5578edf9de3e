// Package command routes incoming chat lines to built-in and stored commands.
// Each line is prefix-stripped, resolved against a fixed builtin table and
// then the store, gated on the caller's permission level, interpreted, and
// the result is handed to the outbound queue.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ilya-zlobintsev/foobot/config"
	"github.com/ilya-zlobintsev/foobot/db"
	"github.com/ilya-zlobintsev/foobot/queue"
	"github.com/ilya-zlobintsev/foobot/telemetry"
)

// DenialMessage is the chat reply for callers failing the permission gate.
const DenialMessage = "you do not have the permissions to use this command!"

// Store is the command/channel persistence consumed by the router.
type Store interface {
	GetCommand(ctx context.Context, trigger, channel string) (*db.StoredCommand, error)
	AddCommand(ctx context.Context, trigger, body, channel, permission string) error
	DelCommand(ctx context.Context, trigger, channel string) error
	ListCommands(ctx context.Context, channel string) ([]string, error)
	GetPrefix(ctx context.Context, channel string) (string, error)
	AddChannel(ctx context.Context, channel string) error
	DelChannel(ctx context.Context, channel string) error
}

// Transport manages channel membership on the chat connection.
type Transport interface {
	Join(channel string)
	Part(channel string)
}

// Producer enqueues outbound messages.
type Producer interface {
	Enqueue(ctx context.Context, msg queue.Message) error
}

// Interpreter runs a command body.
type Interpreter interface {
	Run(ctx context.Context, body string, callArgs []string, caller, channel string) (string, error)
}

// Message is one inbound chat line, decoupled from the IRC library's types.
type Message struct {
	ID      string
	Channel string
	Login   string
	Text    string
	Badges  map[string]int
}

// Router dispatches inbound lines. Any number of Route calls may run
// concurrently; all replies funnel through the single queue consumer.
type Router struct {
	Store     Store
	Transport Transport
	Queue     Producer
	Interp    Interpreter
	SuperUser string
}

func NewRouter(store Store, transport Transport, q Producer, interp Interpreter, superUser string) *Router {
	return &Router{
		Store:     store,
		Transport: transport,
		Queue:     q,
		Interp:    interp,
		SuperUser: strings.ToLower(superUser),
	}
}

type commandKind int

const (
	kindCustom commandKind = iota
	kindAddCmd
	kindDelCmd
	kindShowCmd
	kindListCmd
	kindJoin
	kindPart
)

type resolvedCommand struct {
	kind       commandKind
	body       string // kindCustom only
	permission Permission
}

// resolve returns the command bound to a trigger, builtins first. A nil
// result with nil error means the trigger is unknown.
func (r *Router) resolve(ctx context.Context, trigger, channel string) (*resolvedCommand, error) {
	switch trigger {
	case "ping":
		return &resolvedCommand{kind: kindCustom, body: "{ping}", permission: PermAll}, nil
	case "addcmd":
		return &resolvedCommand{kind: kindAddCmd, permission: PermMods}, nil
	case "delcmd":
		return &resolvedCommand{kind: kindDelCmd, permission: PermMods}, nil
	case "showcmd":
		return &resolvedCommand{kind: kindShowCmd, permission: PermAll}, nil
	case "help", "commands":
		return &resolvedCommand{kind: kindListCmd, permission: PermAll}, nil
	case "join":
		return &resolvedCommand{kind: kindJoin, permission: PermSuper}, nil
	case "part":
		return &resolvedCommand{kind: kindPart, permission: PermSuper}, nil
	}

	stored, err := r.Store.GetCommand(ctx, trigger, channel)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	perm, err := ParsePermission(stored.Permission)
	if err != nil {
		return nil, err
	}
	return &resolvedCommand{kind: kindCustom, body: stored.Body, permission: perm}, nil
}

// prefix returns the channel's configured prefix, falling back to the default.
func (r *Router) prefix(ctx context.Context, channel string) string {
	prefix, err := r.Store.GetPrefix(ctx, channel)
	if errors.Is(err, db.ErrNotFound) {
		return config.DefaultPrefix
	}
	if err != nil {
		slog.Warn("failed to get channel prefix", slog.String("channel", channel), slog.Any("err", err))
		return config.DefaultPrefix
	}
	return prefix
}

// Route processes one inbound line. Lines without the channel prefix and
// unknown triggers are ignored. Replies, including denials and errors, go
// through the queue; Route itself only errors when enqueueing fails.
func (r *Router) Route(ctx context.Context, msg Message) error {
	rest, ok := strings.CutPrefix(msg.Text, r.prefix(ctx, msg.Channel))
	if !ok {
		return nil
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil
	}
	trigger, args := fields[0], fields[1:]

	log := telemetry.LoggerWithCorr(ctx)

	cmd, err := r.resolve(ctx, trigger, msg.Channel)
	if err != nil {
		log.Error("failed to resolve command",
			slog.String("trigger", trigger), slog.String("channel", msg.Channel), slog.Any("err", err))
		return nil
	}
	if cmd == nil {
		log.Debug("unknown trigger", slog.String("trigger", trigger), slog.String("channel", msg.Channel))
		return nil
	}

	if !cmd.permission.Allows(msg.Badges, msg.Login, r.SuperUser) {
		telemetry.Inc(telemetry.PermissionDenied)
		return r.Queue.Enqueue(ctx, queue.Reply(msg.Channel, msg.ID, DenialMessage))
	}

	telemetry.Inc(telemetry.CommandsExecuted)
	log.Info("executing command",
		slog.String("trigger", trigger), slog.String("channel", msg.Channel), slog.String("login", msg.Login))

	ctx, span := telemetry.StartSpan(ctx, "command", "dispatch "+trigger)
	response, err := r.run(ctx, cmd, args, msg)
	if err != nil {
		telemetry.RecordError(span, err)
	} else {
		telemetry.SetSpanSuccess(span)
	}
	span.End()
	if err != nil {
		telemetry.Inc(telemetry.CommandErrors)
		log.Warn("command failed",
			slog.String("trigger", trigger), slog.String("channel", msg.Channel), slog.Any("err", err))
		return r.Queue.Enqueue(ctx, queue.Reply(msg.Channel, msg.ID, fmt.Sprintf("error: %v", err)))
	}
	if response == "" {
		return nil
	}
	return r.Queue.Enqueue(ctx, queue.Reply(msg.Channel, msg.ID, response))
}

func (r *Router) run(ctx context.Context, cmd *resolvedCommand, args []string, msg Message) (string, error) {
	switch cmd.kind {
	case kindCustom:
		return r.Interp.Run(ctx, cmd.body, args, msg.Login, msg.Channel)
	case kindAddCmd:
		return r.addCmd(ctx, args, msg.Channel)
	case kindDelCmd:
		return r.delCmd(ctx, args, msg.Channel)
	case kindShowCmd:
		return r.showCmd(ctx, args, msg.Channel)
	case kindListCmd:
		return r.listCmd(ctx, msg.Channel)
	case kindJoin:
		return r.join(ctx, args)
	case kindPart:
		return r.part(ctx, args, msg.Channel)
	default:
		return "", fmt.Errorf("unhandled command kind %d", cmd.kind)
	}
}

func (r *Router) addCmd(ctx context.Context, args []string, channel string) (string, error) {
	if len(args) < 2 {
		return "missing arguments", nil
	}
	trigger, body := args[0], strings.Join(args[1:], " ")
	err := r.Store.AddCommand(ctx, trigger, body, channel, PermAll.String())
	if errors.Is(err, db.ErrAlreadyExists) {
		return fmt.Sprintf("command %q already exists", trigger), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("successfully added command %q", trigger), nil
}

func (r *Router) delCmd(ctx context.Context, args []string, channel string) (string, error) {
	if len(args) == 0 {
		return "missing command", nil
	}
	trigger := args[0]
	err := r.Store.DelCommand(ctx, trigger, channel)
	if errors.Is(err, db.ErrNotFound) {
		return fmt.Sprintf("command %q not found", trigger), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("successfully removed command %q", trigger), nil
}

func (r *Router) showCmd(ctx context.Context, args []string, channel string) (string, error) {
	if len(args) == 0 {
		return "command not specified", nil
	}
	stored, err := r.Store.GetCommand(ctx, args[0], channel)
	if errors.Is(err, db.ErrNotFound) {
		return "no such command", nil
	}
	if err != nil {
		return "", err
	}
	return stored.Body, nil
}

func (r *Router) listCmd(ctx context.Context, channel string) (string, error) {
	names, err := r.Store.ListCommands(ctx, channel)
	if err != nil {
		return "", err
	}
	return "Custom commands: " + strings.Join(names, ", "), nil
}

func (r *Router) join(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "missing channel", nil
	}
	target := strings.ToLower(args[0])
	if err := r.Store.AddChannel(ctx, target); err != nil && !errors.Is(err, db.ErrAlreadyExists) {
		return "", err
	}
	r.Transport.Join(target)
	return "", nil
}

func (r *Router) part(ctx context.Context, args []string, current string) (string, error) {
	target := current
	if len(args) > 0 {
		target = strings.ToLower(args[0])
	}
	if err := r.Store.DelChannel(ctx, target); err != nil && !errors.Is(err, db.ErrNotFound) {
		return "", err
	}
	r.Transport.Part(target)
	return "", nil
}

// RunBody interprets a stored body outside the normal chat path, as the
// event stream does for reward redemptions, and enqueues the result as a
// plain channel message.
func (r *Router) RunBody(ctx context.Context, body string, args []string, caller, channel string) error {
	response, err := r.Interp.Run(ctx, body, args, caller, channel)
	if err != nil {
		return err
	}
	if response == "" {
		return nil
	}
	return r.Queue.Enqueue(ctx, queue.Say(channel, response))
}
