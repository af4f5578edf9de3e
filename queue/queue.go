// Package queue serializes outbound chat messages. All producers (command
// router invocations, the event stream client) share one bounded FIFO channel;
// a single consumer drains it in arrival order and waits a fixed quantum after
// each send. That pause is the bot's only rate limiting and is global, not
// per-channel.
package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/ilya-zlobintsev/foobot/telemetry"
)

// Kind tags an outbound message variant.
type Kind int

const (
	// KindSay is a normal channel message.
	KindSay Kind = iota
	// KindReply is a threaded reply to a specific chat message.
	KindReply
	// KindRaw is a raw privmsg, used for moderation commands like /timeout.
	KindRaw
)

// Message is one pending outbound reply. It is owned by the queue from
// Enqueue until the consumer hands it to the transport, then discarded.
type Message struct {
	Kind     Kind
	Channel  string
	Text     string
	ParentID string // message id being replied to; KindReply only
}

// Say builds a channel message.
func Say(channel, text string) Message {
	return Message{Kind: KindSay, Channel: channel, Text: text}
}

// Reply builds a threaded reply to the message identified by parentID.
func Reply(channel, parentID, text string) Message {
	return Message{Kind: KindReply, Channel: channel, Text: text, ParentID: parentID}
}

// Raw builds a raw privmsg.
func Raw(channel, text string) Message {
	return Message{Kind: KindRaw, Channel: channel, Text: text}
}

// Sender performs the underlying transport send for each message variant.
type Sender interface {
	Say(channel, text string) error
	Reply(channel, parentID, text string) error
	Raw(channel, text string) error
}

// Queue is the bounded outbound FIFO. Construct with New; run exactly one
// consumer via Run.
type Queue struct {
	ch       chan Message
	interval time.Duration
}

// New creates a queue holding at most size pending messages, pausing interval
// between sends.
func New(size int, interval time.Duration) *Queue {
	if size <= 0 {
		size = 1000
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Queue{ch: make(chan Message, size), interval: interval}
}

// Enqueue appends a message. It blocks while the queue is full and fails only
// when ctx is done.
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		telemetry.SetQueueDepth(len(q.ch))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of pending messages.
func (q *Queue) Len() int { return len(q.ch) }

// Run drains the queue in strict arrival order until ctx is done. A failed
// send is logged and skipped; it never stops the loop. Messages still queued
// at shutdown are dropped (the queue has no persistence).
func (q *Queue) Run(ctx context.Context, sender Sender) {
	slog.Info("outbound queue consumer started", slog.Duration("interval", q.interval))
	for {
		select {
		case <-ctx.Done():
			slog.Info("outbound queue consumer stopped", slog.Int("dropped", len(q.ch)))
			return
		case msg := <-q.ch:
			telemetry.SetQueueDepth(len(q.ch))
			var err error
			switch msg.Kind {
			case KindSay:
				err = sender.Say(msg.Channel, msg.Text)
			case KindReply:
				err = sender.Reply(msg.Channel, msg.ParentID, msg.Text)
			case KindRaw:
				err = sender.Raw(msg.Channel, msg.Text)
			}
			if err != nil {
				if telemetry.SendFailures != nil {
					telemetry.SendFailures.Inc()
				}
				slog.Error("outbound send failed", slog.String("channel", msg.Channel), slog.Any("err", err))
			} else if telemetry.MessagesSent != nil {
				telemetry.MessagesSent.Inc()
			}

			select {
			case <-ctx.Done():
				slog.Info("outbound queue consumer stopped", slog.Int("dropped", len(q.ch)))
				return
			case <-time.After(q.interval):
			}
		}
	}
}
