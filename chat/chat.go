package chat

import (
	"context"
	"log/slog"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/ilya-zlobintsev/foobot/command"
	"github.com/ilya-zlobintsev/foobot/telemetry"
)

// Client wraps the Twitch IRC connection. It is the transport collaborator
// for the router (Join/Part) and the sender for the outbound queue.
type Client struct {
	irc *twitch.Client

	mu     sync.Mutex
	joined map[string]bool
}

// New creates a chat client. The token must carry chat:read/chat:edit scopes
// and include the "oauth:" prefix.
func New(username, token string) *Client {
	return &Client{
		irc:    twitch.NewClient(username, token),
		joined: make(map[string]bool),
	}
}

// OnMessage registers the inbound line handler. Register before Run.
func (c *Client) OnMessage(handler func(msg command.Message)) {
	c.irc.OnPrivateMessage(func(pm twitch.PrivateMessage) {
		handler(command.Message{
			ID:      pm.ID,
			Channel: pm.Channel,
			Login:   pm.User.Name,
			Text:    pm.Message,
			Badges:  pm.User.Badges,
		})
	})
}

// Join enters a channel and tracks it for the joined-channels gauge.
func (c *Client) Join(channel string) {
	c.irc.Join(channel)
	c.mu.Lock()
	c.joined[channel] = true
	n := len(c.joined)
	c.mu.Unlock()
	if telemetry.JoinedChannelsGauge != nil {
		telemetry.JoinedChannelsGauge.Set(float64(n))
	}
	slog.Info("joined channel", slog.String("channel", channel))
}

// Part leaves a channel.
func (c *Client) Part(channel string) {
	c.irc.Depart(channel)
	c.mu.Lock()
	delete(c.joined, channel)
	n := len(c.joined)
	c.mu.Unlock()
	if telemetry.JoinedChannelsGauge != nil {
		telemetry.JoinedChannelsGauge.Set(float64(n))
	}
	slog.Info("parted channel", slog.String("channel", channel))
}

// Joined returns the channels the client is currently in.
func (c *Client) Joined() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	channels := make([]string, 0, len(c.joined))
	for channel := range c.joined {
		channels = append(channels, channel)
	}
	return channels
}

// Say sends a normal channel message.
func (c *Client) Say(channel, text string) error {
	c.irc.Say(channel, text)
	return nil
}

// Reply sends a threaded reply to the message identified by parentID.
func (c *Client) Reply(channel, parentID, text string) error {
	c.irc.Reply(channel, parentID, text)
	return nil
}

// Raw sends the text as a plain privmsg, used for moderation commands.
func (c *Client) Raw(channel, text string) error {
	c.irc.Say(channel, text)
	return nil
}

// Run connects and blocks until the connection ends or ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := c.irc.Disconnect(); err != nil {
				slog.Warn("chat disconnect", slog.Any("err", err))
			}
		case <-done:
		}
	}()
	defer close(done)

	err := c.irc.Connect()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
