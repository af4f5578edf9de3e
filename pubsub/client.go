// Package pubsub maintains the persistent subscription to Twitch's push
// notification edge. The client resolves joined channels to redemption
// topics, sends one LISTEN request per connection, keeps the socket alive
// with a periodic ping, and maps reward redemptions to stored command bodies
// run through the router pipeline. Any transport failure tears the
// connection down and a fresh attempt follows after a fixed delay, for the
// life of the process.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ilya-zlobintsev/foobot/db"
	"github.com/ilya-zlobintsev/foobot/telemetry"
)

// DefaultURL is the production pubsub edge.
const DefaultURL = "wss://pubsub-edge.twitch.tv"

const (
	defaultPingInterval   = 60 * time.Second
	defaultReconnectDelay = 5 * time.Second
)

// UserResolver maps channel logins to numeric ids and back.
type UserResolver interface {
	GetUsersByLogin(ctx context.Context, logins []string) (map[string]string, error)
	GetLoginByID(ctx context.Context, id string) (string, error)
}

// TriggerStore looks up the stored command body for a reward title.
type TriggerStore interface {
	GetRedeemTrigger(ctx context.Context, rewardTitle, channel string) (string, error)
}

// Runner executes a stored command body outside the chat path.
type Runner interface {
	RunBody(ctx context.Context, body string, args []string, caller, channel string) error
}

// Client is the event stream client. Fields must be set before Run.
type Client struct {
	URL       string // defaults to DefaultURL
	AuthToken string // delegated credential sent with LISTEN
	Channels  []string
	Helix     UserResolver
	Store     TriggerStore
	Runner    Runner

	PingInterval   time.Duration
	ReconnectDelay time.Duration
	Dialer         *websocket.Dialer
}

func (c *Client) url() string {
	if c.URL != "" {
		return c.URL
	}
	return DefaultURL
}

func (c *Client) pingInterval() time.Duration {
	if c.PingInterval > 0 {
		return c.PingInterval
	}
	return defaultPingInterval
}

func (c *Client) reconnectDelay() time.Duration {
	if c.ReconnectDelay > 0 {
		return c.ReconnectDelay
	}
	return defaultReconnectDelay
}

func (c *Client) dialer() *websocket.Dialer {
	if c.Dialer != nil {
		return c.Dialer
	}
	return websocket.DefaultDialer
}

// topics resolves the subscribed channel set to one topic per channel.
func (c *Client) topics(ctx context.Context) ([]string, error) {
	users, err := c.Helix.GetUsersByLogin(ctx, c.Channels)
	if err != nil {
		return nil, fmt.Errorf("resolving channel ids: %w", err)
	}
	topics := make([]string, 0, len(users))
	for _, id := range users {
		topics = append(topics, TopicPrefix+id)
	}
	sort.Strings(topics)
	if len(topics) == 0 {
		return nil, errors.New("no subscribable channels")
	}
	return topics, nil
}

// Run connects and listens until ctx is done, reconnecting after every
// transport failure. It never returns an error other than ctx's.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.connectOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("pubsub connection lost", slog.Any("err", err))
		}
		telemetry.Inc(telemetry.PubSubReconnects)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay()):
		}
	}
}

// connectOnce performs one full Connecting→Subscribed→Listening pass and
// returns when the connection dies.
func (c *Client) connectOnce(ctx context.Context) error {
	topics, err := c.topics(ctx)
	if err != nil {
		return err
	}

	conn, resp, err := c.dialer().DialContext(ctx, c.url(), nil)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.url(), err)
	}
	if resp != nil && resp.Body != nil {
		defer func() {
			if err := resp.Body.Close(); err != nil {
				slog.Warn("failed to close response body", slog.Any("err", err))
			}
		}()
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Debug("pubsub close", slog.Any("err", err))
		}
	}()

	slog.Info("pubsub connected", slog.Int("topics", len(topics)))

	listen := listenRequest{Type: "LISTEN", Data: listenData{Topics: topics, AuthToken: c.AuthToken}}
	if err := conn.WriteJSON(listen); err != nil {
		return fmt.Errorf("sending LISTEN: %w", err)
	}

	// the heartbeat runs until a write fails or the connection goes away
	pingDone := make(chan struct{})
	go c.pingLoop(ctx, conn, pingDone)
	defer close(pingDone)

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	for {
		kind, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		telemetry.Inc(telemetry.PubSubFrames)
		go c.handleFrame(ctx, payload)
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval())
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Warn("pubsub ping failed", slog.Any("err", err))
				_ = conn.Close()
				return
			}
			slog.Debug("pubsub ping sent")
		}
	}
}

// handleFrame parses one inbound text frame. It runs on its own goroutine so
// a slow redeem action never holds up the read loop. Malformed or irrelevant
// frames are logged and dropped; they never tear down the connection.
func (c *Client) handleFrame(ctx context.Context, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		slog.Warn("pubsub frame parse failed", slog.Any("err", err))
		return
	}
	id, ok := strings.CutPrefix(env.Data.Topic, TopicPrefix)
	if !ok {
		slog.Debug("pubsub frame ignored", slog.String("type", env.Type), slog.String("topic", env.Data.Topic))
		return
	}

	var rd redeem
	if err := json.Unmarshal([]byte(env.Data.Message), &rd); err != nil {
		slog.Warn("redeem payload parse failed", slog.Any("err", err))
		return
	}
	if rd.Type != "reward-redeemed" {
		return
	}

	channel, err := c.Helix.GetLoginByID(ctx, id)
	if err != nil {
		slog.Error("failed to resolve redeem channel", slog.String("id", id), slog.Any("err", err))
		return
	}

	title := rd.Data.Redemption.Reward.Title
	caller := rd.Data.Redemption.User.Login
	slog.Info("channel point redeem",
		slog.String("channel", channel), slog.String("login", caller), slog.String("reward", title))

	body, err := c.Store.GetRedeemTrigger(ctx, title, channel)
	if errors.Is(err, db.ErrNotFound) {
		slog.Debug("no action associated with redeem", slog.String("reward", title))
		return
	}
	if err != nil {
		slog.Error("failed to look up redeem trigger", slog.Any("err", err))
		return
	}

	var args []string
	if rd.Data.Redemption.Reward.IsUserInputRequired {
		args = strings.Fields(rd.Data.Redemption.UserInput)
	}

	telemetry.Inc(telemetry.RedeemsHandled)
	if err := c.Runner.RunBody(ctx, body, args, caller, channel); err != nil {
		slog.Error("redeem action failed",
			slog.String("channel", channel), slog.String("reward", title), slog.Any("err", err))
	}
}
