// Command foobot is the chat bot entrypoint. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Joins the stored channels over IRC and routes incoming lines through
//     the command pipeline into the serialized outbound queue.
//   - Listens for channel point redemptions on the pubsub edge and runs the
//     stored action for each mapped reward.
//   - Keeps per-channel Spotify credentials fresh.
//   - Exposes an HTTP surface with /healthz, /metrics, /commands/{channel},
//     and the OAuth flows.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ilya-zlobintsev/foobot/actions"
	"github.com/ilya-zlobintsev/foobot/chat"
	"github.com/ilya-zlobintsev/foobot/command"
	"github.com/ilya-zlobintsev/foobot/config"
	"github.com/ilya-zlobintsev/foobot/db"
	"github.com/ilya-zlobintsev/foobot/oauth"
	"github.com/ilya-zlobintsev/foobot/pubsub"
	"github.com/ilya-zlobintsev/foobot/queue"
	"github.com/ilya-zlobintsev/foobot/script"
	"github.com/ilya-zlobintsev/foobot/server"
	"github.com/ilya-zlobintsev/foobot/telemetry"
	"github.com/ilya-zlobintsev/foobot/twitchapi"
)

const startupMessage = "AlienPls Bot started AlienPls"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Error("chat credentials missing", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdown, err := telemetry.InitTracing("foobot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first, embedded SQL as fallback for deployments
	// predating the schema_migrations table.
	slog.Info("running database migrations")
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting embedded SQL fallback", slog.Any("err", err))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := db.NewStore(database)

	// Integration keys fall back to the settings table when not in the env.
	weatherKey := settingFallback(ctx, store, cfg.OpenWeatherMapKey, "openweathermap_key")
	spotifyID := settingFallback(ctx, store, cfg.SpotifyClientID, "spotify_client_id")
	spotifySecret := settingFallback(ctx, store, cfg.SpotifyClientSecret, "spotify_client_secret")

	appTokens := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}
	helix := &twitchapi.HelixClient{AppTokenSource: appTokens, ClientID: cfg.TwitchClientID}

	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		tokenCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
		if tok, err := appTokens.Get(tokenCtx); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			slog.Info("twitch app token acquired", slog.String("tail", "***"+tok[len(tok)-6:]))
		}
		cancel()
	}

	chatClient := chat.New(cfg.TwitchBotUsername, cfg.TwitchOAuthToken)
	outbound := queue.New(1000, cfg.SendInterval)

	registry := actions.NewRegistry()
	registry.Register("ping", actions.Ping())
	registry.Register("weather", actions.Weather(&actions.WeatherClient{APIKey: weatherKey}))
	registry.Register("translate", actions.Translate(&actions.TranslateClient{}))
	registry.Register("song", actions.Song(&actions.SpotifyClient{Credentials: store}))
	registry.Register("hitman", actions.Hitman(store, outbound, actions.DefaultHitmanDelay))
	registry.Register("bodyguard", actions.Bodyguard(store, outbound))
	registry.Register("commercial", actions.Commercial(helix))

	interp := &script.Interpreter{Actions: registry}
	router := command.NewRouter(store, chatClient, outbound, interp, cfg.SuperUser)

	chatClient.OnMessage(func(msg command.Message) {
		go func() {
			if err := router.Route(ctx, msg); err != nil {
				slog.Error("routing failed", slog.String("channel", msg.Channel), slog.Any("err", err))
			}
		}()
	})

	go outbound.Run(ctx, chatClient)

	channels, err := store.ListChannels(ctx)
	if err != nil {
		slog.Error("failed to list channels", slog.Any("err", err))
		os.Exit(1)
	}
	for _, channel := range channels {
		chatClient.Join(channel)
		if err := outbound.Enqueue(ctx, queue.Say(channel, startupMessage)); err != nil {
			slog.Warn("failed to enqueue startup message", slog.String("channel", channel), slog.Any("err", err))
		}
	}

	go func() {
		if err := chatClient.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("chat connection ended", slog.Any("err", err))
			stop()
		}
	}()

	if len(channels) > 0 {
		stream := &pubsub.Client{
			AuthToken: strings.TrimPrefix(cfg.TwitchOAuthToken, "oauth:"),
			Channels:  channels,
			Helix:     helix,
			Store:     store,
			Runner:    router,
		}
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("pubsub client exited", slog.Any("err", err))
			}
		}()
	} else {
		slog.Info("no channels stored; pubsub client not started")
	}

	spotifyCfg := oauth.NewSpotifyConfig(spotifyID, spotifySecret, cfg.SpotifyRedirectURI)
	refresher := &oauth.Refresher{Store: store, Config: spotifyCfg}
	if err := refresher.Start(ctx); err != nil {
		slog.Warn("token refresh loops not started", slog.Any("err", err))
	}

	go func() {
		if err := server.Start(ctx, store, cfg, spotifyCfg); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

// settingFallback prefers the env-provided value, then the settings table.
func settingFallback(ctx context.Context, store *db.Store, envValue, option string) string {
	if envValue != "" {
		return envValue
	}
	value, err := store.GetSetting(ctx, option)
	if err != nil {
		return ""
	}
	return value
}
