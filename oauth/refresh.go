// Package oauth keeps delegated Spotify credentials fresh. One loop per
// channel with a stored refresh token runs for the life of the process:
// refresh, persist, sleep until shortly before expiry, with a fixed short
// retry delay on any failure. Loops are independent; one channel's failures
// never affect another's cadence.
package oauth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/ilya-zlobintsev/foobot/telemetry"
)

const (
	defaultRetryDelay   = 60 * time.Second
	defaultExpiryMargin = 60 * time.Second
)

// Spotify's authorization endpoints.
var SpotifyEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.spotify.com/authorize",
	TokenURL: "https://accounts.spotify.com/api/token",
}

// NewSpotifyConfig builds the oauth2 config for the Spotify refresh grant
// and authorization-code exchange.
func NewSpotifyConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     SpotifyEndpoint,
		Scopes:       []string{"user-read-playback-state"},
	}
}

// TokenStore is the credential persistence consumed by the refresher.
type TokenStore interface {
	ListSpotifyRefreshTokens(ctx context.Context) (map[string]string, error)
	UpdateSpotifyToken(ctx context.Context, channel, accessToken string, expiresAt time.Time) error
}

// Refresher schedules per-channel token refresh loops.
type Refresher struct {
	Store  TokenStore
	Config *oauth2.Config

	RetryDelay   time.Duration
	ExpiryMargin time.Duration
}

func (r *Refresher) retryDelay() time.Duration {
	if r.RetryDelay > 0 {
		return r.RetryDelay
	}
	return defaultRetryDelay
}

func (r *Refresher) expiryMargin() time.Duration {
	if r.ExpiryMargin > 0 {
		return r.ExpiryMargin
	}
	return defaultExpiryMargin
}

// Start launches one refresh loop per stored channel and returns. Loops run
// until ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	tokens, err := r.Store.ListSpotifyRefreshTokens(ctx)
	if err != nil {
		return fmt.Errorf("listing refresh tokens: %w", err)
	}
	for channel, refreshToken := range tokens {
		go r.RunChannel(ctx, channel, refreshToken)
	}
	slog.Info("token refresh loops started", slog.Int("channels", len(tokens)))
	return nil
}

// RunChannel runs the refresh loop for one channel until ctx is done.
func (r *Refresher) RunChannel(ctx context.Context, channel, refreshToken string) {
	for {
		tok, err := r.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			telemetry.Inc(telemetry.TokenRefreshFailures)
			slog.Warn("token refresh failed", slog.String("channel", channel), slog.Any("err", err))
			if !sleepCtx(ctx, r.retryDelay()) {
				return
			}
			continue
		}
		// providers may rotate the refresh token mid-stream
		if tok.RefreshToken != "" {
			refreshToken = tok.RefreshToken
		}

		if err := r.Store.UpdateSpotifyToken(ctx, channel, tok.AccessToken, tok.Expiry); err != nil {
			telemetry.Inc(telemetry.TokenRefreshFailures)
			slog.Warn("token persist failed", slog.String("channel", channel), slog.Any("err", err))
			if !sleepCtx(ctx, r.retryDelay()) {
				return
			}
			continue
		}

		telemetry.Inc(telemetry.TokenRefreshes)
		next := time.Until(tok.Expiry) - r.expiryMargin()
		if next < r.retryDelay() {
			next = r.retryDelay()
		}
		slog.Info("token refreshed", slog.String("channel", channel), slog.Duration("next", next))
		if !sleepCtx(ctx, next) {
			return
		}
	}
}

// sleepCtx waits for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
