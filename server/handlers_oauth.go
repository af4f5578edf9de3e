package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ilya-zlobintsev/foobot/db"
	"github.com/ilya-zlobintsev/foobot/twitchapi"
)

const stateTTL = 10 * time.Minute

func newState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HandleTwitchOAuthStart initiates the Twitch OAuth flow by redirecting to
// Twitch.
func (h *Handlers) HandleTwitchOAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.cfg.TwitchClientID == "" || h.cfg.TwitchRedirectURI == "" {
		http.Error(w, "oauth not configured (need TWITCH_CLIENT_ID + TWITCH_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	st, err := newState()
	if err != nil {
		http.Error(w, "state gen error", http.StatusInternalServerError)
		return
	}
	h.addOAuthState(st, "", time.Now().Add(stateTTL))
	authURL, err := twitchapi.BuildAuthorizeURL(h.cfg.TwitchClientID, h.cfg.TwitchRedirectURI, h.cfg.TwitchScopes, st)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleTwitchOAuthCallback exchanges the authorization code and stores the
// delegated credential in the settings table.
func (h *Handlers) HandleTwitchOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", http.StatusBadRequest)
		return
	}
	if _, ok := h.takeOAuthState(st); !ok {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	res, err := twitchapi.ExchangeAuthCode(ctx, h.cfg.TwitchClientID, h.cfg.TwitchClientSecret, code, h.cfg.TwitchRedirectURI, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.store.SetSetting(ctx, "twitch_oauth_token", res.AccessToken); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if res.RefreshToken != "" {
		if err := h.store.SetSetting(ctx, "twitch_refresh_token", res.RefreshToken); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"status": "ok", "scopes": res.Scope, "expires_in": res.ExpiresIn}); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}

// HandleSpotifyOAuthStart initiates the Spotify OAuth flow for one chat
// channel, passed as the channel query parameter.
func (h *Handlers) HandleSpotifyOAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.spotify == nil || h.spotify.ClientID == "" || h.spotify.RedirectURL == "" {
		http.Error(w, "spotify oauth not configured (need SPOTIFY_CLIENT_ID + SPOTIFY_REDIRECT_URI)", http.StatusBadRequest)
		return
	}
	channel := strings.ToLower(r.URL.Query().Get("channel"))
	if channel == "" {
		http.Error(w, "missing channel", http.StatusBadRequest)
		return
	}
	st, err := newState()
	if err != nil {
		http.Error(w, "state gen error", http.StatusInternalServerError)
		return
	}
	h.addOAuthState(st, channel, time.Now().Add(stateTTL))
	http.Redirect(w, r, h.spotify.AuthCodeURL(st), http.StatusFound)
}

// HandleSpotifyOAuthCallback exchanges the code and binds the credential to
// the channel recorded at flow start.
func (h *Handlers) HandleSpotifyOAuthCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	st := r.URL.Query().Get("state")
	if code == "" || st == "" {
		http.Error(w, "missing code/state", http.StatusBadRequest)
		return
	}
	pending, ok := h.takeOAuthState(st)
	if !ok || pending.channel == "" {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	tok, err := h.spotify.Exchange(ctx, code)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	cred := &db.SpotifyCredential{
		Channel:      pending.channel,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if err := h.store.UpsertSpotifyCredential(ctx, cred); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("spotify credential stored", slog.String("channel", pending.channel))
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"status": "ok", "channel": pending.channel}); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
