package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ilya-zlobintsev/foobot/db"
)

const defaultSpotifyBaseURL = "https://api.spotify.com"

// CredentialSource supplies the delegated Spotify credential for a channel.
type CredentialSource interface {
	GetSpotifyCredential(ctx context.Context, channel string) (*db.SpotifyCredential, error)
}

// SpotifyClient queries the Spotify player API with per-channel credentials.
type SpotifyClient struct {
	Credentials CredentialSource
	HTTPClient  *http.Client
	BaseURL     string
}

type playerResponse struct {
	ProgressMs int64 `json:"progress_ms"`
	Item       struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		DurationMs int64 `json:"duration_ms"`
	} `json:"item"`
}

func (sc *SpotifyClient) http() *http.Client {
	if sc.HTTPClient != nil {
		return sc.HTTPClient
	}
	return http.DefaultClient
}

func formatTrackTime(ms int64) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// currentSong returns the formatted now-playing line, or "" when nothing plays.
func (sc *SpotifyClient) currentSong(ctx context.Context, accessToken string) (string, error) {
	base := sc.BaseURL
	if base == "" {
		base = defaultSpotifyBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/v1/me/player", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := sc.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	// The player endpoint answers 204 with no body when nothing is playing.
	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify player request failed: %s", resp.Status)
	}
	var pr playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", err
	}
	if pr.Item.Name == "" {
		return "", nil
	}
	artists := ""
	for i, a := range pr.Item.Artists {
		if i > 0 {
			artists += ", "
		}
		artists += a.Name
	}
	return fmt.Sprintf("%s - %s [%s/%s]",
		artists, pr.Item.Name, formatTrackTime(pr.ProgressMs), formatTrackTime(pr.Item.DurationMs)), nil
}

// Song returns the now-playing handler. Channels without a stored credential
// get a human-readable notice rather than an error.
func Song(client *SpotifyClient) Handler {
	return func(ctx context.Context, args []string, channel string) (string, error) {
		cred, err := client.Credentials.GetSpotifyCredential(ctx, channel)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return "not configured for this channel", nil
			}
			return "", err
		}
		song, err := client.currentSong(ctx, cred.AccessToken)
		if err != nil {
			return fmt.Sprintf("error getting current song: %v", err), nil
		}
		if song == "" {
			return "no song is currently playing", nil
		}
		return song, nil
	}
}
