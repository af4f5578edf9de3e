// Package twitchapi contains minimal helpers to interact with Twitch Helix
// APIs: user id resolution in both directions (needed for event stream topics)
// and starting commercials, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

const defaultHelixBaseURL = "https://api.twitch.tv"

// HelixClient provides the Helix calls the bot needs.
type HelixClient struct {
	AppTokenSource *TokenSource
	ClientID       string
	HTTPClient     *http.Client
	BaseURL        string // overridable for tests; defaults to the public Helix host
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) baseURL() string {
	if hc.BaseURL != "" {
		return hc.BaseURL
	}
	return defaultHelixBaseURL
}

type helixUser struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

func (hc *HelixClient) getUsers(ctx context.Context, param string, values []string) ([]helixUser, error) {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return nil, err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, hc.baseURL()+"/helix/users", nil)
	q := req.URL.Query()
	for _, v := range values {
		q.Add(param, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helix users request failed: %s", resp.Status)
	}
	var body struct {
		Data []helixUser `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// GetUsersByLogin resolves channel login names to user ids in a single call.
func (hc *HelixClient) GetUsersByLogin(ctx context.Context, logins []string) (map[string]string, error) {
	if len(logins) == 0 {
		return map[string]string{}, nil
	}
	users, err := hc.getUsers(ctx, "login", logins)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]string, len(users))
	for _, u := range users {
		ids[strings.ToLower(u.Login)] = u.ID
	}
	return ids, nil
}

// GetLoginByID resolves a numeric user id back to its login name.
func (hc *HelixClient) GetLoginByID(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("id empty")
	}
	users, err := hc.getUsers(ctx, "id", []string{id})
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return strings.ToLower(users[0].Login), nil
}

// StartCommercial runs an ad of the given length (seconds) on the channel
// identified by broadcasterID.
func (hc *HelixClient) StartCommercial(ctx context.Context, broadcasterID string, length int) error {
	if broadcasterID == "" {
		return fmt.Errorf("broadcasterID empty")
	}
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	payload, _ := json.Marshal(map[string]any{
		"broadcaster_id": broadcasterID,
		"length":         length,
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, hc.baseURL()+"/helix/channels/commercial", strings.NewReader(string(payload)))
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("start commercial failed: %s", resp.Status)
	}
	return nil
}
