package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const defaultTranslateBaseURL = "http://127.0.0.1:5000"

// TranslateClient talks to the local translation sidecar.
type TranslateClient struct {
	HTTPClient *http.Client
	BaseURL    string
}

type translationResponse struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
	Text string `json:"text"`
}

func (tc *TranslateClient) http() *http.Client {
	if tc.HTTPClient != nil {
		return tc.HTTPClient
	}
	return http.DefaultClient
}

func (tc *TranslateClient) translate(ctx context.Context, text string) (*translationResponse, error) {
	base := tc.BaseURL
	if base == "" {
		base = defaultTranslateBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/"+url.PathEscape(text), nil)
	if err != nil {
		return nil, err
	}
	resp, err := tc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translate request failed: %s", resp.Status)
	}
	var tr translationResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}

// Translate returns the handler producing "src -> dest: text" replies. A body
// usually passes $ so the whole message arrives as one argument.
func Translate(client *TranslateClient) Handler {
	return func(ctx context.Context, args []string, channel string) (string, error) {
		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("missing argument")
		}
		tr, err := client.translate(ctx, text)
		if err != nil {
			return fmt.Sprintf("error when translating: %v", err), nil
		}
		return fmt.Sprintf("%s -> %s: %s", tr.Src, tr.Dest, tr.Text), nil
	}
}
