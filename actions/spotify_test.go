package actions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ilya-zlobintsev/foobot/db"
)

type fakeCredentials struct {
	creds map[string]*db.SpotifyCredential
}

func (f *fakeCredentials) GetSpotifyCredential(ctx context.Context, channel string) (*db.SpotifyCredential, error) {
	cred, ok := f.creds[channel]
	if !ok {
		return nil, db.ErrNotFound
	}
	return cred, nil
}

func TestSongHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/me/player" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"progress_ms": 65000,
			"item": {
				"name": "Breezeblocks",
				"artists": [{"name": "alt-J"}],
				"duration_ms": 227000
			}
		}`))
	}))
	defer srv.Close()

	client := &SpotifyClient{
		Credentials: &fakeCredentials{creds: map[string]*db.SpotifyCredential{
			"mychannel": {Channel: "mychannel", AccessToken: "tok-abc"},
		}},
		BaseURL: srv.URL,
	}
	h := Song(client)

	out, err := h(context.Background(), nil, "mychannel")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if want := "alt-J - Breezeblocks [1:05/3:47]"; out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestSongHandlerNothingPlaying(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &SpotifyClient{
		Credentials: &fakeCredentials{creds: map[string]*db.SpotifyCredential{
			"mychannel": {Channel: "mychannel", AccessToken: "tok"},
		}},
		BaseURL: srv.URL,
	}
	out, err := Song(client)(context.Background(), nil, "mychannel")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if want := "no song is currently playing"; out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestSongHandlerNotConfigured(t *testing.T) {
	client := &SpotifyClient{Credentials: &fakeCredentials{creds: map[string]*db.SpotifyCredential{}}}
	out, err := Song(client)(context.Background(), nil, "mychannel")
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if want := "not configured for this channel"; out != want {
		t.Errorf("out = %q, want %q", out, want)
	}
}

func TestFormatTrackTime(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{0, "0:00"},
		{1000, "0:01"},
		{61000, "1:01"},
		{600000, "10:00"},
	}
	for _, tc := range cases {
		if got := formatTrackTime(tc.ms); got != tc.want {
			t.Errorf("formatTrackTime(%d) = %q, want %q", tc.ms, got, tc.want)
		}
	}
}
