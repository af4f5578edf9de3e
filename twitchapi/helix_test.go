package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func seededTokenSource() *TokenSource {
	ts := &TokenSource{ClientID: "test-client-id", ClientSecret: "test-secret"}
	ts.Seed("test-token", time.Now().Add(time.Hour))
	return ts
}

func TestGetUsersByLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Client-Id") != "test-client-id" {
			t.Errorf("missing or wrong Client-Id header")
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("missing or wrong Authorization header")
		}
		logins := r.URL.Query()["login"]
		if len(logins) != 2 {
			t.Errorf("login params = %v, want 2 entries", logins)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"id": "111", "login": "alpha"},
				{"id": "222", "login": "beta"},
			},
		})
	}))
	defer server.Close()

	client := &HelixClient{AppTokenSource: seededTokenSource(), ClientID: "test-client-id", BaseURL: server.URL}
	ids, err := client.GetUsersByLogin(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("GetUsersByLogin: %v", err)
	}
	if ids["alpha"] != "111" || ids["beta"] != "222" {
		t.Errorf("ids = %v", ids)
	}
}

func TestGetUsersByLoginEmpty(t *testing.T) {
	client := &HelixClient{AppTokenSource: seededTokenSource(), ClientID: "test-client-id"}
	ids, err := client.GetUsersByLogin(context.Background(), nil)
	if err != nil {
		t.Fatalf("GetUsersByLogin(nil): %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected empty map, got %v", ids)
	}
}

func TestGetLoginByID(t *testing.T) {
	tests := []struct {
		name        string
		id          string
		data        []map[string]string
		want        string
		errContains string
	}{
		{
			name: "successful lookup",
			id:   "111",
			data: []map[string]string{{"id": "111", "login": "Alpha"}},
			want: "alpha",
		},
		{
			name:        "user not found",
			id:          "999",
			data:        []map[string]string{},
			errContains: "user not found",
		},
		{
			name:        "empty id",
			id:          "",
			errContains: "id empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"data": tt.data})
			}))
			defer server.Close()

			client := &HelixClient{AppTokenSource: seededTokenSource(), ClientID: "test-client-id", BaseURL: server.URL}
			login, err := client.GetLoginByID(context.Background(), tt.id)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("err = %v, want containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetLoginByID: %v", err)
			}
			if login != tt.want {
				t.Errorf("login = %q, want %q", login, tt.want)
			}
		})
	}
}

func TestStartCommercial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body struct {
			BroadcasterID string `json:"broadcaster_id"`
			Length        int    `json:"length"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.BroadcasterID != "111" || body.Length != 30 {
			t.Errorf("body = %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"length": 30}}})
	}))
	defer server.Close()

	client := &HelixClient{AppTokenSource: seededTokenSource(), ClientID: "test-client-id", BaseURL: server.URL}
	if err := client.StartCommercial(context.Background(), "111", 30); err != nil {
		t.Fatalf("StartCommercial: %v", err)
	}
	if err := client.StartCommercial(context.Background(), "", 30); err == nil {
		t.Errorf("expected error for empty broadcaster id")
	}
}
