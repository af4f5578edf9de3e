package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// MockTwitchServer creates a test server that mocks Twitch Helix API responses
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockUsers adds a /helix/users handler resolving both login->id and id->login
// queries from the given login->id mapping.
func (m *MockTwitchServer) MockUsers(users map[string]string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		type user struct {
			ID    string `json:"id"`
			Login string `json:"login"`
		}
		var data []user
		for _, login := range r.URL.Query()["login"] {
			if id, ok := users[strings.ToLower(login)]; ok {
				data = append(data, user{ID: id, Login: strings.ToLower(login)})
			}
		}
		for _, id := range r.URL.Query()["id"] {
			for login, uid := range users {
				if uid == id {
					data = append(data, user{ID: uid, Login: login})
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data}) //nolint:errcheck // test mock response
	}
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockCommercialResponse adds a handler for /helix/channels/commercial.
func (m *MockTwitchServer) MockCommercialResponse() {
	m.Handlers["/helix/channels/commercial"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"data": []map[string]interface{}{
				{"length": 30, "message": "", "retry_after": 480},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockPubSubServer is a websocket endpoint standing in for the push
// notification edge. It records LISTEN requests and lets tests push frames
// and drop connections to exercise the reconnect path.
type MockPubSubServer struct {
	*httptest.Server

	mu      sync.Mutex
	conns   []*websocket.Conn
	listens []ListenRequest

	// Connected is signalled once per accepted connection.
	Connected chan struct{}
}

// ListenRequest is one received subscription request.
type ListenRequest struct {
	Type string `json:"type"`
	Data struct {
		Topics    []string `json:"topics"`
		AuthToken string   `json:"auth_token"`
	} `json:"data"`
}

// NewMockPubSubServer starts the websocket endpoint.
func NewMockPubSubServer(t *testing.T) *MockPubSubServer {
	t.Helper()
	m := &MockPubSubServer{Connected: make(chan struct{}, 16)}
	upgrader := websocket.Upgrader{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		m.mu.Lock()
		m.conns = append(m.conns, conn)
		m.mu.Unlock()
		m.Connected <- struct{}{}
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req ListenRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				continue
			}
			if req.Type == "LISTEN" {
				m.mu.Lock()
				m.listens = append(m.listens, req)
				m.mu.Unlock()
			}
		}
	}))
	t.Cleanup(func() {
		m.CloseAll()
		m.Close()
	})
	return m
}

// URL returns the ws:// address of the endpoint.
func (m *MockPubSubServer) URL() string {
	return "ws" + strings.TrimPrefix(m.Server.URL, "http")
}

// Listens returns a copy of the received subscription requests.
func (m *MockPubSubServer) Listens() []ListenRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ListenRequest, len(m.listens))
	copy(out, m.listens)
	return out
}

// Push writes a text frame to the most recent connection.
func (m *MockPubSubServer) Push(t *testing.T, payload string) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.conns) == 0 {
		t.Fatalf("no pubsub connection to push to")
	}
	conn := m.conns[len(m.conns)-1]
	if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("push frame: %v", err)
	}
}

// CloseAll drops every accepted connection, simulating a transport failure.
func (m *MockPubSubServer) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		_ = c.Close()
	}
	m.conns = nil
}
