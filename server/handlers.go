package server

import (
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/ilya-zlobintsev/foobot/config"
	"github.com/ilya-zlobintsev/foobot/db"
)

// Maximum number of pending OAuth states kept in memory.
const maxOAuthStates = 10000

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	store   *db.Store
	cfg     *config.Config
	spotify *oauth2.Config

	stateMu    sync.RWMutex
	stateStore map[string]oauthState
}

// oauthState tracks one pending authorization flow. channel is set for
// Spotify flows, where the callback binds the credential to a chat channel.
type oauthState struct {
	expiry  time.Time
	channel string
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(store *db.Store, cfg *config.Config, spotify *oauth2.Config) *Handlers {
	return &Handlers{
		store:      store,
		cfg:        cfg,
		spotify:    spotify,
		stateStore: make(map[string]oauthState),
	}
}

// cleanExpiredStates removes expired OAuth states. Call with stateMu held.
func (h *Handlers) cleanExpiredStates() {
	now := time.Now()
	for state, st := range h.stateStore {
		if now.After(st.expiry) {
			delete(h.stateStore, state)
		}
	}
}

// addOAuthState records a pending flow, refusing new states past the cap so
// a flood of /start requests cannot exhaust memory.
func (h *Handlers) addOAuthState(state, channel string, expiry time.Time) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	if len(h.stateStore)%100 == 0 {
		h.cleanExpiredStates()
	}
	if len(h.stateStore) >= maxOAuthStates {
		return
	}
	h.stateStore[state] = oauthState{expiry: expiry, channel: channel}
}

// takeOAuthState consumes a pending state, returning false when it is
// unknown or expired.
func (h *Handlers) takeOAuthState(state string) (oauthState, bool) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	st, ok := h.stateStore[state]
	if !ok {
		return oauthState{}, false
	}
	delete(h.stateStore, state)
	if time.Now().After(st.expiry) {
		return oauthState{}, false
	}
	return st, true
}
