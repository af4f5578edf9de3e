package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type commandEntry struct {
	Trigger    string `json:"trigger"`
	Body       string `json:"body"`
	Permission string `json:"permission"`
}

type commandsResponse struct {
	Channel  string         `json:"channel"`
	Commands []commandEntry `json:"commands"`
}

// HandleCommands serves the read-only command listing at /commands/{channel}.
func (h *Handlers) HandleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	channel := strings.Trim(strings.TrimPrefix(r.URL.Path, "/commands/"), "/")
	if channel == "" || strings.Contains(channel, "/") {
		http.Error(w, "channel not specified", http.StatusBadRequest)
		return
	}
	channel = strings.ToLower(channel)

	stored, err := h.store.ListChannelCommands(r.Context(), channel)
	if err != nil {
		slog.Error("failed to list commands", slog.String("channel", channel), slog.Any("err", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := commandsResponse{Channel: channel, Commands: make([]commandEntry, 0, len(stored))}
	for _, cmd := range stored {
		resp.Commands = append(resp.Commands, commandEntry{
			Trigger:    cmd.Trigger,
			Body:       cmd.Body,
			Permission: cmd.Permission,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Warn("failed to encode JSON response", slog.Any("err", err))
	}
}
