package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("SEND_INTERVAL", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DBDsn == "" {
		t.Errorf("expected default DSN, got empty")
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.ListenAddr)
	}
	if cfg.SendInterval != time.Second {
		t.Errorf("SendInterval = %v, want 1s", cfg.SendInterval)
	}
}

func TestLoadSendInterval(t *testing.T) {
	t.Setenv("SEND_INTERVAL", "250ms")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SendInterval != 250*time.Millisecond {
		t.Errorf("SendInterval = %v, want 250ms", cfg.SendInterval)
	}

	t.Setenv("SEND_INTERVAL", "not-a-duration")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for invalid SEND_INTERVAL")
	}
}

func TestValidateChatReady(t *testing.T) {
	t.Setenv("TWITCH_BOT_USERNAME", "bot")
	t.Setenv("TWITCH_OAUTH_TOKEN", "oauth:token")
	cfg, _ := Load()
	if err := cfg.ValidateChatReady(); err != nil {
		t.Errorf("expected valid chat config, got %v", err)
	}
	if err := os.Unsetenv("TWITCH_BOT_USERNAME"); err != nil {
		t.Fatalf("failed to unset TWITCH_BOT_USERNAME: %v", err)
	}
	cfg, _ = Load()
	if err := cfg.ValidateChatReady(); err == nil {
		t.Errorf("expected error when missing twitch envs")
	}
}

func TestSuperUserLowercased(t *testing.T) {
	t.Setenv("SUPER_USER", "Some_Admin")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.SuperUser != "some_admin" {
		t.Errorf("SuperUser = %q, want lowercased", cfg.SuperUser)
	}
}
