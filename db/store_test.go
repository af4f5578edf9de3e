package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ilya-zlobintsev/foobot/db"
	"github.com/ilya-zlobintsev/foobot/testutil"
)

func TestCommandCRUD(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	if err := store.AddCommand(ctx, "greet", "Hello {weather $0}!", "somechannel", "all"); err != nil {
		t.Fatalf("AddCommand: %v", err)
	}

	cmd, err := store.GetCommand(ctx, "greet", "somechannel")
	if err != nil {
		t.Fatalf("GetCommand: %v", err)
	}
	if cmd.Body != "Hello {weather $0}!" || cmd.Permission != "all" {
		t.Errorf("unexpected command: %+v", cmd)
	}

	// Duplicate insert must report ErrAlreadyExists and leave the body unchanged.
	err = store.AddCommand(ctx, "greet", "something else", "somechannel", "mods")
	if !errors.Is(err, db.ErrAlreadyExists) {
		t.Fatalf("duplicate AddCommand error = %v, want ErrAlreadyExists", err)
	}
	cmd, err = store.GetCommand(ctx, "greet", "somechannel")
	if err != nil {
		t.Fatalf("GetCommand after duplicate: %v", err)
	}
	if cmd.Body != "Hello {weather $0}!" {
		t.Errorf("body changed by rejected insert: %q", cmd.Body)
	}

	// Same trigger in another channel is a different command.
	if err := store.AddCommand(ctx, "greet", "hi", "otherchannel", "all"); err != nil {
		t.Fatalf("AddCommand other channel: %v", err)
	}

	names, err := store.ListCommands(ctx, "somechannel")
	if err != nil {
		t.Fatalf("ListCommands: %v", err)
	}
	if len(names) != 1 || names[0] != "greet" {
		t.Errorf("ListCommands = %v", names)
	}

	if err := store.DelCommand(ctx, "greet", "somechannel"); err != nil {
		t.Fatalf("DelCommand: %v", err)
	}
	if err := store.DelCommand(ctx, "greet", "somechannel"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("second DelCommand error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetCommand(ctx, "greet", "somechannel"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("GetCommand after delete error = %v, want ErrNotFound", err)
	}
}

func TestPrefix(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	if _, err := store.GetPrefix(ctx, "nochannel"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("GetPrefix error = %v, want ErrNotFound", err)
	}
	if err := store.SetPrefix(ctx, "somechannel", "%"); err != nil {
		t.Fatalf("SetPrefix: %v", err)
	}
	prefix, err := store.GetPrefix(ctx, "somechannel")
	if err != nil {
		t.Fatalf("GetPrefix: %v", err)
	}
	if prefix != "%" {
		t.Errorf("prefix = %q, want %%", prefix)
	}
}

func TestRedeemTriggers(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	if err := store.AddRedeemTrigger(ctx, "Hydrate", "{ping}", "somechannel"); err != nil {
		t.Fatalf("AddRedeemTrigger: %v", err)
	}
	body, err := store.GetRedeemTrigger(ctx, "Hydrate", "somechannel")
	if err != nil {
		t.Fatalf("GetRedeemTrigger: %v", err)
	}
	if body != "{ping}" {
		t.Errorf("body = %q", body)
	}
	if _, err := store.GetRedeemTrigger(ctx, "Hydrate", "otherchannel"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("cross-channel lookup error = %v, want ErrNotFound", err)
	}
	if err := store.DelRedeemTrigger(ctx, "Hydrate", "somechannel"); err != nil {
		t.Fatalf("DelRedeemTrigger: %v", err)
	}
	if err := store.DelRedeemTrigger(ctx, "Hydrate", "somechannel"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("second DelRedeemTrigger error = %v, want ErrNotFound", err)
	}
}

func TestGuardFlag(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	guarded, err := store.IsGuarded(ctx, "victim", "somechannel")
	if err != nil {
		t.Fatalf("IsGuarded: %v", err)
	}
	if guarded {
		t.Errorf("unknown user reported as guarded")
	}

	if err := store.SetGuarded(ctx, "victim", "somechannel", true); err != nil {
		t.Fatalf("SetGuarded: %v", err)
	}
	guarded, err = store.IsGuarded(ctx, "victim", "somechannel")
	if err != nil {
		t.Fatalf("IsGuarded: %v", err)
	}
	if !guarded {
		t.Errorf("expected guarded after SetGuarded(true)")
	}

	if err := store.SetGuarded(ctx, "victim", "somechannel", false); err != nil {
		t.Fatalf("SetGuarded(false): %v", err)
	}
	guarded, _ = store.IsGuarded(ctx, "victim", "somechannel")
	if guarded {
		t.Errorf("expected unguarded after SetGuarded(false)")
	}
}

func TestSpotifyCredentials(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	if _, err := store.GetSpotifyCredential(ctx, "somechannel"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("GetSpotifyCredential error = %v, want ErrNotFound", err)
	}
	if err := store.UpdateSpotifyToken(ctx, "somechannel", "at", time.Now()); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("UpdateSpotifyToken without row error = %v, want ErrNotFound", err)
	}

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	cred := &db.SpotifyCredential{
		Channel:      "somechannel",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiry,
	}
	if err := store.UpsertSpotifyCredential(ctx, cred); err != nil {
		t.Fatalf("UpsertSpotifyCredential: %v", err)
	}

	got, err := store.GetSpotifyCredential(ctx, "somechannel")
	if err != nil {
		t.Fatalf("GetSpotifyCredential: %v", err)
	}
	if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" {
		t.Errorf("unexpected credential: %+v", got)
	}

	newExpiry := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	if err := store.UpdateSpotifyToken(ctx, "somechannel", "access-2", newExpiry); err != nil {
		t.Fatalf("UpdateSpotifyToken: %v", err)
	}
	got, _ = store.GetSpotifyCredential(ctx, "somechannel")
	if got.AccessToken != "access-2" {
		t.Errorf("access token not updated: %q", got.AccessToken)
	}
	if got.RefreshToken != "refresh-1" {
		t.Errorf("refresh token must survive an access refresh: %q", got.RefreshToken)
	}

	tokens, err := store.ListSpotifyRefreshTokens(ctx)
	if err != nil {
		t.Fatalf("ListSpotifyRefreshTokens: %v", err)
	}
	if tokens["somechannel"] != "refresh-1" {
		t.Errorf("ListSpotifyRefreshTokens = %v", tokens)
	}
}

func TestSettings(t *testing.T) {
	database := testutil.SetupTestDB(t)
	store := db.NewStore(database)
	ctx := context.Background()

	if _, err := store.GetSetting(ctx, "openweathermap"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("GetSetting error = %v, want ErrNotFound", err)
	}
	if err := store.SetSetting(ctx, "openweathermap", "key123"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, err := store.GetSetting(ctx, "openweathermap")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if v != "key123" {
		t.Errorf("value = %q", v)
	}
}
