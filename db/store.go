package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when an insert violates a uniqueness constraint.
	ErrAlreadyExists = errors.New("already exists")
)

const pgUniqueViolation = "23505"

// StoredCommand is one custom command row.
type StoredCommand struct {
	Trigger    string
	Channel    string
	Body       string
	Permission string
}

// SpotifyCredential is the per-channel delegated Spotify credential. The
// refresh token is durable; the access token and expiry are a cache rebuilt
// by the refresh scheduler.
type SpotifyCredential struct {
	Channel      string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Store provides the bot's data access on top of *sql.DB.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// GetCommand looks up a custom command by (trigger, channel). Returns
// ErrNotFound when no such command is stored.
func (s *Store) GetCommand(ctx context.Context, trigger, channel string) (*StoredCommand, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT body, permissions FROM commands WHERE name=$1 AND channel=$2`, trigger, channel)
	cmd := &StoredCommand{Trigger: trigger, Channel: channel}
	if err := row.Scan(&cmd.Body, &cmd.Permission); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get command: %w", err)
	}
	return cmd, nil
}

// AddCommand inserts a custom command. Returns ErrAlreadyExists when the
// (trigger, channel) pair is taken; the stored body is left unchanged.
func (s *Store) AddCommand(ctx context.Context, trigger, body, channel, permission string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO commands (channel, name, body, permissions) VALUES ($1, $2, $3, $4)`,
		channel, trigger, body, permission)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("add command: %w", err)
	}
	return nil
}

// DelCommand removes a custom command. Returns ErrNotFound when nothing matched.
func (s *Store) DelCommand(ctx context.Context, trigger, channel string) error {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM commands WHERE channel=$1 AND name=$2`, channel, trigger)
	if err != nil {
		return fmt.Errorf("del command: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("del command: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListCommands returns the trigger names of all custom commands for a channel.
func (s *Store) ListCommands(ctx context.Context, channel string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT name FROM commands WHERE channel=$1 ORDER BY name`, channel)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list commands: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListChannelCommands returns every custom command stored for a channel,
// including bodies and permission levels, for the web surface.
func (s *Store) ListChannelCommands(ctx context.Context, channel string) ([]StoredCommand, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT name, channel, body, permissions FROM commands WHERE channel=$1 ORDER BY name`, channel)
	if err != nil {
		return nil, fmt.Errorf("list channel commands: %w", err)
	}
	defer rows.Close()
	var commands []StoredCommand
	for rows.Next() {
		var cmd StoredCommand
		if err := rows.Scan(&cmd.Trigger, &cmd.Channel, &cmd.Body, &cmd.Permission); err != nil {
			return nil, fmt.Errorf("list channel commands: %w", err)
		}
		commands = append(commands, cmd)
	}
	return commands, rows.Err()
}

// GetPrefix returns the channel's configured command prefix, or ErrNotFound.
func (s *Store) GetPrefix(ctx context.Context, channel string) (string, error) {
	var prefix string
	err := s.DB.QueryRowContext(ctx,
		`SELECT prefix FROM prefixes WHERE channel=$1`, channel).Scan(&prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get prefix: %w", err)
	}
	return prefix, nil
}

// SetPrefix upserts the channel's command prefix.
func (s *Store) SetPrefix(ctx context.Context, channel, prefix string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO prefixes (channel, prefix) VALUES ($1, $2)
		 ON CONFLICT (channel) DO UPDATE SET prefix=EXCLUDED.prefix`, channel, prefix)
	if err != nil {
		return fmt.Errorf("set prefix: %w", err)
	}
	return nil
}

// ListChannels returns the channels the bot joins at boot.
func (s *Store) ListChannels(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name FROM channels ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddChannel records a channel membership. Adding an existing channel is a no-op.
func (s *Store) AddChannel(ctx context.Context, channel string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO channels (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, channel)
	if err != nil {
		return fmt.Errorf("add channel: %w", err)
	}
	return nil
}

// DelChannel removes a channel membership.
func (s *Store) DelChannel(ctx context.Context, channel string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM channels WHERE name=$1`, channel)
	if err != nil {
		return fmt.Errorf("del channel: %w", err)
	}
	return nil
}

// GetRedeemTrigger returns the stored command body bound to a reward title,
// or ErrNotFound when the redeem has no trigger in this channel.
func (s *Store) GetRedeemTrigger(ctx context.Context, rewardTitle, channel string) (string, error) {
	var body string
	err := s.DB.QueryRowContext(ctx,
		`SELECT body FROM redeem_triggers WHERE name=$1 AND channel=$2`, rewardTitle, channel).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get redeem trigger: %w", err)
	}
	return body, nil
}

// AddRedeemTrigger binds a reward title to a command body.
func (s *Store) AddRedeemTrigger(ctx context.Context, rewardTitle, body, channel string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO redeem_triggers (channel, name, body) VALUES ($1, $2, $3)`,
		channel, rewardTitle, body)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("add redeem trigger: %w", err)
	}
	return nil
}

// DelRedeemTrigger removes a reward binding. Returns ErrNotFound when nothing matched.
func (s *Store) DelRedeemTrigger(ctx context.Context, rewardTitle, channel string) error {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM redeem_triggers WHERE channel=$1 AND name=$2`, channel, rewardTitle)
	if err != nil {
		return fmt.Errorf("del redeem trigger: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("del redeem trigger: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetGuarded writes the timed protection flag for a user. The flag is
// read-modify-write against the store rather than an in-process mutex; two
// concurrent hitman invocations for the same target can race (known limitation).
func (s *Store) SetGuarded(ctx context.Context, user, channel string, protected bool) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO guard_flags (channel, name, protected) VALUES ($1, $2, $3)
		 ON CONFLICT (channel, name) DO UPDATE SET protected=EXCLUDED.protected`,
		channel, user, protected)
	if err != nil {
		return fmt.Errorf("set guarded: %w", err)
	}
	return nil
}

// IsGuarded reports whether the user's protection flag is set. Users without a
// row are unguarded.
func (s *Store) IsGuarded(ctx context.Context, user, channel string) (bool, error) {
	var protected bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT protected FROM guard_flags WHERE channel=$1 AND name=$2`, channel, user).Scan(&protected)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is guarded: %w", err)
	}
	return protected, nil
}

// GetSpotifyCredential returns the delegated Spotify credential for a channel,
// or ErrNotFound when the channel isn't configured.
func (s *Store) GetSpotifyCredential(ctx context.Context, channel string) (*SpotifyCredential, error) {
	cred := &SpotifyCredential{Channel: channel}
	var expires sql.NullTime
	err := s.DB.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at FROM spotify_tokens WHERE channel=$1`, channel).
		Scan(&cred.AccessToken, &cred.RefreshToken, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get spotify credential: %w", err)
	}
	if expires.Valid {
		cred.ExpiresAt = expires.Time
	}
	return cred, nil
}

// UpsertSpotifyCredential stores a freshly issued credential (OAuth callback path).
func (s *Store) UpsertSpotifyCredential(ctx context.Context, cred *SpotifyCredential) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO spotify_tokens (channel, access_token, refresh_token, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (channel) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			updated_at=NOW()`,
		cred.Channel, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert spotify credential: %w", err)
	}
	return nil
}

// UpdateSpotifyToken persists a refreshed access token. The refresh token row
// must already exist; returns ErrNotFound otherwise.
func (s *Store) UpdateSpotifyToken(ctx context.Context, channel, accessToken string, expiresAt time.Time) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE spotify_tokens SET access_token=$1, expires_at=$2, updated_at=NOW() WHERE channel=$3`,
		accessToken, expiresAt, channel)
	if err != nil {
		return fmt.Errorf("update spotify token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update spotify token: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSpotifyRefreshTokens returns (channel, refresh token) pairs for every
// channel with a stored refresh credential. The refresh scheduler starts one
// loop per entry at boot.
func (s *Store) ListSpotifyRefreshTokens(ctx context.Context) (map[string]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT channel, refresh_token FROM spotify_tokens WHERE refresh_token <> ''`)
	if err != nil {
		return nil, fmt.Errorf("list spotify refresh tokens: %w", err)
	}
	defer rows.Close()
	tokens := make(map[string]string)
	for rows.Next() {
		var channel, refresh string
		if err := rows.Scan(&channel, &refresh); err != nil {
			return nil, fmt.Errorf("list spotify refresh tokens: %w", err)
		}
		tokens[channel] = refresh
	}
	return tokens, rows.Err()
}

// GetSetting returns a global setting value, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, option string) (string, error) {
	var value string
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE option=$1`, option).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting: %w", err)
	}
	return value, nil
}

// SetSetting upserts a global setting value.
func (s *Store) SetSetting(ctx context.Context, option, value string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO settings (option, value) VALUES ($1, $2)
		 ON CONFLICT (option) DO UPDATE SET value=EXCLUDED.value`, option, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}
