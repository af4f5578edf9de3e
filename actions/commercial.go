package actions

import (
	"context"
	"fmt"
	"strconv"
)

// CommercialStarter is the Helix surface needed to run an ad break.
type CommercialStarter interface {
	GetUsersByLogin(ctx context.Context, logins []string) (map[string]string, error)
	StartCommercial(ctx context.Context, broadcasterID string, length int) error
}

// Commercial returns the handler starting an ad break on the current channel.
// The length argument is in seconds; Twitch accepts 30 to 180.
func Commercial(helix CommercialStarter) Handler {
	return func(ctx context.Context, args []string, channel string) (string, error) {
		raw, err := firstArg(args)
		if err != nil {
			return "", err
		}
		length, err := strconv.Atoi(raw)
		if err != nil {
			return "", fmt.Errorf("invalid commercial length %q", raw)
		}

		users, err := helix.GetUsersByLogin(ctx, []string{channel})
		if err != nil {
			return "", fmt.Errorf("resolving channel id: %w", err)
		}
		id, ok := users[channel]
		if !ok {
			return "", fmt.Errorf("channel %s not found", channel)
		}
		if err := helix.StartCommercial(ctx, id, length); err != nil {
			return "", fmt.Errorf("starting commercial: %w", err)
		}
		return "", nil
	}
}
