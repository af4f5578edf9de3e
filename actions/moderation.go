package actions

import (
	"context"
	"fmt"
	"time"

	"github.com/ilya-zlobintsev/foobot/queue"
)

// GuardStore holds the timed protection flag. The flag is read-modify-write
// against the external store, not an in-process mutex: two concurrent hitman
// runs for the same target can both observe it unset and both fire. That race
// matches the store's write semantics and is accepted.
type GuardStore interface {
	IsGuarded(ctx context.Context, user, channel string) (bool, error)
	SetGuarded(ctx context.Context, user, channel string, protected bool) error
}

// Producer enqueues outbound messages emitted mid-action.
type Producer interface {
	Enqueue(ctx context.Context, msg queue.Message) error
}

// DefaultHitmanDelay is the grace period before the timeout fires.
const DefaultHitmanDelay = 15 * time.Second

// Hitman returns the handler that announces, waits out the grace period, and
// times the target out unless a bodyguard flagged them meanwhile. The run is
// not cancelled by chat disconnects; its eventual reply is simply enqueued.
func Hitman(store GuardStore, out Producer, delay time.Duration) Handler {
	if delay <= 0 {
		delay = DefaultHitmanDelay
	}
	return func(ctx context.Context, args []string, channel string) (string, error) {
		target, err := firstArg(args)
		if err != nil {
			return "", err
		}

		msg := queue.Say(channel, fmt.Sprintf("Timing out %s in %d seconds...", target, int(delay.Seconds())))
		if err := out.Enqueue(ctx, msg); err != nil {
			return "", err
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}

		guarded, err := store.IsGuarded(ctx, target, channel)
		if err != nil {
			return "", err
		}
		if guarded {
			// consume the protection; the hit is called off silently
			if err := store.SetGuarded(ctx, target, channel, false); err != nil {
				return "", err
			}
			return "", nil
		}

		if err := out.Enqueue(ctx, queue.Raw(channel, fmt.Sprintf("/timeout %s 600", target))); err != nil {
			return "", err
		}
		if err := store.SetGuarded(ctx, target, channel, false); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s timed out for 10 minutes!", target), nil
	}
}

// Bodyguard returns the handler setting the protection flag for a target.
func Bodyguard(store GuardStore, out Producer) Handler {
	return func(ctx context.Context, args []string, channel string) (string, error) {
		target, err := firstArg(args)
		if err != nil {
			return "", err
		}
		if err := store.SetGuarded(ctx, target, channel, true); err != nil {
			return "", err
		}
		if err := out.Enqueue(ctx, queue.Say(channel, fmt.Sprintf("%s has been guarded!", target))); err != nil {
			return "", err
		}
		return "", nil
	}
}
