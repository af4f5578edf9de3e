// Package chat wraps the Twitch IRC connection behind the small surface the
// rest of the bot needs: channel membership (Join/Part), the three outbound
// send variants consumed by the queue, and a single inbound message hook that
// hands lines to the command router.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// chat:read/chat:edit scopes.
package chat
