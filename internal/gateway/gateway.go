// Package gateway defines the messaging contract consumed by the ledger
// core. The chat transport behind it parses commands, renders replies,
// and delivers moderator resolution signals; the core only sees handles.
package gateway

import "context"

// Handle identifies a delivered message so later replies and resolution
// signals can reference it.
type Handle string

// Outcome is a moderator's resolution signal on an approval prompt.
type Outcome string

const (
	OutcomeApprove Outcome = "approve"
	OutcomeDeny    Outcome = "deny"
)

// Gateway delivers outbound notifications and approval prompts.
type Gateway interface {
	// Send posts a notification to a channel.
	Send(ctx context.Context, channel, text string) (Handle, error)

	// RequestApproval posts a moderation prompt carrying the two
	// standard resolution affordances and returns its handle.
	RequestApproval(ctx context.Context, channel, text string) (Handle, error)

	// Reply responds to the message identified by origin.
	Reply(ctx context.Context, origin Handle, text string) error

	// DirectMessage notifies an external identity directly.
	DirectMessage(ctx context.Context, ownerID, text string) error
}
