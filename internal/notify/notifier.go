package notify

import "context"

// Notifier delivers an operator-facing message to a channel-specific
// recipient identity (Telegram chat id, email address). Implementations
// report delivery failure through the error; callers log and move on,
// notifications are best effort.
type Notifier interface {
	Send(ctx context.Context, recipient, text string) error
}
