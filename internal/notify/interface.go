package notify

import "context"

// Notifier delivers a plain-text message.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
