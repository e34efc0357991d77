package domain

import "context"

// EventPublisher mirrors booking lifecycle events onto an external bus for
// delivery workers (SMS, email). Publish failures are logged by callers and
// never propagated into the producing transaction.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
