package ports

import "context"

// EventPublisher emits audit events for gating decisions. Publishing is
// best-effort; a failed publish never fails the request that triggered it.
type EventPublisher interface {
	PublishAccessGranted(ctx context.Context, address string, balance string) error
	PublishAccessDenied(ctx context.Context, address string, balance string) error
	PublishSessionRefreshed(ctx context.Context, address string) error
}
