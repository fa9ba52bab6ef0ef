package ports

import (
	"context"
	"time"
)

// Publisher emits domain events. Implementations are best effort; callers
// never roll back on a publish error.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Cache remembers which order an idempotency key produced.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	GenerateKey(operation, key string) string
}
