package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long a match response stays reusable.
const DefaultTTL = 5 * time.Minute

// Cache stores serialized match responses by key. Implementations expire
// entries after their TTL and are safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
	Len(ctx context.Context) (int, error)
}
