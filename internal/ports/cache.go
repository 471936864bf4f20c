package ports

import (
	"context"
	"time"
)

// Cache is a generic key-value capability with expiry. The OAuth connector
// uses it to park pending connect state between redirect and callback.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
