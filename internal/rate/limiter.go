// Package rate limits login attempts per client key within a fixed window.
package rate

import (
	"context"
	"time"
)

// Limiter reports whether the caller identified by key may proceed. When the
// limit is hit it also reports how long until the window resets.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
