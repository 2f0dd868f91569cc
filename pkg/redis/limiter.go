package redis

import (
	"context"
	"fmt"
	"time"
)

// Window is the state of one fixed-window counter after a hit.
type Window struct {
	Allowed    bool
	Count      int64
	RetryAfter time.Duration
}

// FixedWindow counts a hit against scope. The first hit starts the window.
// Rejected hits report how long until the window resets; a counter found
// without a TTL (an earlier EXPIRE was lost) is given a fresh window so it
// cannot block the caller forever.
func (c *Client) FixedWindow(ctx context.Context, scope string, limit int64, window time.Duration) (Window, error) {
	if c.store == nil {
		return Window{}, errNotInitialized
	}
	key := c.RateLimitKey(scope)
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return Window{}, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := c.store.Expire(ctx, key, window).Err(); err != nil {
			return Window{Allowed: true, Count: count}, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	if count <= limit {
		return Window{Allowed: true, Count: count}, nil
	}

	ttl, err := c.store.TTL(ctx, key).Result()
	if err != nil {
		return Window{Count: count, RetryAfter: window}, nil
	}
	if ttl < 0 {
		_ = c.store.Expire(ctx, key, window).Err()
		ttl = window
	}
	return Window{Count: count, RetryAfter: ttl}, nil
}
