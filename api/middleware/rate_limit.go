package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/angelmondragon/vendorflow-backend/api/responses"
	pkgerrors "github.com/angelmondragon/vendorflow-backend/pkg/errors"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/vendorflow-backend/pkg/redis"
)

type rateLimiterStore interface {
	FixedWindow(ctx context.Context, scope string, limit int64, window time.Duration) (pkgredis.Window, error)
}

// RateLimitPolicy throttles one surface per authenticated user.
type RateLimitPolicy struct {
	Name   string
	Limit  int64
	Window time.Duration
}

func (p RateLimitPolicy) enabled() bool {
	return p.Limit > 0 && p.Window > 0
}

// UserRateLimit enforces a fixed-window counter keyed by policy and user.
// Redis failures fail open and are logged.
func UserRateLimit(policy RateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := policy.Name + ":" + UserIDFromContext(ctx)

			win, err := store.FixedWindow(ctx, scope, policy.Limit, policy.Window)
			if err != nil {
				if logg != nil {
					logg.WarnErr(ctx, "rate limit check failed", err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !win.Allowed {
				retry := retryAfterSeconds(win.RetryAfter, policy.Window)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded").
					WithDetails(map[string]any{"policy": policy.Name, "limit": policy.Limit, "retryAfterSeconds": retry}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// retryAfterSeconds rounds up to whole seconds, never below one.
func retryAfterSeconds(d, fallback time.Duration) int {
	if d <= 0 {
		d = fallback
	}
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
