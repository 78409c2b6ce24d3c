package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/smallbiznis/flashsale/internal/config"
)

const keyIssueUser = "ratelimit:issue:user:%s"

// IssueLimiter throttles claim attempts per user across every hot-path
// endpoint. A disabled limiter admits everything.
type IssueLimiter struct {
	enabled bool

	bucket    *TokenBucket
	userRate  float64
	userBurst int
}

func NewIssueLimiter(cfg config.Config, client *redis.Client) *IssueLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil
	}
	return &IssueLimiter{
		enabled:   true,
		bucket:    NewTokenBucket(client),
		userRate:  limitCfg.UserRate,
		userBurst: limitCfg.UserBurst,
	}
}

func (l *IssueLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowUser reports whether the user may attempt another claim right now.
func (l *IssueLimiter) AllowUser(ctx context.Context, userID string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyIssueUser, strings.TrimSpace(userID)), l.userRate, l.userBurst)
}
