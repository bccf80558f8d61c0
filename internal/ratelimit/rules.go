package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/workdesk-hq/platform/internal/settings"
)

// Scope names a family of limited tenant actions.
type Scope string

// ScopeCoupon limits coupon apply attempts.
const ScopeCoupon Scope = "coupon"

// Rule bounds the hits a tenant may make per window. A non-positive Limit disables it.
type Rule struct {
	Limit  int
	Window time.Duration
}

type ruleKeys struct {
	limitKey      string
	windowKey     string
	limit         int
	windowSeconds int
}

var scopeRules = map[Scope]ruleKeys{
	ScopeCoupon: {
		limitKey:      settings.CouponRateLimitKey,
		windowKey:     settings.CouponRateWindowSecondsKey,
		limit:         settings.DefaultCouponRateLimit,
		windowSeconds: settings.DefaultCouponRateWindowSeconds,
	},
}

// RuleFor reads the current rule for scope. Unknown scopes are unlimited.
func RuleFor(ctx context.Context, provider settings.Provider, scope Scope) Rule {
	keys, ok := scopeRules[scope]
	if !ok {
		return Rule{}
	}
	seconds := settings.Int(ctx, provider, keys.windowKey, keys.windowSeconds)
	if seconds <= 0 {
		seconds = keys.windowSeconds
	}
	return Rule{
		Limit:  settings.Int(ctx, provider, keys.limitKey, keys.limit),
		Window: time.Duration(seconds) * time.Second,
	}
}

// redisTarget is the Redis connection the settings ask for.
type redisTarget struct {
	addr     string
	password string
	prefix   string
	db       int
}

func redisTargetFrom(ctx context.Context, provider settings.Provider) (redisTarget, bool) {
	if !settings.Bool(ctx, provider, settings.RateLimitRedisEnabledKey, false) {
		return redisTarget{}, false
	}
	target := redisTarget{
		addr:     strings.TrimSpace(settings.String(ctx, provider, settings.RateLimitRedisAddrKey, "")),
		password: strings.TrimSpace(settings.String(ctx, provider, settings.RateLimitRedisPasswordKey, "")),
		prefix:   strings.TrimSpace(settings.String(ctx, provider, settings.RateLimitRedisPrefixKey, "")),
		db:       settings.Int(ctx, provider, settings.RateLimitRedisDBKey, 0),
	}
	if target.prefix == "" {
		target.prefix = settings.DefaultRateLimitRedisPrefix
	}
	return target, true
}
