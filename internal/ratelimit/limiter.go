// Package ratelimit limits tenant actions per scope. Counts live in Redis when the settings enable
// it and in process memory otherwise or while Redis is unreachable.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/workdesk-hq/platform/internal/settings"
)

const (
	redisRetryAfter  = 30 * time.Second
	redisPingTimeout = 2 * time.Second
)

// Decision is the outcome of one attempt.
type Decision struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithRedisDialer replaces redis.NewClient.
func WithRedisDialer(dial func(*redis.Options) *redis.Client) Option {
	return func(l *Limiter) {
		if dial != nil {
			l.dial = dial
		}
	}
}

// Limiter enforces per-tenant rules, reading them from settings on every attempt.
type Limiter struct {
	settings settings.Provider
	now      func() time.Time
	dial     func(*redis.Options) *redis.Client
	memory   *memoryCounter

	mu           sync.Mutex
	remote       *redisCounter
	target       redisTarget
	offlineUntil time.Time
}

// New constructs a Limiter over provider.
func New(provider settings.Provider, opts ...Option) *Limiter {
	l := &Limiter{
		settings: provider,
		now:      time.Now,
		dial:     redis.NewClient,
		memory:   newMemoryCounter(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records an attempt by tenantID in scope and reports whether it is within the rule.
func (l *Limiter) Allow(ctx context.Context, scope Scope, tenantID uint64) Decision {
	if l == nil || tenantID == 0 {
		return Decision{Allowed: true}
	}
	rule := RuleFor(ctx, l.settings, scope)
	if rule.Limit <= 0 {
		return Decision{Allowed: true}
	}
	now := l.now()
	hits, resetAt := l.hit(ctx, fmt.Sprintf("%s:t:%d", scope, tenantID), rule.Window, now)
	if hits > rule.Limit {
		return Decision{Allowed: false, RetryAt: resetAt}
	}
	return Decision{Allowed: true, Remaining: rule.Limit - hits, RetryAt: resetAt}
}

func (l *Limiter) hit(ctx context.Context, key string, window time.Duration, now time.Time) (int, time.Time) {
	if remote := l.redis(ctx, now); remote != nil {
		hits, resetAt, errHit := remote.Hit(ctx, key, window, now)
		if errHit == nil {
			return hits, resetAt
		}
		l.goOffline(errHit, now)
	}
	return l.memory.Hit(key, window, now)
}

// redis returns the shared counter, dialing when the settings changed. Nil means count in memory.
func (l *Limiter) redis(ctx context.Context, now time.Time) *redisCounter {
	target, enabled := redisTargetFrom(ctx, l.settings)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !enabled {
		l.closeRemote()
		return nil
	}
	if now.Before(l.offlineUntil) {
		return nil
	}
	if l.remote != nil && l.target == target {
		return l.remote
	}
	l.closeRemote()
	if target.addr == "" {
		l.offlineUntil = now.Add(redisRetryAfter)
		log.Warn("ratelimit: redis enabled without an address, counting in memory")
		return nil
	}

	client := l.dial(&redis.Options{Addr: target.addr, Password: target.password, DB: target.db})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		l.offlineUntil = now.Add(redisRetryAfter)
		log.WithError(errPing).WithField("addr", target.addr).Warn("ratelimit: redis unreachable, counting in memory")
		return nil
	}
	l.remote = &redisCounter{client: client, prefix: target.prefix}
	l.target = target
	l.offlineUntil = time.Time{}
	return l.remote
}

func (l *Limiter) goOffline(err error, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeRemote()
	l.offlineUntil = now.Add(redisRetryAfter)
	log.WithError(err).Warn("ratelimit: redis failed, counting in memory")
}

func (l *Limiter) closeRemote() {
	if l.remote == nil {
		return
	}
	_ = l.remote.client.Close()
	l.remote = nil
	l.target = redisTarget{}
}

func (l *Limiter) redisOffline(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return now.Before(l.offlineUntil)
}
