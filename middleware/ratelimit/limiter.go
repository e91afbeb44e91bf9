// Package ratelimit throttles credential endpoints with a Redis sliding
// window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiting configuration.
type Config struct {
	// Limit is the maximum number of requests allowed in the window.
	Limit int
	// Window is the duration of the sliding window.
	Window time.Duration
	// KeyPrefix namespaces the limiter's Redis keys.
	KeyPrefix string
}

// Validate checks that the configuration can be used.
func (c Config) Validate() error {
	var errs []error
	if c.Limit <= 0 {
		errs = append(errs, fmt.Errorf("limit must be positive, got %d", c.Limit))
	}
	if c.Window < time.Millisecond {
		errs = append(errs, fmt.Errorf("window must be at least 1ms, got %s", c.Window))
	}
	return errors.Join(errs...)
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	// RetryAfter is only set when the request was denied.
	RetryAfter time.Duration
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// slidingWindowScript trims the window, counts what is left and records the
// request when there is room. Returns {allowed, remaining, retry_after_ms}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local counter_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < limit then
		local counter = redis.call('INCR', counter_key)
		redis.call('ZADD', key, now, now .. ':' .. counter)
		redis.call('PEXPIRE', key, window_ms)
		redis.call('PEXPIRE', counter_key, window_ms)
		return {1, limit - count - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry_after = 0
	if #oldest >= 2 then
		retry_after = oldest[2] + window_ms - now
	end
	return {0, 0, retry_after}
`)

// SlidingWindowLimiter keeps one sorted set of request timestamps per key.
type SlidingWindowLimiter struct {
	client redis.Scripter
	config Config
	now    func() time.Time
}

var _ Limiter = (*SlidingWindowLimiter)(nil)

// NewSlidingWindowLimiter creates a new sliding window rate limiter.
func NewSlidingWindowLimiter(client redis.Scripter, config Config) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		client: client,
		config: config,
		now:    time.Now,
	}
}

// Allow records a request for key if the window has room.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now()
	redisKey := l.config.KeyPrefix + key

	raw, err := slidingWindowScript.Run(ctx, l.client, []string{redisKey, redisKey + ":counter"},
		now.UnixMilli(),
		now.Add(-l.config.Window).UnixMilli(),
		l.config.Limit,
		l.config.Window.Milliseconds(),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run rate limit script: %w", err)
	}
	if len(raw) < 3 {
		return nil, fmt.Errorf("unexpected result length: %d", len(raw))
	}

	values := make([]int64, 3)
	for i := range values {
		v, ok := raw[i].(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected type for result %d: %T", i, raw[i])
		}
		values[i] = v
	}

	result := &Result{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
		ResetAt:   now.Add(l.config.Window),
	}
	if !result.Allowed && values[2] > 0 {
		result.RetryAfter = time.Duration(values[2]) * time.Millisecond
	}
	return result, nil
}
