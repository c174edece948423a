package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript trims entries older than the window, then admits the
// attempt only when the remaining count is below the limit. Rejected attempts
// leave the set untouched.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count >= limit then
	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry = window
	if oldest[2] then
		retry = tonumber(oldest[2]) + window - now
	end
	return {0, count, retry}
end

redis.call('ZADD', key, now, ARGV[4])
redis.call('PEXPIRE', key, window)
return {1, count + 1, 0}
`)

// RateDecision is the outcome of one limiter check
type RateDecision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// SlidingWindowLimiter bounds attempts per key within a rolling window.
// State lives in Redis so every running instance shares it.
type SlidingWindowLimiter struct {
	client redis.Scripter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a limiter. A nil client falls back to the package client.
func NewSlidingWindowLimiter(c redis.Scripter, prefix string, limit int, window time.Duration) *SlidingWindowLimiter {
	if c == nil {
		c = client
	}
	return &SlidingWindowLimiter{
		client: c,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// WithClock overrides the time source (tests)
func (l *SlidingWindowLimiter) WithClock(now func() time.Time) *SlidingWindowLimiter {
	l.now = now
	return l
}

// Allow records an attempt for key if it fits in the window
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (RateDecision, error) {
	if l.limit <= 0 {
		return RateDecision{Allowed: true}, nil
	}

	nowMs := l.now().UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()
	res, err := slidingWindowScript.Run(ctx, l.client,
		[]string{l.prefix + key},
		nowMs, l.window.Milliseconds(), l.limit, member,
	).Slice()
	if err != nil {
		return RateDecision{}, fmt.Errorf("rate limiter: %w", err)
	}
	if len(res) != 3 {
		return RateDecision{}, errors.New("rate limiter: unexpected script reply")
	}

	allowed, _ := res[0].(int64)
	count, _ := res[1].(int64)
	retry, _ := res[2].(int64)
	return RateDecision{
		Allowed:    allowed == 1,
		Count:      int(count),
		RetryAfter: time.Duration(retry) * time.Millisecond,
	}, nil
}
