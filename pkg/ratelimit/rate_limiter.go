package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookingtms/internal/shared/config"
	"bookingtms/internal/shared/constants"
	"bookingtms/pkg/logger"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type RateLimitType string

const (
	RateLimitTypeDefault         RateLimitType = "default"
	RateLimitTypePublic          RateLimitType = "public"
	RateLimitTypeBooking         RateLimitType = "booking"
	RateLimitTypeBookingCritical RateLimitType = "booking_critical"
	RateLimitTypeAdmin           RateLimitType = "admin"
	RateLimitTypeHealth          RateLimitType = "health"
)

// Result represents rate limit check result
type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// RetryAfterSeconds is the wait until the window resets, at least one second
func (r *Result) RetryAfterSeconds(now time.Time) int64 {
	wait := r.ResetTime - now.Unix()
	if wait < 1 {
		return 1
	}
	return wait
}

// Sliding window over a sorted set. Returns {allowed, count}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

local current = redis.call('ZCARD', key)
if current >= limit then
	redis.call('PEXPIRE', key, window_ms)
	return {0, current}
end

redis.call('ZADD', key, now, member)
redis.call('PEXPIRE', key, window_ms)
return {1, current + 1}
`)

// RateLimiter limits requests per client and route class. Counters live in Redis;
// when Redis fails the limiter falls back to per-process token buckets.
type RateLimiter struct {
	client *redis.Client
	config *config.RateLimitConfig
	now    func() time.Time

	mu       sync.Mutex
	local    map[string]*rate.Limiter
	sequence uint64
}

func NewRateLimiter(client *redis.Client, cfg *config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: cfg,
		now:    time.Now,
		local:  make(map[string]*rate.Limiter),
	}
}

// IsAllowed checks if request is allowed. Counters are kept per client IP and,
// when scope is set, per scope too. It never fails: a Redis error degrades to
// the in-process limiter.
func (r *RateLimiter) IsAllowed(ctx context.Context, clientIP, scope string, limitType RateLimitType) *Result {
	limit := r.getLimit(limitType)
	now := r.now()

	if !r.config.Enabled || r.isWhitelisted(clientIP) || limit <= 0 {
		return &Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit,
			ResetTime: now.Add(r.config.WindowDuration).Unix(),
		}
	}

	identifier := clientIP
	if scope != "" {
		identifier += ":" + scope
	}
	key := constants.BuildRateLimitKey(string(limitType), identifier)
	if r.client != nil {
		result, err := r.checkLimit(ctx, key, limit, now)
		if err == nil {
			return result
		}
		logger.GetDefault().WithError(err).Warn("rate limit store unavailable, using local limiter", "type", string(limitType))
	}
	return r.checkLocal(key, limit, now)
}

// checkLimit performs the sliding window check in Redis
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, now time.Time) (*Result, error) {
	windowStart := now.Add(-r.config.WindowDuration)

	r.mu.Lock()
	r.sequence++
	member := fmt.Sprintf("%d-%d", now.UnixNano(), r.sequence)
	r.mu.Unlock()

	values, err := slidingWindowScript.Run(ctx, r.client, []string{key},
		windowStart.UnixMilli(),
		now.UnixMilli(),
		limit,
		r.config.WindowDuration.Milliseconds(),
		member,
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	remaining := limit - int(values[1])
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   values[0] == 1,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(r.config.WindowDuration).Unix(),
	}, nil
}

// checkLocal applies a token bucket refilled at limit per window
func (r *RateLimiter) checkLocal(key string, limit int, now time.Time) *Result {
	r.mu.Lock()
	limiter, ok := r.local[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(r.config.WindowDuration/time.Duration(limit)), limit)
		r.local[key] = limiter
	}
	r.mu.Unlock()

	allowed := limiter.AllowN(now, 1)
	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &Result{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: remaining,
		ResetTime: now.Add(r.config.WindowDuration).Unix(),
	}
}

func (r *RateLimiter) getLimit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypePublic:
		return r.config.PublicRequests
	case RateLimitTypeBooking:
		return r.config.BookingRequests
	case RateLimitTypeBookingCritical:
		return r.config.BookingCriticalRequests
	case RateLimitTypeAdmin:
		return r.config.AdminRequests
	case RateLimitTypeHealth:
		return r.config.HealthRequests
	default:
		return r.config.DefaultRequests
	}
}

func (r *RateLimiter) isWhitelisted(ip string) bool {
	for _, whitelistedIP := range r.config.WhitelistedIPs {
		if ip == whitelistedIP {
			return true
		}
	}
	return false
}
