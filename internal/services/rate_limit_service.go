package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/otpgate/otpgate/internal/config"
	"github.com/otpgate/otpgate/internal/models"
)

// RateLimiter enforces the request windows that gate account creation
// and OTP traffic.
type RateLimiter interface {
	AllowRegistration(ctx context.Context, ip string) error
	AllowOTPGeneration(ctx context.Context, email, ip string) error
	AllowOTPVerification(ctx context.Context, email string) error
}

// RedisRateLimiter implements fixed-window rate limiting on Redis.
// Each window is a counter keyed by subject; INCR is atomic so
// concurrent requests across instances share one count.
type RedisRateLimiter struct {
	client *redis.Client
	config config.RateLimitConfig
	logger *slog.Logger
}

func NewRedisRateLimiter(client *redis.Client, cfg config.RateLimitConfig, logger *slog.Logger) *RedisRateLimiter {
	return &RedisRateLimiter{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// AllowRegistration gates account creation per source IP.
func (l *RedisRateLimiter) AllowRegistration(ctx context.Context, ip string) error {
	return l.enforceFixedWindow(ctx, "rl:reg:"+ip, l.config.RegistrationLimit, l.config.RegistrationWindow)
}

// AllowOTPGeneration gates challenge issuance per email, falling back to
// the source IP when the email is unknown.
func (l *RedisRateLimiter) AllowOTPGeneration(ctx context.Context, email, ip string) error {
	subject := email
	if subject == "" {
		subject = ip
	}
	return l.enforceFixedWindow(ctx, "rl:gen:"+subject, l.config.GenerationLimit, l.config.GenerationWindow)
}

// AllowOTPVerification gates verification attempts per email.
func (l *RedisRateLimiter) AllowOTPVerification(ctx context.Context, email string) error {
	return l.enforceFixedWindow(ctx, "rl:ver:"+email, l.config.VerificationLimit, l.config.VerificationWindow)
}

// enforceFixedWindow counts a hit against key and rejects once the count
// exceeds limit. The first hit arms the window expiry. Redis failures
// fail open: availability beats strictness for this layer, the
// per-account attempt counter still fails closed.
func (l *RedisRateLimiter) enforceFixedWindow(ctx context.Context, key string, limit int, window time.Duration) error {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn("rate limit check failed, allowing request",
			slog.String("key", key),
			slog.Any("error", err))
		return nil
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			l.logger.Warn("failed to arm rate limit window",
				slog.String("key", key),
				slog.Any("error", err))
			return nil
		}
	}

	if count > int64(limit) {
		retryAfter := window
		if ttl, err := l.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
			retryAfter = ttl
		}
		l.logger.Warn("rate limit exceeded",
			slog.String("key", key),
			slog.Int64("count", count),
			slog.Duration("retry_after", retryAfter))
		return &models.RateLimitedError{RetryAfter: retryAfter}
	}

	return nil
}
