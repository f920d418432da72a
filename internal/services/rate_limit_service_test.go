package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otpgate/otpgate/internal/config"
	"github.com/otpgate/otpgate/internal/models"
)

func newTestLimiter(t *testing.T) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := config.RateLimitConfig{
		RegistrationLimit:  3,
		RegistrationWindow: time.Hour,
		GenerationLimit:    2,
		GenerationWindow:   time.Minute,
		VerificationLimit:  3,
		VerificationWindow: 5 * time.Minute,
	}
	return NewRedisRateLimiter(client, cfg, slog.Default()), mr
}

func TestRateLimiter_Registration_AllowsWithinWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.NoError(t, limiter.AllowRegistration(ctx, "203.0.113.1"))
	}
}

func TestRateLimiter_Registration_RejectsOverLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.AllowRegistration(ctx, "203.0.113.1"))
	}

	err := limiter.AllowRegistration(ctx, "203.0.113.1")
	assert.ErrorIs(t, err, models.ErrRateLimited)

	var rateErr *models.RateLimitedError
	require.ErrorAs(t, err, &rateErr)
	assert.Greater(t, rateErr.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rateErr.RetryAfter, time.Hour)
}

func TestRateLimiter_Registration_IndependentPerIP(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.AllowRegistration(ctx, "203.0.113.1"))
	}

	assert.ErrorIs(t, limiter.AllowRegistration(ctx, "203.0.113.1"), models.ErrRateLimited)
	assert.NoError(t, limiter.AllowRegistration(ctx, "203.0.113.2"))
}

func TestRateLimiter_Generation_FallsBackToIP(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	require.NoError(t, limiter.AllowOTPGeneration(ctx, "", "203.0.113.1"))
	require.NoError(t, limiter.AllowOTPGeneration(ctx, "", "203.0.113.1"))
	assert.ErrorIs(t, limiter.AllowOTPGeneration(ctx, "", "203.0.113.1"), models.ErrRateLimited)

	// An email subject counts in its own window.
	assert.NoError(t, limiter.AllowOTPGeneration(ctx, "user@example.com", "203.0.113.1"))
}

func TestRateLimiter_WindowsAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	email := "user@example.com"
	require.NoError(t, limiter.AllowOTPGeneration(ctx, email, ""))
	require.NoError(t, limiter.AllowOTPGeneration(ctx, email, ""))
	require.ErrorIs(t, limiter.AllowOTPGeneration(ctx, email, ""), models.ErrRateLimited)

	// Exhausting generation must not consume the verification window.
	assert.NoError(t, limiter.AllowOTPVerification(ctx, email))
}

func TestRateLimiter_WindowExpiryResetsCount(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	email := "user@example.com"
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.AllowOTPVerification(ctx, email))
	}
	require.ErrorIs(t, limiter.AllowOTPVerification(ctx, email), models.ErrRateLimited)

	mr.FastForward(5*time.Minute + time.Second)

	assert.NoError(t, limiter.AllowOTPVerification(ctx, email))
}

func TestRateLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	mr.Close()

	assert.NoError(t, limiter.AllowRegistration(ctx, "203.0.113.1"))
	assert.NoError(t, limiter.AllowOTPVerification(ctx, "user@example.com"))
}
