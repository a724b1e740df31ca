package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	loginRatePerSecond = 0.2
	loginBurst         = 5
)

// LoginLimiter throttles credential attempts per client IP. It fails open:
// when redis is unavailable the attempt proceeds and the failure is logged.
type LoginLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
}

func NewLoginLimiter(client *redis.Client, logger *zap.Logger) *LoginLimiter {
	return &LoginLimiter{
		bucket: NewTokenBucket(client),
		log:    logger.Named("ratelimit.login"),
	}
}

func (l *LoginLimiter) Allow(ctx context.Context, clientIP string) bool {
	if l == nil || l.bucket == nil || clientIP == "" {
		return true
	}

	result, err := l.bucket.Allow(ctx, "ratelimit:login:"+clientIP, loginRatePerSecond, loginBurst)
	if err != nil {
		l.log.Warn("login rate limit check failed", zap.Error(err))
		return true
	}
	return result.Allowed
}
