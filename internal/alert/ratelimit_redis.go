package alert

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisLimiterTimeout = 250 * time.Millisecond

// RedisLimiter shares the alert counters across daemon instances. Each
// key holds a hash of {count, last}; the decision function is the same
// one the memory backend uses. The check-then-set is not atomic across
// instances, matching the reference's single-writer assumption; the
// cap can undercount briefly under concurrent bursts.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisLimiter connects to Redis and verifies the connection before
// returning the backend.
func NewRedisLimiter(addr, password string, db int) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisLimiter{
		client: client,
		prefix: "vitalsd:ratelimit:",
		now:    time.Now,
	}, nil
}

// Allow applies the shared decision function against the stored hash.
// Redis errors fail open: a broken limiter must not block alerting.
func (l *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	ctx, cancel := context.WithTimeout(ctx, redisLimiterTimeout)
	defer cancel()

	now := l.now()
	redisKey := l.prefix + key

	fields, err := l.client.HGetAll(ctx, redisKey).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("[ratelimit] redis read failed, allowing")
		return Decision{Allowed: true}
	}

	var e limiterEntry
	if v, ok := fields["count"]; ok {
		e.count, _ = strconv.Atoi(v)
	}
	if v, ok := fields["last"]; ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
			e.last = time.UnixMilli(ms)
		}
	}

	d, count := decide(e.count, e.last, now)
	if !d.Allowed {
		return d
	}

	if err := l.client.HSet(ctx, redisKey,
		"count", count+1,
		"last", now.UnixMilli(),
	).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("[ratelimit] redis write failed")
		return d
	}
	// Expiry a little past the reset window; expired keys read as fresh.
	if err := l.client.Expire(ctx, redisKey, counterResetAfter+10*time.Minute).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("[ratelimit] redis expire failed")
	}
	return d
}

// Close releases the Redis connection.
func (l *RedisLimiter) Close() error { return l.client.Close() }
