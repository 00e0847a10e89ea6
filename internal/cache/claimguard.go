package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// claimKeyPrefix is the Redis key prefix for in-flight claims.
	claimKeyPrefix = "memberhub:claim:"

	// claimTTL bounds how long a claim key may fence a code. A successful
	// claim leaves the key to expire; the code is spent by then anyway.
	claimTTL = 10 * time.Minute
)

// RedisClaimGuard serializes concurrent claims racing on the same
// activation code with a SET-NX fence. The order store itself is
// last-write-wins, so without this guard two simultaneous redemptions of
// one code could both go through; the guard closes that window whenever
// Redis is configured.
type RedisClaimGuard struct {
	client *redis.Client
}

// NewRedisClaimGuard creates a claim guard over an existing Redis client.
func NewRedisClaimGuard(client *redis.Client) *RedisClaimGuard {
	return &RedisClaimGuard{client: client}
}

// TryLock fences the code. Returns false when another claim on the same
// code is already in flight.
func (g *RedisClaimGuard) TryLock(ctx context.Context, code string) (bool, error) {
	ok, err := g.client.SetNX(ctx, claimKeyPrefix+code, time.Now().UTC().Format(time.RFC3339), claimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim guard: %w", err)
	}
	return ok, nil
}

// Unlock releases the fence after a failed claim so the code can be
// retried. Successful claims keep the fence until it expires.
func (g *RedisClaimGuard) Unlock(ctx context.Context, code string) {
	if err := g.client.Del(ctx, claimKeyPrefix+code).Err(); err != nil {
		log.Printf("[RedisClaimGuard] Failed to release claim key for code: %v", err)
	}
}
