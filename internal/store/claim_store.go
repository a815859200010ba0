package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const claimDone = "done"

// RedisClaimStore records which webhook events are in flight or finished so
// that redelivered events are skipped across instances. A claim value is
// "pending:<token>" while a handler runs and "done" once it succeeded.
type RedisClaimStore struct {
	client *redis.Client
	prefix string
}

func NewRedisClaimStore(client *redis.Client) *RedisClaimStore {
	return &RedisClaimStore{client: client, prefix: "claim:"}
}

// KEYS[1] = claim key
// ARGV = expected pending value, replacement value, ttl (ms)
var completeClaimScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
    return 1
end
return 0
`)

// KEYS[1] = claim key
// ARGV = expected pending value
var releaseClaimScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// Claim takes key for lease. It returns false when another delivery holds
// the claim or the event already completed.
func (s *RedisClaimStore) Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("claim key is required")
	}

	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.prefix+key, pending(token), lease).Result()
	if err != nil {
		return "", false, fmt.Errorf("claiming %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Complete marks a held claim as done for ttl. A claim that expired or was
// taken over by another token is left alone.
func (s *RedisClaimStore) Complete(ctx context.Context, key, token string, ttl time.Duration) error {
	err := completeClaimScript.Run(ctx, s.client, []string{s.prefix + key},
		pending(token), claimDone, ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("completing claim %s: %w", key, err)
	}
	return nil
}

// Release drops a held claim so a redelivery can run the handler again.
func (s *RedisClaimStore) Release(ctx context.Context, key, token string) error {
	err := releaseClaimScript.Run(ctx, s.client, []string{s.prefix + key}, pending(token)).Err()
	if err != nil {
		return fmt.Errorf("releasing claim %s: %w", key, err)
	}
	return nil
}

func pending(token string) string {
	return "pending:" + token
}
