package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Redis struct {
	Client      *redis.Client
	maxFailures int64
	window      time.Duration
}

func NewRedis(client *redis.Client, maxFailures int, window time.Duration) *Redis {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Redis{Client: client, maxFailures: int64(maxFailures), window: window}
}

func failureKey(clientKey string) string {
	return fmt.Sprintf("pin_failures:%s", clientKey)
}

// Blocked reports whether the client has used up its failed organizer PIN
// attempts for the current window.
func (r *Redis) Blocked(ctx context.Context, clientKey string) (bool, error) {
	n, err := r.Client.Get(ctx, failureKey(clientKey)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= r.maxFailures, nil
}

// RecordFailure counts a wrong PIN. The window starts at the first failure;
// a counter left without a TTL gets one on the next failure, so no client
// stays locked out forever.
func (r *Redis) RecordFailure(ctx context.Context, clientKey string) error {
	key := failureKey(clientKey)

	var ttl *redis.DurationCmd
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return err
	}
	if ttl.Val() < 0 {
		return r.Client.Expire(ctx, key, r.window).Err()
	}
	return nil
}

// Reset clears the counter after a successful PIN.
func (r *Redis) Reset(ctx context.Context, clientKey string) error {
	err := r.Client.Del(ctx, failureKey(clientKey)).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}
