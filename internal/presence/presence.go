package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"messenger/internal/models"
)

// Registry tracks realtime availability of users.
type Registry interface {
	Set(ctx context.Context, userID int, status models.PresenceStatus) error
	Get(ctx context.Context, userID int) (models.PresenceStatus, error)
	Touch(ctx context.Context, userID int) error
}

// RedisRegistry keeps presence in Redis with a TTL so a crashed node
// cannot leave users online forever. A missing key reads as offline.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry connects a registry to Redis.
func NewRedisRegistry(addr, password string, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		ttl: ttl,
	}
}

// NewRedisRegistryWithClient wraps an existing client, used by tests.
func NewRedisRegistryWithClient(client *redis.Client, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: ttl}
}

func presenceKey(userID int) string {
	return fmt.Sprintf("presence:%d", userID)
}

// Set writes the user's status. Offline deletes the key so the default
// read path and the TTL expiry path agree.
func (r *RedisRegistry) Set(ctx context.Context, userID int, status models.PresenceStatus) error {
	if status == models.StatusOffline {
		return r.client.Del(ctx, presenceKey(userID)).Err()
	}
	return r.client.Set(ctx, presenceKey(userID), string(status), r.ttl).Err()
}

// Get reads the user's status; a missing or expired key is offline.
func (r *RedisRegistry) Get(ctx context.Context, userID int) (models.PresenceStatus, error) {
	val, err := r.client.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return models.StatusOffline, nil
	}
	if err != nil {
		return models.StatusOffline, err
	}
	return models.PresenceStatus(val), nil
}

// Touch refreshes the TTL without changing the status. A no-op for
// users who are not currently present.
func (r *RedisRegistry) Touch(ctx context.Context, userID int) error {
	return r.client.Expire(ctx, presenceKey(userID), r.ttl).Err()
}
