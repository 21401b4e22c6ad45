package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix    = "careflow:instance-lock:"
	lockTTL          = 30 * time.Second
	acquirePollEvery = 50 * time.Millisecond
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisManager implements distributed per-instance locking with SET NX and
// a holder token, so deployments with several engine processes still
// serialize transitions per instance.
type RedisManager struct {
	client redis.UniversalClient
}

func NewRedisManager(client redis.UniversalClient) *RedisManager {
	return &RedisManager{client: client}
}

// NewRedisManagerFromURL parses a redis:// URL and builds a manager.
func NewRedisManagerFromURL(url string) (*RedisManager, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return NewRedisManager(redis.NewClient(opts)), nil
}

func (m *RedisManager) Acquire(ctx context.Context, instanceID string) (func(), error) {
	key := lockKeyPrefix + instanceID
	token := uuid.New().String()

	for {
		ok, err := m.client.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock for instance %s: %w", instanceID, err)
		}

		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquirePollEvery):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = releaseScript.Run(releaseCtx, m.client, []string{key}, token).Err()
	}

	return release, nil
}
