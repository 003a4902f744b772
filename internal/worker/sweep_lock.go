package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sweepLockPrefix = "grievance:sweep:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

type redisSweepLock struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSweepLock returns a SweepLock shared by every instance using client.
func NewRedisSweepLock(client *redis.Client, logger *zap.Logger) SweepLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisSweepLock{client: client, logger: logger}
}

func (l *redisSweepLock) Acquire(ctx context.Context, job string, ttl time.Duration) (func(), bool, error) {
	key := sweepLockPrefix + job
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("sweep lock release failed", zap.String("job", job), zap.Error(err))
		}
	}
	return release, true, nil
}
