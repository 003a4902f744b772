package repository

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// WorkloadTracker keeps the open-case count per staff member.
type WorkloadTracker interface {
	Increment(ctx context.Context, staffID string) error
	Decrement(ctx context.Context, staffID string) error
	WorkloadOf(ctx context.Context, staffID string) (int, error)
	Distribution(ctx context.Context) (map[string]int, error)
}

const workloadKey = "grievance:workload"

// decrements never drop below zero
var decrementScript = redis.NewScript(`
local v = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if v < 0 then
  redis.call('HSET', KEYS[1], ARGV[1], 0)
  return 0
end
return v`)

type redisWorkloadTracker struct {
	client *redis.Client
	key    string
}

// NewRedisWorkloadTracker stores workload counters in a single Redis hash.
func NewRedisWorkloadTracker(client *redis.Client) WorkloadTracker {
	return &redisWorkloadTracker{client: client, key: workloadKey}
}

func (t *redisWorkloadTracker) Increment(ctx context.Context, staffID string) error {
	return t.client.HIncrBy(ctx, t.key, staffID, 1).Err()
}

func (t *redisWorkloadTracker) Decrement(ctx context.Context, staffID string) error {
	return decrementScript.Run(ctx, t.client, []string{t.key}, staffID).Err()
}

func (t *redisWorkloadTracker) WorkloadOf(ctx context.Context, staffID string) (int, error) {
	val, err := t.client.HGet(ctx, t.key, staffID).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

func (t *redisWorkloadTracker) Distribution(ctx context.Context) (map[string]int, error) {
	raw, err := t.client.HGetAll(ctx, t.key).Result()
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(raw))
	for staffID, val := range raw {
		n, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		result[staffID] = n
	}
	return result, nil
}

// MemoryWorkloadTracker is the in-process WorkloadTracker.
type MemoryWorkloadTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryWorkloadTracker builds an empty tracker.
func NewMemoryWorkloadTracker() *MemoryWorkloadTracker {
	return &MemoryWorkloadTracker{counts: make(map[string]int)}
}

func (t *MemoryWorkloadTracker) Increment(_ context.Context, staffID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[staffID]++
	return nil
}

func (t *MemoryWorkloadTracker) Decrement(_ context.Context, staffID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts[staffID] > 0 {
		t.counts[staffID]--
	}
	return nil
}

func (t *MemoryWorkloadTracker) WorkloadOf(_ context.Context, staffID string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[staffID], nil
}

func (t *MemoryWorkloadTracker) Distribution(_ context.Context) (map[string]int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out, nil
}
