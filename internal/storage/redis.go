package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ABWatch/internal/config"
)

const runLockKey = "abwatch:run_lock"

type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to Redis and serves both the run lock and
// event publishing contracts.
func NewRedisClient(cfg *config.RedisConfig, log *slog.Logger) (*RedisClient, error) {
	client := redis.NewClient(cfg.GetRedisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis")
	return &RedisClient{client: client}, nil
}

// Acquire claims the run lock with SET NX. The TTL is the crash
// safety net: a process that dies mid-run stops blocking triggers
// once the lock expires.
func (r *RedisClient) Acquire(ctx context.Context, runID string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, runLockKey, runID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return ok, nil
}

// Release drops the lock only if this run still holds it.
func (r *RedisClient) Release(ctx context.Context, runID string) error {
	const script = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0
	`
	if err := r.client.Eval(ctx, script, []string{runLockKey}, runID).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// Holder returns the run id holding the lock, or empty when free.
func (r *RedisClient) Holder(ctx context.Context) (string, error) {
	holder, err := r.client.Get(ctx, runLockKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read run lock: %w", err)
	}
	return holder, nil
}

func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
