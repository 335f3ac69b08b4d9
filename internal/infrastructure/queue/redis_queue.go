package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrEmpty indicates no job was available within the poll timeout
var ErrEmpty = fmt.Errorf("queue empty")

// RedisQueue is the enrichment task queue. Scheduling is fire-and-forget;
// delivery is at-least-once, so consumers re-check the syncing guard before
// running.
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisQueue creates a queue on an existing Redis client
func NewRedisQueue(client *redis.Client, key string, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    key,
		logger: logger,
	}
}

// Schedule enqueues an enrichment run for an account
func (q *RedisQueue) Schedule(ctx context.Context, accountID int64) error {
	if err := q.client.LPush(ctx, q.key, strconv.FormatInt(accountID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue account %d: %w", accountID, err)
	}

	q.logger.Debug("Enqueued enrichment", zap.Int64("account_id", accountID))
	return nil
}

// Dequeue blocks up to timeout for the next scheduled account id.
// Returns ErrEmpty when the timeout elapses with no job.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (int64, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, ErrEmpty
		}
		return 0, fmt.Errorf("failed to dequeue: %w", err)
	}

	// BRPop returns [key, value]
	if len(result) != 2 {
		return 0, fmt.Errorf("unexpected BRPOP result length %d", len(result))
	}

	accountID, err := strconv.ParseInt(result[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed queue entry %q: %w", result[1], err)
	}

	return accountID, nil
}

// Length returns the current queue depth
func (q *RedisQueue) Length(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}
