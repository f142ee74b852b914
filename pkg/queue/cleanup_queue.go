package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"edustore/internal/util"
)

// Task is one pending object deletion. Attempts counts handler invocations
// across redeliveries.
type Task struct {
	ID       string
	Key      string
	Attempts int
}

// Enqueuer accepts storage keys whose deletion must eventually happen.
type Enqueuer interface {
	Enqueue(ctx context.Context, key string) error
}

// RedisCleanupQueue retries failed object-store deletes on a redis stream.
// Consumers in a group share the work; stalled deliveries are reclaimed via
// XAUTOCLAIM.
type RedisCleanupQueue struct {
	client       *redis.Client
	stream       string
	group        string
	consumerBase string
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	taskTTL      time.Duration
	once         sync.Once
}

// CleanupQueueConfig configures the queue; zero values get defaults.
type CleanupQueueConfig struct {
	Addr       string
	Password   string
	Stream     string
	Group      string
	Consumer   string
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	TaskTTL    time.Duration
}

func NewRedisCleanupQueue(cfg CleanupQueueConfig) (*RedisCleanupQueue, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "storage_cleanup"
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "cleanup"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = util.NewID()
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 30 * time.Second
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	taskTTL := cfg.TaskTTL
	if taskTTL <= 0 {
		taskTTL = 24 * time.Hour
	}
	return &RedisCleanupQueue{
		client:       redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream:       stream,
		group:        group,
		consumerBase: consumer,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		taskTTL:      taskTTL,
	}, nil
}

// Enqueue records a key for eventual deletion.
func (q *RedisCleanupQueue) Enqueue(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("storage key required")
	}
	taskID := util.NewID()
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"task_id": taskID,
			"key":     key,
		},
	}).Err()
}

// Start launches consumer goroutines that run handler for each task. A
// handler error requeues the task until maxRetries, then the task is logged
// and dropped.
func (q *RedisCleanupQueue) Start(ctx context.Context, concurrency int, handler func(context.Context, Task) error) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RedisCleanupQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("cleanup queue group create failed", "error", err)
		}
	})
}

func (q *RedisCleanupQueue) consumeLoop(ctx context.Context, consumer string, handler func(context.Context, Task) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimStalled(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    q.block,
		}).Result()
		if err != nil {
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisCleanupQueue) claimStalled(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return msgs, err
}

func (q *RedisCleanupQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler func(context.Context, Task) error) {
	taskID, _ := msg.Values["task_id"].(string)
	key, _ := msg.Values["key"].(string)
	if taskID == "" || key == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	attempts := q.bumpAttempts(ctx, taskID)
	task := Task{ID: taskID, Key: key, Attempts: attempts}

	if err := handler(ctx, task); err == nil {
		q.client.Del(ctx, q.taskKey(taskID))
		q.ackAndDel(ctx, msg.ID)
		return
	} else if attempts >= q.maxRetries {
		slog.Error("storage cleanup giving up", "key", key, "attempts", attempts, "error", err)
		q.client.Del(ctx, q.taskKey(taskID))
		q.ackAndDel(ctx, msg.ID)
		return
	}

	if q.retryDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(q.retryDelay):
		}
	}
	_ = q.requeueAndAck(ctx, msg.ID, taskID, key)
}

func (q *RedisCleanupQueue) bumpAttempts(ctx context.Context, taskID string) int {
	key := q.taskKey(taskID)
	n, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return 1
	}
	_ = q.client.Expire(ctx, key, q.taskTTL).Err()
	return int(n)
}

func (q *RedisCleanupQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisCleanupQueue) requeueAndAck(ctx context.Context, msgID, taskID, key string) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"task_id": taskID,
			"key":     key,
		},
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisCleanupQueue) taskKey(taskID string) string {
	return "cleanup:attempts:" + taskID
}
