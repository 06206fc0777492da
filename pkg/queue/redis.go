package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"DemandCast/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	popTimeout    = time.Second
	promoteEvery  = 2 * time.Second
	promoteBatch  = 100
	deadLetterCap = 1000
)

// RedisQueue keeps messages in three keys under a prefix: a pending list
// consumed with BRPOP, a delayed sorted set scored by due time in
// milliseconds, and a capped dead-letter list. Several instances may share
// one prefix.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	keyPrefix string

	mu      sync.RWMutex
	jobs    jobSet
	running bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

var _ Server = (*RedisQueue)(nil)

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	ctx, cancel := context.WithCancel(context.Background())
	r := &RedisQueue{
		logger:    lgr,
		config:    config.withDefaults(),
		client:    client,
		keyPrefix: "demandcast:queue",
		jobs:      make(jobSet),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisQueue) pendingKey() string { return r.keyPrefix + ":pending" }
func (r *RedisQueue) delayedKey() string { return r.keyPrefix + ":delayed" }
func (r *RedisQueue) deadKey() string    { return r.keyPrefix + ":dead" }

// RegisterJob adds a handler for job.Type().
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and launches the workers and the delayed-set promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(r.ctx, 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.running = true
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	r.wg.Add(1)
	go r.promoter()

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr),
		logger.String("prefix", r.keyPrefix))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs up to ctx.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// PublishMessage pushes a message onto the pending list.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, lookupErr := r.jobs.lookup(msgType)
	r.mu.RUnlock()
	if !running {
		return ErrNotRunning
	}
	if lookupErr != nil {
		return lookupErr
	}

	msg, err := newMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.pendingKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// Stats reports the pending, retrying and dead-lettered message counts.
func (r *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := r.client.Pipeline()
	pending := pipe.LLen(ctx, r.pendingKey())
	retrying := pipe.ZCard(ctx, r.delayedKey())
	dead := pipe.LLen(ctx, r.deadKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Pending: pending.Val(), Retrying: retrying.Val(), Dead: dead.Val()}, nil
}

func (r *RedisQueue) worker() {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		res, err := r.client.BRPop(r.ctx, popTimeout, r.pendingKey()).Result()
		switch {
		case errors.Is(err, redis.Nil), errors.Is(err, context.Canceled):
			continue
		case err != nil:
			r.logger.Error("brpop error", logger.Error(err))
			r.sleep(time.Second)
			continue
		}

		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			r.logger.Error("unmarshal message", logger.Error(err))
			continue
		}
		r.process(msg)
	}
}

func (r *RedisQueue) process(msg Message) {
	r.mu.RLock()
	job, err := r.jobs.lookup(msg.Type)
	r.mu.RUnlock()
	if err != nil {
		r.logger.Error("no job for message", logger.String("id", msg.ID), logger.Error(err))
		r.bury(msg)
		return
	}
	if !dispatch(r.ctx, r.logger, job, msg) {
		return
	}
	if msg.Attempts >= r.config.RetryLimit {
		r.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
		r.bury(msg)
		return
	}
	msg.Attempts++
	r.delay(msg, time.Now().Add(r.config.backoff(msg.Attempts)))
}

// delay parks msg in the delayed set. It uses a background context so a
// retry scheduled during shutdown is not lost.
func (r *RedisQueue) delay(msg Message, due time.Time) {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("marshal retry", logger.Error(err))
		return
	}
	z := redis.Z{Score: float64(due.UnixMilli()), Member: data}
	if err := r.client.ZAdd(context.Background(), r.delayedKey(), z).Err(); err != nil {
		r.logger.Error("zadd retry", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) bury(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(context.Background(), r.deadKey(), data)
	pipe.LTrim(context.Background(), r.deadKey(), 0, deadLetterCap-1)
	if _, err := pipe.Exec(context.Background()); err != nil {
		r.logger.Error("dead-letter push", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) promoter() {
	defer r.wg.Done()
	ticker := time.NewTicker(promoteEvery)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.promoteDue(); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("promote delayed messages", logger.Error(err))
			}
		}
	}
}

// promoteDue moves due messages back to the pending list. Only the
// instance whose ZREM succeeds pushes a member, so concurrent promoters do
// not duplicate work.
func (r *RedisQueue) promoteDue() error {
	due, err := r.client.ZRangeByScore(r.ctx, r.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return err
	}
	for _, member := range due {
		removed, err := r.client.ZRem(r.ctx, r.delayedKey(), member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := r.client.LPush(r.ctx, r.pendingKey(), member).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisQueue) sleep(d time.Duration) {
	select {
	case <-r.ctx.Done():
	case <-time.After(d):
	}
}
