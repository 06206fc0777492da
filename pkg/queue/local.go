package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DemandCast/pkg/logger"
)

// ErrQueueFull is returned by a LocalQueue whose buffer is exhausted.
var ErrQueueFull = errors.New("queue full")

// LocalQueue runs jobs on in-process workers. Messages do not survive a
// restart; it backs single-node deployments without Redis.
type LocalQueue struct {
	logger  *logger.Logger
	config  *QueueConfig
	jobs    jobSet
	msgs    chan Message
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
}

var _ Server = (*LocalQueue)(nil)

func NewLocalQueue(lgr *logger.Logger, config *QueueConfig, jobs ...Job) *LocalQueue {
	config = config.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	q := &LocalQueue{
		logger: lgr,
		config: config,
		jobs:   make(jobSet, len(jobs)),
		msgs:   make(chan Message, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, j := range jobs {
		q.jobs[j.Type()] = j
	}
	return q
}

// RegisterJob adds a handler for job.Type().
func (q *LocalQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.Type()] = job
}

func (q *LocalQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}
	q.running = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("local queue started", logger.Int("workers", q.config.Workers))
	return nil
}

func (q *LocalQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		q.logger.Info("local queue stopped")
		return nil
	}
}

func (q *LocalQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return ErrNotRunning
	}
	if _, err := q.jobs.lookup(msgType); err != nil {
		return err
	}
	msg, err := newMessage(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case q.msgs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats reports buffered messages. Retries are held by workers and not counted.
func (q *LocalQueue) Stats(context.Context) (Stats, error) {
	return Stats{Pending: int64(len(q.msgs))}, nil
}

func (q *LocalQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.msgs:
			q.handle(msg)
		}
	}
}

// handle retries in place with backoff; a busy worker holds its message.
func (q *LocalQueue) handle(msg Message) {
	q.mu.RLock()
	job, err := q.jobs.lookup(msg.Type)
	q.mu.RUnlock()
	if err != nil {
		q.logger.Error("dropping message", logger.String("id", msg.ID), logger.Error(err))
		return
	}
	for dispatch(q.ctx, q.logger, job, msg) {
		if msg.Attempts >= q.config.RetryLimit {
			q.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
			return
		}
		msg.Attempts++
		select {
		case <-q.ctx.Done():
			return
		case <-time.After(q.config.backoff(msg.Attempts)):
		}
	}
}
