package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"DemandCast/pkg/logger"

	"github.com/google/uuid"
)

// ErrNotRunning is returned when publishing to a stopped queue.
var ErrNotRunning = errors.New("queue not running")

type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Server publishes and consumes messages. Jobs may be registered before or
// after construction but must be in place before the first publish.
type Server interface {
	QueueService
	RegisterJob(job Job)
	Start() error
	Stop(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	QueueSize  int           // buffer size, used by the local queue
	RetryLimit int           // retries after the first attempt
	RetryDelay time.Duration // base delay, doubled per attempt
}

func (c *QueueConfig) withDefaults() *QueueConfig {
	out := QueueConfig{}
	if c != nil {
		out = *c
	}
	if out.Workers <= 0 {
		out.Workers = 1
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 256
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = 10 * time.Second
	}
	return &out
}

// backoff returns the delay before retry number attempt (1-based).
func (c *QueueConfig) backoff(attempt int) time.Duration {
	d := c.RetryDelay
	for i := 1; i < attempt && d < time.Hour; i++ {
		d *= 2
	}
	return min(d, time.Hour)
}

// Message represents a message in the queue
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: time.Now().UTC()}, nil
}

// Stats is a snapshot of queue depth.
type Stats struct {
	Pending  int64 `json:"pending"`
	Retrying int64 `json:"retrying"`
	Dead     int64 `json:"dead"`
}

// jobSet is the registry shared by both queue implementations.
type jobSet map[string]Job

func (s jobSet) lookup(msgType string) (Job, error) {
	job, ok := s[msgType]
	if !ok {
		return nil, fmt.Errorf("no job registered for type: %s", msgType)
	}
	return job, nil
}

// dispatch runs job on msg and logs the outcome. It reports whether the
// message should be retried.
func dispatch(ctx context.Context, lgr *logger.Logger, job Job, msg Message) (retry bool) {
	start := time.Now()
	err := job.Handle(ctx, msg.Payload)
	fields := []logger.Field{
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Duration("elapsed", time.Since(start)),
	}
	switch {
	case err == nil:
		lgr.Debug("message processed", fields...)
		return false
	case errors.Is(err, context.Canceled):
		lgr.Warn("message cancelled", fields...)
		return false
	default:
		lgr.Error("message processing error", append(fields, logger.Error(err))...)
		return true
	}
}

func ParsePayload[T any](payload interface{}) (*T, error) {
	var result T

	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		return &result, nil
	case []byte:
		if err := json.Unmarshal(p, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		return &result, nil
	case map[string]interface{}:
		jsonData, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal map to json: %w", err)
		}
		if err := json.Unmarshal(jsonData, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal json to struct: %w", err)
		}
		return &result, nil
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
}
